package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
	"github.com/roach88/quarry/internal/sqlparse"
)

var binaryOperators = map[string]*rex.Operator{
	"=":   rex.Equals,
	"<>":  rex.NotEquals,
	"<":   rex.LessThan,
	"<=":  rex.LessThanOrEqual,
	">":   rex.GreaterThan,
	">=":  rex.GreaterThanOrEqual,
	"+":   rex.Plus,
	"-":   rex.Minus,
	"*":   rex.Times,
	"/":   rex.Divide,
	"||":  rex.Concat,
	"AND": rex.And,
	"OR":  rex.Or,
}

// BinaryOperator maps an infix SQL operator to its scalar operator.
func BinaryOperator(op string) (*rex.Operator, bool) {
	o, ok := binaryOperators[op]
	return o, ok
}

// Aggregate reports whether e is an aggregate function call, and which.
func Aggregate(e sqlparse.Expr) (rel.AggFunc, bool) {
	call, ok := e.(*sqlparse.FuncCall)
	if !ok {
		return 0, false
	}
	return rel.LookupAggFunc(call.Name)
}

// ContainsAggregate reports whether any sub-expression of e is an
// aggregate call.
func ContainsAggregate(e sqlparse.Expr) bool {
	found := false
	sqlparse.Walk(e, func(x sqlparse.Expr) bool {
		if _, ok := Aggregate(x); ok {
			found = true
		}
		return !found
	})
	return found
}

// Literal converts a parsed literal to a typed scalar literal. Exact
// numerals keep every digit; approximate ones become DOUBLE.
func Literal(b *rex.Builder, lit *sqlparse.Literal) (rex.Literal, error) {
	switch lit.Kind {
	case sqlparse.LitInteger, sqlparse.LitDecimal:
		d, _, err := apd.NewFromString(lit.Text)
		if err != nil {
			return rex.Literal{}, fmt.Errorf("numeric literal %s: %w", lit.Text, err)
		}
		return b.MakeExactLiteral(d), nil
	case sqlparse.LitApprox:
		d, _, err := apd.NewFromString(lit.Text)
		if err != nil {
			return rex.Literal{}, fmt.Errorf("numeric literal %s: %w", lit.Text, err)
		}
		return b.MakeApproxLiteral(d)
	case sqlparse.LitString:
		return b.MakeCharLiteral(lit.Text), nil
	case sqlparse.LitBool:
		return b.MakeBoolLiteral(lit.Bool), nil
	default:
		return b.MakeNullLiteral(b.TypeFactory().CreateSQLType(ir.TypeNull)), nil
	}
}

// exprCtx is what an expression may refer to while being typed.
type exprCtx struct {
	scope *scope
	// clause names the clause for error messages, e.g. "WHERE".
	clause string
	// allowAgg permits aggregate calls; inAgg is set inside one.
	allowAgg bool
	inAgg    bool
	// grouped is true when the block has GROUP BY.
	grouped bool
}

// typeOf derives the type of e, recording column bindings as it goes.
func (st *state) typeOf(c exprCtx, e sqlparse.Expr) (*ir.Type, error) {
	t, err := st.derive(c, e)
	if err != nil {
		return nil, err
	}
	st.out.types[e] = t
	return t, nil
}

func (st *state) derive(c exprCtx, e sqlparse.Expr) (*ir.Type, error) {
	switch x := e.(type) {
	case *sqlparse.ColumnRef:
		// star expansion binds its references up front
		if b, ok := st.out.columns[x]; ok {
			return b.Type, nil
		}
		b, err := c.scope.resolve(x)
		if err != nil {
			return nil, err
		}
		st.out.columns[x] = b
		return b.Type, nil

	case *sqlparse.Literal:
		lit, err := Literal(st.b, x)
		if err != nil {
			return nil, errorf(x.Pos, "%s", err)
		}
		return lit.Type(), nil

	case *sqlparse.BinaryExpr:
		op, ok := BinaryOperator(x.Op)
		if !ok {
			return nil, errorf(x.Pos, "unknown operator %s", x.Op)
		}
		return st.apply(c, x.Pos, op, x.Left, x.Right)

	case *sqlparse.UnaryExpr:
		op := rex.Negate
		if x.Op == "NOT" {
			op = rex.Not
		}
		return st.apply(c, x.Pos, op, x.Operand)

	case *sqlparse.IsNullExpr:
		op := rex.IsNull
		if x.Not {
			op = rex.IsNotNull
		}
		return st.apply(c, x.Pos, op, x.Operand)

	case *sqlparse.BetweenExpr:
		ts, err := st.types(c, x.Operand, x.Low, x.High)
		if err != nil {
			return nil, err
		}
		ge, err := st.infer(x.Pos, rex.GreaterThanOrEqual, ts[0], ts[1])
		if err != nil {
			return nil, err
		}
		le, err := st.infer(x.Pos, rex.LessThanOrEqual, ts[0], ts[2])
		if err != nil {
			return nil, err
		}
		return st.infer(x.Pos, rex.And, ge, le)

	case *sqlparse.InExpr:
		ts, err := st.types(c, append([]sqlparse.Expr{x.Operand}, x.List...)...)
		if err != nil {
			return nil, err
		}
		var conds []*ir.Type
		for _, t := range ts[1:] {
			eq, err := st.infer(x.Pos, rex.Equals, ts[0], t)
			if err != nil {
				return nil, err
			}
			conds = append(conds, eq)
		}
		return st.infer(x.Pos, rex.Or, conds...)

	case *sqlparse.CaseExpr:
		return st.caseType(c, x)

	case *sqlparse.FuncCall:
		return st.call(c, x)
	}
	return nil, errorf(e.Position(), "unsupported expression %s", e)
}

func (st *state) types(c exprCtx, es ...sqlparse.Expr) ([]*ir.Type, error) {
	ts := make([]*ir.Type, len(es))
	for i, e := range es {
		t, err := st.typeOf(c, e)
		if err != nil {
			return nil, err
		}
		ts[i] = t
	}
	return ts, nil
}

func (st *state) apply(c exprCtx, pos sqlparse.Pos, op *rex.Operator, operands ...sqlparse.Expr) (*ir.Type, error) {
	ts, err := st.types(c, operands...)
	if err != nil {
		return nil, err
	}
	return st.infer(pos, op, ts...)
}

func (st *state) infer(pos sqlparse.Pos, op *rex.Operator, ts ...*ir.Type) (*ir.Type, error) {
	t, err := op.InferReturnType(st.tf, ts)
	if err != nil {
		return nil, &Error{Pos: pos, Message: fmt.Sprintf("Cannot apply '%s': %s", op.Name, err), Err: err}
	}
	return t, nil
}

// caseType types a CASE. A simple CASE compares its operand with each
// WHEN value.
func (st *state) caseType(c exprCtx, x *sqlparse.CaseExpr) (*ir.Type, error) {
	var operand *ir.Type
	if x.Operand != nil {
		t, err := st.typeOf(c, x.Operand)
		if err != nil {
			return nil, err
		}
		operand = t
	}
	var ts []*ir.Type
	for _, w := range x.Whens {
		when, err := st.typeOf(c, w.When)
		if err != nil {
			return nil, err
		}
		if operand != nil {
			if when, err = st.infer(w.When.Position(), rex.Equals, operand, when); err != nil {
				return nil, err
			}
		}
		then, err := st.typeOf(c, w.Then)
		if err != nil {
			return nil, err
		}
		ts = append(ts, when, then)
	}
	if x.Else != nil {
		t, err := st.typeOf(c, x.Else)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return st.infer(x.Pos, rex.Case, ts...)
}

func (st *state) call(c exprCtx, x *sqlparse.FuncCall) (*ir.Type, error) {
	fn, isAgg := rel.LookupAggFunc(x.Name)
	if !isAgg {
		op, ok := rex.Lookup(x.Name)
		if !ok {
			return nil, &Error{Pos: x.Pos, Identifier: x.Name, Message: "No match found for function signature " + x.Name}
		}
		if x.Star || x.Distinct {
			return nil, errorf(x.Pos, "%s is not an aggregate function", x.Name)
		}
		return st.apply(c, x.Pos, op, x.Args...)
	}

	switch {
	case c.inAgg:
		return nil, errorf(x.Pos, "Aggregate expressions cannot be nested")
	case !c.allowAgg:
		return nil, errorf(x.Pos, "Aggregate expression is illegal in %s clause", c.clause)
	case x.Star && fn != rel.AggCount:
		return nil, errorf(x.Pos, "%s(*) is not allowed", x.Name)
	case !x.Star && len(x.Args) != 1:
		return nil, errorf(x.Pos, "Invalid number of arguments to function '%s'. Was expecting 1 arguments", x.Name)
	}

	var arg *ir.Type
	if !x.Star {
		inner := c
		inner.inAgg = true
		t, err := st.typeOf(inner, x.Args[0])
		if err != nil {
			return nil, err
		}
		arg = t
	}
	t, err := rel.InferAggType(st.tf, fn, arg, c.grouped)
	if err != nil {
		return nil, &Error{Pos: x.Pos, Message: err.Error(), Err: err}
	}
	return t, nil
}

// Key renders e with column references replaced by their FROM-row
// offsets, so "e.deptno" and "deptno" compare equal. Only meaningful for
// expressions this Validated has typed.
func (v *Validated) Key(e sqlparse.Expr) string {
	var b strings.Builder
	v.writeKey(&b, e)
	return b.String()
}

func (v *Validated) writeKey(b *strings.Builder, e sqlparse.Expr) {
	switch x := e.(type) {
	case *sqlparse.ColumnRef:
		if bind, ok := v.columns[x]; ok {
			b.WriteString("$" + strconv.Itoa(bind.Offset))
			return
		}
		b.WriteString(x.String())
	case *sqlparse.Literal:
		b.WriteString(x.String())
	case *sqlparse.BinaryExpr:
		b.WriteString(x.Op)
	case *sqlparse.UnaryExpr:
		b.WriteString(x.Op)
	case *sqlparse.IsNullExpr:
		b.WriteString(strconv.FormatBool(x.Not) + " IS NULL")
	case *sqlparse.BetweenExpr:
		b.WriteString(strconv.FormatBool(x.Not) + " BETWEEN")
	case *sqlparse.InExpr:
		b.WriteString(strconv.FormatBool(x.Not) + " IN")
	case *sqlparse.FuncCall:
		b.WriteString(x.Name + strconv.FormatBool(x.Star) + strconv.FormatBool(x.Distinct))
	case *sqlparse.CaseExpr:
		b.WriteString("CASE" + strconv.FormatBool(x.Operand != nil) + strconv.FormatBool(x.Else != nil))
	}
	ops := sqlparse.Operands(e)
	if len(ops) == 0 {
		return
	}
	b.WriteString("(")
	for i, o := range ops {
		if i > 0 {
			b.WriteString(", ")
		}
		v.writeKey(b, o)
	}
	b.WriteString(")")
}
