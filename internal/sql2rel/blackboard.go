package sql2rel

import (
	"fmt"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
	"github.com/roach88/quarry/internal/sqlparse"
	"github.com/roach88/quarry/internal/validate"
)

// blackboard converts scalar expressions against one input row type.
// Over an aggregate, group keys and aggregate calls map to its output
// columns instead.
type blackboard struct {
	conv    *conv
	rowType *ir.Type
	groups  map[string]int
	aggs    map[string]int
}

func (bb *blackboard) ref(i int) rex.Node {
	return bb.conv.b.MakeInputRef(bb.rowType, i)
}

func (bb *blackboard) convert(e sqlparse.Expr) (rex.Node, error) {
	if bb.groups != nil {
		k := bb.conv.v.Key(e)
		if i, ok := bb.groups[k]; ok {
			return bb.ref(i), nil
		}
		if i, ok := bb.aggs[k]; ok {
			return bb.ref(i), nil
		}
	}

	b := bb.conv.b
	switch x := e.(type) {
	case *sqlparse.ColumnRef:
		if bb.groups != nil {
			return nil, fmt.Errorf("column %s is not grouped", x)
		}
		bind, ok := bb.conv.v.Column(x)
		if !ok {
			return nil, fmt.Errorf("column %s was not validated", x)
		}
		return bb.ref(bind.Offset), nil

	case *sqlparse.Literal:
		return validate.Literal(b, x)

	case *sqlparse.BinaryExpr:
		op, ok := validate.BinaryOperator(x.Op)
		if !ok {
			return nil, fmt.Errorf("unknown operator %s", x.Op)
		}
		return bb.call(e, op, x.Left, x.Right)

	case *sqlparse.UnaryExpr:
		if x.Op == "NOT" {
			return bb.call(e, rex.Not, x.Operand)
		}
		return bb.call(e, rex.Negate, x.Operand)

	case *sqlparse.IsNullExpr:
		if x.Not {
			return bb.call(e, rex.IsNotNull, x.Operand)
		}
		return bb.call(e, rex.IsNull, x.Operand)

	case *sqlparse.BetweenExpr:
		v, err := bb.convert(x.Operand)
		if err != nil {
			return nil, err
		}
		lo, err := bb.convert(x.Low)
		if err != nil {
			return nil, err
		}
		hi, err := bb.convert(x.High)
		if err != nil {
			return nil, err
		}
		ge, err := b.MakeCall(rex.GreaterThanOrEqual, v, lo)
		if err != nil {
			return nil, err
		}
		le, err := b.MakeCall(rex.LessThanOrEqual, v, hi)
		if err != nil {
			return nil, err
		}
		return bb.negate(x.Not, b.MustCall(rex.And, ge, le))

	case *sqlparse.InExpr:
		v, err := bb.convert(x.Operand)
		if err != nil {
			return nil, err
		}
		var eqs []rex.Node
		for _, item := range x.List {
			n, err := bb.convert(item)
			if err != nil {
				return nil, err
			}
			eq, err := b.MakeCall(rex.Equals, v, n)
			if err != nil {
				return nil, err
			}
			eqs = append(eqs, eq)
		}
		cond := eqs[0]
		if len(eqs) > 1 {
			cond = b.MustCall(rex.Or, eqs...)
		}
		return bb.negate(x.Not, cond)

	case *sqlparse.CaseExpr:
		return bb.caseExpr(x)

	case *sqlparse.FuncCall:
		if _, agg := rel.LookupAggFunc(x.Name); agg {
			return nil, fmt.Errorf("aggregate %s outside an aggregating block", x)
		}
		op, ok := rex.Lookup(x.Name)
		if !ok {
			return nil, fmt.Errorf("unknown function %s", x.Name)
		}
		return bb.call(e, op, x.Args...)
	}
	return nil, fmt.Errorf("unexpected expression %T", e)
}

func (bb *blackboard) negate(not bool, n rex.Node) (rex.Node, error) {
	if !not {
		return n, nil
	}
	return bb.conv.b.MakeCall(rex.Not, n)
}

func (bb *blackboard) call(e sqlparse.Expr, op *rex.Operator, args ...sqlparse.Expr) (rex.Node, error) {
	operands := make([]rex.Node, len(args))
	for i, a := range args {
		n, err := bb.convert(a)
		if err != nil {
			return nil, err
		}
		operands[i] = n
	}
	n, err := bb.conv.b.MakeCall(op, operands...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e, err)
	}
	return n, nil
}

// caseExpr lowers CASE to the operand list when1, then1, ..., else.
// A simple CASE compares its operand with each WHEN value.
func (bb *blackboard) caseExpr(x *sqlparse.CaseExpr) (rex.Node, error) {
	b := bb.conv.b
	var operand rex.Node
	if x.Operand != nil {
		n, err := bb.convert(x.Operand)
		if err != nil {
			return nil, err
		}
		operand = n
	}
	var operands []rex.Node
	for _, w := range x.Whens {
		when, err := bb.convert(w.When)
		if err != nil {
			return nil, err
		}
		if operand != nil {
			if when, err = b.MakeCall(rex.Equals, operand, when); err != nil {
				return nil, err
			}
		}
		then, err := bb.convert(w.Then)
		if err != nil {
			return nil, err
		}
		operands = append(operands, when, then)
	}
	if x.Else != nil {
		n, err := bb.convert(x.Else)
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}
	n, err := b.MakeCall(rex.Case, operands...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", x, err)
	}
	return n, nil
}
