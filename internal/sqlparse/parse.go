// Package sqlparse parses the supported SQL subset into a syntax tree.
//
// The grammar is declared with participle on the raw* types in grammar.go;
// Parse converts the raw tree into the sealed AST in ast.go, folding the
// precedence levels into binary expressions.
package sqlparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// ParseError is a malformed query, with the 1-based position of the
// offending token.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// IsParseError reports whether err is (or wraps) a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse parses one query. A trailing semicolon is allowed.
func Parse(text string) (*Query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Line: 1, Column: 1, Message: "empty query"}
	}
	raw, err := parser.ParseString("", text)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			pos := perr.Position()
			return nil, &ParseError{Line: pos.Line, Column: pos.Column, Message: perr.Message()}
		}
		return nil, &ParseError{Line: 1, Column: 1, Message: err.Error()}
	}
	return convertQuery(raw.Query)
}

// MustParse is Parse that panics on error. Use only with literal queries.
func MustParse(text string) *Query {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

func pos(p lexer.Position) Pos { return Pos{Line: p.Line, Column: p.Column} }

func convertQuery(r *rawQuery) (*Query, error) {
	body, err := convertUnion(r.Body)
	if err != nil {
		return nil, err
	}
	q := &Query{Pos: pos(r.Pos), Body: body, Limit: -1, Offset: -1}
	for _, o := range r.OrderBy {
		e, err := convertExpr(o.Expr)
		if err != nil {
			return nil, err
		}
		q.OrderBy = append(q.OrderBy, OrderItem{Expr: e, Desc: o.Desc})
	}
	if q.Limit, err = convertCount(r.Limit, "LIMIT"); err != nil {
		return nil, err
	}
	if q.Offset, err = convertCount(r.Offset, "OFFSET"); err != nil {
		return nil, err
	}
	return q, nil
}

func convertCount(n *rawNumber, clause string) (int64, error) {
	if n == nil {
		return -1, nil
	}
	v, err := strconv.ParseInt(n.Text, 10, 64)
	if err != nil {
		return 0, &ParseError{Line: n.Pos.Line, Column: n.Pos.Column, Message: clause + " needs a non-negative integer, got " + n.Text}
	}
	return v, nil
}

func convertUnion(r *rawUnion) (SetExpr, error) {
	left, err := convertIntersect(r.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range r.Rest {
		right, err := convertIntersect(op.Right)
		if err != nil {
			return nil, err
		}
		kind := Union
		if !strings.EqualFold(op.Op, "UNION") {
			kind = Except
		}
		left = &SetOp{Pos: pos(op.Pos), Kind: kind, All: op.All, Left: left, Right: right}
	}
	return left, nil
}

func convertIntersect(r *rawIntersect) (SetExpr, error) {
	left, err := convertTerm(r.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range r.Rest {
		right, err := convertTerm(op.Right)
		if err != nil {
			return nil, err
		}
		left = &SetOp{Pos: pos(op.Pos), Kind: Intersect, All: op.All, Left: left, Right: right}
	}
	return left, nil
}

func convertTerm(r *rawTerm) (SetExpr, error) {
	if r.Nested != nil {
		return convertQuery(r.Nested)
	}
	return convertSelect(r.Select)
}

func convertSelect(r *rawSelect) (*Select, error) {
	s := &Select{Pos: pos(r.Pos), Distinct: r.Distinct}
	for _, it := range r.Items {
		item := SelectItem{Pos: pos(it.Pos), Star: it.Star}
		switch {
		case it.Qualifier != nil:
			item.Star, item.Qualifier = true, ident(it.Qualifier)
		case it.Expr != nil:
			e, err := convertExpr(it.Expr)
			if err != nil {
				return nil, err
			}
			item.Expr = e
		}
		if it.Alias != nil {
			if item.Star {
				return nil, &ParseError{Line: it.Alias.Pos.Line, Column: it.Alias.Pos.Column, Message: "cannot alias *"}
			}
			item.Alias = ident(it.Alias)
		}
		s.Items = append(s.Items, item)
	}

	var err error
	if r.From != nil {
		if s.From, err = convertFrom(r.From); err != nil {
			return nil, err
		}
	}
	if s.Where, err = convertOptional(r.Where); err != nil {
		return nil, err
	}
	for _, g := range r.GroupBy {
		e, err := convertExpr(g)
		if err != nil {
			return nil, err
		}
		s.GroupBy = append(s.GroupBy, e)
	}
	if s.Having, err = convertOptional(r.Having); err != nil {
		return nil, err
	}
	return s, nil
}

func convertFrom(r *rawFrom) (FromItem, error) {
	left, err := convertTableRef(r.First)
	if err != nil {
		return nil, err
	}
	for _, j := range r.Rest {
		right, err := convertTableRef(j.Table)
		if err != nil {
			return nil, err
		}
		join := &Join{Pos: pos(j.Pos), Kind: InnerJoin, Left: left, Right: right}
		switch {
		case j.Comma || j.Cross:
			join.Kind = CrossJoin
		case j.Left:
			join.Kind = LeftJoin
		}
		if j.On != nil {
			if join.Kind == CrossJoin {
				return nil, &ParseError{Line: j.Pos.Line, Column: j.Pos.Column, Message: "cross join cannot have ON"}
			}
			if join.On, err = convertExpr(j.On); err != nil {
				return nil, err
			}
		} else if join.Kind != CrossJoin {
			return nil, &ParseError{Line: j.Pos.Line, Column: j.Pos.Column, Message: join.Kind.String() + " JOIN needs ON"}
		}
		left = join
	}
	return left, nil
}

func convertTableRef(r *rawTableRef) (FromItem, error) {
	alias := ""
	if r.Alias != nil {
		alias = ident(r.Alias)
	}
	if r.Subquery != nil {
		q, err := convertQuery(r.Subquery)
		if err != nil {
			return nil, err
		}
		return &SubqueryRef{Pos: pos(r.Pos), Query: q, Alias: alias}, nil
	}
	return &TableRef{Pos: pos(r.Pos), Names: idents(r.Names), Alias: alias}, nil
}

// ident returns an identifier's name. Quoted identifiers lose their
// quotes and "" becomes ".
func ident(r *rawIdent) string {
	t := r.Token
	if len(t) >= 2 && t[0] == '"' {
		return strings.ReplaceAll(t[1:len(t)-1], `""`, `"`)
	}
	return t
}

func idents(rs []*rawIdent) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = ident(r)
	}
	return names
}

func convertOptional(r *rawExpr) (Expr, error) {
	if r == nil {
		return nil, nil
	}
	return convertExpr(r)
}

func convertExpr(r *rawExpr) (Expr, error) {
	left, err := convertAnd(r.Left)
	if err != nil {
		return nil, err
	}
	for _, a := range r.Rest {
		right, err := convertAnd(a)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: left.Position(), Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func convertAnd(r *rawAnd) (Expr, error) {
	left, err := convertNot(r.Left)
	if err != nil {
		return nil, err
	}
	for _, n := range r.Rest {
		right, err := convertNot(n)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: left.Position(), Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func convertNot(r *rawNot) (Expr, error) {
	if r.Not != nil {
		operand, err := convertNot(r.Not)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Pos: pos(r.Pos), Op: "NOT", Operand: operand}, nil
	}
	return convertPredicate(r.Predicate)
}

func convertPredicate(r *rawPredicate) (Expr, error) {
	left, err := convertAdditive(r.Left)
	if err != nil {
		return nil, err
	}
	switch {
	case r.Compare != nil:
		right, err := convertAdditive(r.Compare.Right)
		if err != nil {
			return nil, err
		}
		op := r.Compare.Op
		if op == "!=" {
			op = "<>"
		}
		return &BinaryExpr{Pos: pos(r.Compare.Pos), Op: op, Left: left, Right: right}, nil
	case r.Is != nil:
		return &IsNullExpr{Pos: pos(r.Is.Pos), Operand: left, Not: r.Is.Not}, nil
	case r.Between != nil:
		low, err := convertAdditive(r.Between.Low)
		if err != nil {
			return nil, err
		}
		high, err := convertAdditive(r.Between.High)
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{Pos: pos(r.Between.Pos), Operand: left, Low: low, High: high, Not: r.Between.Not}, nil
	case r.In != nil:
		in := &InExpr{Pos: pos(r.In.Pos), Operand: left, Not: r.In.Not}
		for _, item := range r.In.List {
			e, err := convertExpr(item)
			if err != nil {
				return nil, err
			}
			in.List = append(in.List, e)
		}
		return in, nil
	}
	return left, nil
}

func convertAdditive(r *rawAdditive) (Expr, error) {
	left, err := convertMultiplicative(r.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range r.Rest {
		right, err := convertMultiplicative(op.Right)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: pos(op.Pos), Op: op.Op, Left: left, Right: right}
	}
	return left, nil
}

func convertMultiplicative(r *rawMultiplicative) (Expr, error) {
	left, err := convertUnary(r.Left)
	if err != nil {
		return nil, err
	}
	for _, op := range r.Rest {
		right, err := convertUnary(op.Right)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Pos: pos(op.Pos), Op: op.Op, Left: left, Right: right}
	}
	return left, nil
}

func convertUnary(r *rawUnary) (Expr, error) {
	switch {
	case r.Negate != nil:
		operand, err := convertUnary(r.Negate)
		if err != nil {
			return nil, err
		}
		// fold the sign into numeric literals so -2147483648 stays INTEGER
		if lit, ok := operand.(*Literal); ok && lit.Kind <= LitApprox && !strings.HasPrefix(lit.Text, "-") {
			return &Literal{Pos: pos(r.Pos), Kind: lit.Kind, Text: "-" + lit.Text}, nil
		}
		return &UnaryExpr{Pos: pos(r.Pos), Op: "-", Operand: operand}, nil
	case r.Plus != nil:
		return convertUnary(r.Plus)
	}
	return convertPrimary(r.Primary)
}

func convertPrimary(r *rawPrimary) (Expr, error) {
	p := pos(r.Pos)
	switch {
	case r.Number != nil:
		return numberLiteral(p, *r.Number), nil
	case r.String != nil:
		s := *r.String
		return &Literal{Pos: p, Kind: LitString, Text: strings.ReplaceAll(s[1:len(s)-1], "''", "'")}, nil
	case r.True, r.False:
		return &Literal{Pos: p, Kind: LitBool, Bool: r.True}, nil
	case r.Null:
		return &Literal{Pos: p, Kind: LitNull}, nil
	case r.Case != nil:
		return convertCase(r.Case)
	case r.Call != nil:
		return convertCall(r.Call)
	case r.Column != nil:
		return &ColumnRef{Pos: p, Names: idents(r.Column)}, nil
	default:
		return convertExpr(r.Paren)
	}
}

// numberLiteral classifies by spelling: an exponent makes it approximate,
// a decimal point exact decimal, otherwise integer.
func numberLiteral(p Pos, text string) *Literal {
	kind := LitInteger
	switch {
	case strings.ContainsAny(text, "eE"):
		kind = LitApprox
	case strings.Contains(text, "."):
		kind = LitDecimal
	}
	return &Literal{Pos: p, Kind: kind, Text: text}
}

func convertCall(r *rawCall) (Expr, error) {
	call := &FuncCall{Pos: pos(r.Pos), Name: strings.ToUpper(ident(r.Name)), Star: r.Star, Distinct: r.Distinct}
	for _, a := range r.Args {
		e, err := convertExpr(a)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, e)
	}
	return call, nil
}

func convertCase(r *rawCase) (Expr, error) {
	c := &CaseExpr{Pos: pos(r.Pos)}
	var err error
	if c.Operand, err = convertOptional(r.Operand); err != nil {
		return nil, err
	}
	for _, w := range r.Whens {
		when, err := convertExpr(w.When)
		if err != nil {
			return nil, err
		}
		then, err := convertExpr(w.Then)
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, WhenClause{When: when, Then: then})
	}
	if c.Else, err = convertOptional(r.Else); err != nil {
		return nil, err
	}
	return c, nil
}
