package sqlparse

import (
	"fmt"
	"strings"
)

// Pos is a 1-based source position.
type Pos struct {
	Line   int
	Column int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Query is a complete query: a select or set operation with optional
// ordering and limits.
type Query struct {
	Pos     Pos
	Body    SetExpr
	OrderBy []OrderItem
	// Limit and Offset are -1 when absent.
	Limit  int64
	Offset int64
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SetExpr is a sealed interface: *Select, *SetOp, or a parenthesized *Query.
type SetExpr interface {
	setExpr()
	Position() Pos
}

// SetOpKind distinguishes UNION, INTERSECT and EXCEPT.
type SetOpKind int

const (
	Union SetOpKind = iota
	Intersect
	Except
)

func (k SetOpKind) String() string {
	return [...]string{"UNION", "INTERSECT", "EXCEPT"}[k]
}

// SetOp combines two query bodies.
type SetOp struct {
	Pos         Pos
	Kind        SetOpKind
	All         bool
	Left, Right SetExpr
}

// Select is one SELECT block. From is nil for a FROM-less select.
type Select struct {
	Pos      Pos
	Distinct bool
	Items    []SelectItem
	From     FromItem
	Where    Expr
	GroupBy  []Expr
	Having   Expr
}

func (*Select) setExpr() {}
func (*SetOp) setExpr()  {}
func (*Query) setExpr()  {}

func (s *Select) Position() Pos { return s.Pos }
func (s *SetOp) Position() Pos  { return s.Pos }
func (q *Query) Position() Pos  { return q.Pos }

// SelectItem is "*", "t.*", or an expression with an optional alias.
type SelectItem struct {
	Pos       Pos
	Star      bool
	Qualifier string
	Expr      Expr
	Alias     string
}

// FromItem is a sealed interface: *TableRef, *SubqueryRef, or *Join.
type FromItem interface {
	fromItem()
	Position() Pos
}

// TableRef names a catalog table.
type TableRef struct {
	Pos   Pos
	Names []string
	Alias string
}

// SubqueryRef is a parenthesized query in FROM. Alias may be empty.
type SubqueryRef struct {
	Pos   Pos
	Query *Query
	Alias string
}

// JoinKind is the kind of a Join.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	CrossJoin
)

func (k JoinKind) String() string {
	return [...]string{"INNER", "LEFT", "CROSS"}[k]
}

// Join combines two from items. On is nil for cross joins.
type Join struct {
	Pos         Pos
	Kind        JoinKind
	Left, Right FromItem
	On          Expr
}

func (*TableRef) fromItem()    {}
func (*SubqueryRef) fromItem() {}
func (*Join) fromItem()        {}

func (t *TableRef) Position() Pos    { return t.Pos }
func (s *SubqueryRef) Position() Pos { return s.Pos }
func (j *Join) Position() Pos        { return j.Pos }

// Expr is a sealed interface for scalar expressions.
type Expr interface {
	expr()
	Position() Pos
	String() string
}

// ColumnRef is a possibly qualified column name.
type ColumnRef struct {
	Pos   Pos
	Names []string
}

// LiteralKind classifies a literal.
type LiteralKind int

const (
	LitInteger LiteralKind = iota
	LitDecimal
	LitApprox
	LitString
	LitBool
	LitNull
)

// Literal is a constant. Text holds the digits of numeric literals and
// the unquoted value of strings.
type Literal struct {
	Pos  Pos
	Kind LiteralKind
	Text string
	Bool bool
}

// BinaryExpr applies an infix operator: comparison, arithmetic, ||,
// AND or OR.
type BinaryExpr struct {
	Pos         Pos
	Op          string
	Left, Right Expr
}

// UnaryExpr is "-" or "NOT".
type UnaryExpr struct {
	Pos     Pos
	Op      string
	Operand Expr
}

// IsNullExpr is "x IS [NOT] NULL".
type IsNullExpr struct {
	Pos     Pos
	Operand Expr
	Not     bool
}

// BetweenExpr is "x [NOT] BETWEEN low AND high".
type BetweenExpr struct {
	Pos       Pos
	Operand   Expr
	Low, High Expr
	Not       bool
}

// InExpr is "x [NOT] IN (a, b, ...)".
type InExpr struct {
	Pos     Pos
	Operand Expr
	List    []Expr
	Not     bool
}

// FuncCall is a function or aggregate call. Star marks COUNT(*).
type FuncCall struct {
	Pos      Pos
	Name     string
	Args     []Expr
	Star     bool
	Distinct bool
}

// CaseExpr is a searched or simple CASE. Operand is nil for searched CASE.
type CaseExpr struct {
	Pos     Pos
	Operand Expr
	Whens   []WhenClause
	Else    Expr
}

// WhenClause is one WHEN ... THEN ... arm.
type WhenClause struct {
	When, Then Expr
}

func (*ColumnRef) expr()   {}
func (*Literal) expr()     {}
func (*BinaryExpr) expr()  {}
func (*UnaryExpr) expr()   {}
func (*IsNullExpr) expr()  {}
func (*BetweenExpr) expr() {}
func (*InExpr) expr()      {}
func (*FuncCall) expr()    {}
func (*CaseExpr) expr()    {}

func (e *ColumnRef) Position() Pos   { return e.Pos }
func (e *Literal) Position() Pos     { return e.Pos }
func (e *BinaryExpr) Position() Pos  { return e.Pos }
func (e *UnaryExpr) Position() Pos   { return e.Pos }
func (e *IsNullExpr) Position() Pos  { return e.Pos }
func (e *BetweenExpr) Position() Pos { return e.Pos }
func (e *InExpr) Position() Pos      { return e.Pos }
func (e *FuncCall) Position() Pos    { return e.Pos }
func (e *CaseExpr) Position() Pos    { return e.Pos }

func (e *ColumnRef) String() string { return strings.Join(e.Names, ".") }

func (e *Literal) String() string {
	switch e.Kind {
	case LitString:
		return "'" + strings.ReplaceAll(e.Text, "'", "''") + "'"
	case LitBool:
		if e.Bool {
			return "TRUE"
		}
		return "FALSE"
	case LitNull:
		return "NULL"
	default:
		return e.Text
	}
}

func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}

func (e *UnaryExpr) String() string {
	if e.Op == "NOT" {
		return "(NOT " + e.Operand.String() + ")"
	}
	return "(" + e.Op + e.Operand.String() + ")"
}

func (e *IsNullExpr) String() string {
	if e.Not {
		return "(" + e.Operand.String() + " IS NOT NULL)"
	}
	return "(" + e.Operand.String() + " IS NULL)"
}

func (e *BetweenExpr) String() string {
	not := ""
	if e.Not {
		not = "NOT "
	}
	return "(" + e.Operand.String() + " " + not + "BETWEEN " + e.Low.String() + " AND " + e.High.String() + ")"
}

func (e *InExpr) String() string {
	not := ""
	if e.Not {
		not = "NOT "
	}
	return "(" + e.Operand.String() + " " + not + "IN (" + joinExprs(e.List) + "))"
}

func (e *FuncCall) String() string {
	switch {
	case e.Star:
		return e.Name + "(*)"
	case e.Distinct:
		return e.Name + "(DISTINCT " + joinExprs(e.Args) + ")"
	default:
		return e.Name + "(" + joinExprs(e.Args) + ")"
	}
}

func (e *CaseExpr) String() string {
	var b strings.Builder
	b.WriteString("CASE")
	if e.Operand != nil {
		b.WriteString(" " + e.Operand.String())
	}
	for _, w := range e.Whens {
		b.WriteString(" WHEN " + w.When.String() + " THEN " + w.Then.String())
	}
	if e.Else != nil {
		b.WriteString(" ELSE " + e.Else.String())
	}
	b.WriteString(" END")
	return b.String()
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Walk visits e and its operands depth-first. Returning false from fn
// skips the operands of that expression.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Operands(e) {
		Walk(c, fn)
	}
}

// Operands returns the direct sub-expressions of e in source order.
func Operands(e Expr) []Expr {
	switch x := e.(type) {
	case *BinaryExpr:
		return []Expr{x.Left, x.Right}
	case *UnaryExpr:
		return []Expr{x.Operand}
	case *IsNullExpr:
		return []Expr{x.Operand}
	case *BetweenExpr:
		return []Expr{x.Operand, x.Low, x.High}
	case *InExpr:
		return append([]Expr{x.Operand}, x.List...)
	case *FuncCall:
		return x.Args
	case *CaseExpr:
		var out []Expr
		if x.Operand != nil {
			out = append(out, x.Operand)
		}
		for _, w := range x.Whens {
			out = append(out, w.When, w.Then)
		}
		if x.Else != nil {
			out = append(out, x.Else)
		}
		return out
	}
	return nil
}
