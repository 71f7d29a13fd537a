package rex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/quarry/internal/ir"
)

// Node is a sealed interface for relational scalar expressions.
// Only InputRef, RangeRef, FieldAccess, Literal, and Call implement it.
//
// Nodes are immutable; rewrites build new trees.
type Node interface {
	rexNode() // Sealed - only these types implement it
	Type() *ir.Type
	String() string
}

// InputRef references field Index of the input row.
type InputRef struct {
	Index int
	typ   *ir.Type
}

func (InputRef) rexNode() {}

func (r InputRef) Type() *ir.Type { return r.typ }

func (r InputRef) String() string { return "$" + strconv.Itoa(r.Index) }

// RangeRef stands for a whole input row starting at field Offset.
// It only survives translation as the target of a field access; the
// builder folds RangeRef.field into an InputRef.
type RangeRef struct {
	Offset int
	typ    *ir.Type
}

func (RangeRef) rexNode() {}

func (r RangeRef) Type() *ir.Type { return r.typ }

func (r RangeRef) String() string { return fmt.Sprintf("RANGE($%d)", r.Offset) }

// FieldAccess selects a field of a struct-typed expression.
type FieldAccess struct {
	Expr  Node
	Field ir.Field
}

func (FieldAccess) rexNode() {}

func (f FieldAccess) Type() *ir.Type { return f.Field.Type }

func (f FieldAccess) String() string { return f.Expr.String() + "." + f.Field.Name }

// Literal is a constant. Exact numerics carry Int or Decimal values;
// approximate numerics carry Float.
type Literal struct {
	Value ir.Value
	typ   *ir.Type
}

func (Literal) rexNode() {}

func (l Literal) Type() *ir.Type { return l.typ }

// IsExact reports whether the literal is an exact numeric.
func (l Literal) IsExact() bool { return l.typ.Name().IsExact() }

// IsApproximate reports whether the literal is an approximate numeric.
func (l Literal) IsApproximate() bool {
	return l.typ.Name().IsNumeric() && !l.typ.Name().IsExact()
}

func (l Literal) String() string {
	switch v := l.Value.(type) {
	case ir.Null:
		return "null:" + l.typ.Name().Name()
	case ir.String:
		return "'" + strings.ReplaceAll(string(v), "'", "''") + "'"
	case ir.Bool:
		return strconv.FormatBool(bool(v))
	case ir.Float:
		return strconv.FormatFloat(float64(v), 'E', -1, 64)
	default:
		return v.String()
	}
}

// Call applies an operator to operands.
type Call struct {
	Op       *Operator
	Operands []Node
	typ      *ir.Type
}

func (Call) rexNode() {}

func (c Call) Type() *ir.Type { return c.typ }

func (c Call) String() string {
	args := make([]string, len(c.Operands))
	for i, o := range c.Operands {
		args[i] = o.String()
	}
	return c.Op.Name + "(" + strings.Join(args, ", ") + ")"
}

// IsAlwaysTrue reports whether n is the literal TRUE.
func IsAlwaysTrue(n Node) bool {
	l, ok := n.(Literal)
	if !ok {
		return false
	}
	b, ok := l.Value.(ir.Bool)
	return ok && bool(b)
}
