package rex

import (
	"fmt"
	"math"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/quarry/internal/ir"
)

// Builder creates scalar expressions with inferred types.
// A Builder is bound to one type factory.
type Builder struct {
	tf *ir.TypeFactory
}

// NewBuilder creates a builder over tf.
func NewBuilder(tf *ir.TypeFactory) *Builder {
	return &Builder{tf: tf}
}

// TypeFactory returns the factory types are created with.
func (b *Builder) TypeFactory() *ir.TypeFactory { return b.tf }

// MakeInputRef references field index of rowType.
func (b *Builder) MakeInputRef(rowType *ir.Type, index int) InputRef {
	return InputRef{Index: index, typ: rowType.Fields()[index].Type}
}

// MakeInputRefOfType references field index with an explicit type.
func (b *Builder) MakeInputRefOfType(index int, t *ir.Type) InputRef {
	return InputRef{Index: index, typ: t}
}

// MakeRangeRef references a whole row of type rowType starting at offset.
func (b *Builder) MakeRangeRef(rowType *ir.Type, offset int) RangeRef {
	return RangeRef{Offset: offset, typ: rowType}
}

// MakeFieldAccess selects field name from a struct-typed expression.
// Access through a RangeRef folds into an InputRef.
func (b *Builder) MakeFieldAccess(expr Node, name string) (Node, error) {
	t := expr.Type()
	if !t.IsStruct() {
		return nil, fmt.Errorf("cannot access field %q of non-struct type %s", name, t)
	}
	f, ok := t.Field(name)
	if !ok {
		return nil, fmt.Errorf("type %s has no field %q", t, name)
	}
	if rr, ok := expr.(RangeRef); ok {
		return InputRef{Index: rr.Offset + f.Index, typ: f.Type}, nil
	}
	return FieldAccess{Expr: expr, Field: f}, nil
}

// MakeCall applies op, inferring the result type.
func (b *Builder) MakeCall(op *Operator, operands ...Node) (Node, error) {
	types := make([]*ir.Type, len(operands))
	for i, o := range operands {
		types[i] = o.Type()
	}
	t, err := op.InferReturnType(b.tf, types)
	if err != nil {
		return nil, err
	}
	return Call{Op: op, Operands: append([]Node(nil), operands...), typ: t}, nil
}

// MustCall is like MakeCall but panics on a type error.
// Use only where operand types are known to be valid.
func (b *Builder) MustCall(op *Operator, operands ...Node) Node {
	n, err := b.MakeCall(op, operands...)
	if err != nil {
		panic(err)
	}
	return n
}

// MakeCallOfType applies op with a caller-supplied result type.
func (b *Builder) MakeCallOfType(t *ir.Type, op *Operator, operands ...Node) Call {
	return Call{Op: op, Operands: append([]Node(nil), operands...), typ: t}
}

// MakeExactLiteral creates an exact numeric literal. Integral values that
// fit in 32 bits are INTEGER, in 64 bits BIGINT, otherwise DECIMAL with
// exactly as many digits as d has.
func (b *Builder) MakeExactLiteral(d *apd.Decimal) Literal {
	if d.Exponent >= 0 {
		if i, err := d.Int64(); err == nil {
			name := ir.TypeBigInt
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				name = ir.TypeInteger
			}
			return Literal{Value: ir.Int(i), typ: b.tf.CreateSQLType(name)}
		}
	}

	scale := 0
	if d.Exponent < 0 {
		scale = int(-d.Exponent)
	}
	precision := int(d.NumDigits())
	if d.Exponent > 0 {
		precision += int(d.Exponent)
	}
	precision = max(precision, scale, 1)
	t := b.tf.CreateSQLTypeWithScale(ir.TypeDecimal, precision, scale)
	return Literal{Value: ir.NewDecimal(d), typ: t}
}

// MakeIntLiteral creates an exact integral literal.
func (b *Builder) MakeIntLiteral(i int64) Literal {
	return b.MakeExactLiteral(apd.New(i, 0))
}

// MakeApproxLiteral creates an approximate (DOUBLE) literal.
func (b *Builder) MakeApproxLiteral(d *apd.Decimal) (Literal, error) {
	f, err := d.Float64()
	if err != nil {
		return Literal{}, fmt.Errorf("approximate literal %s: %w", d, err)
	}
	return Literal{Value: ir.Float(f), typ: b.tf.CreateSQLType(ir.TypeDouble)}, nil
}

// MakeBoolLiteral creates a BOOLEAN literal.
func (b *Builder) MakeBoolLiteral(v bool) Literal {
	return Literal{Value: ir.Bool(v), typ: b.tf.CreateSQLType(ir.TypeBoolean)}
}

// MakeCharLiteral creates a CHAR(n) literal where n is the rune count.
func (b *Builder) MakeCharLiteral(s string) Literal {
	n := len([]rune(s))
	return Literal{Value: ir.String(s), typ: b.tf.CreateSQLTypeWithPrecision(ir.TypeChar, max(n, 1))}
}

// MakeNullLiteral creates a NULL of type t (made nullable).
func (b *Builder) MakeNullLiteral(t *ir.Type) Literal {
	return Literal{Value: ir.Null{}, typ: b.tf.WithNullability(t, true)}
}

// MakeLiteral creates a literal with an explicit type.
func (b *Builder) MakeLiteral(v ir.Value, t *ir.Type) Literal {
	return Literal{Value: v, typ: t}
}

// MakeAnd combines conditions with AND, dropping literal TRUE operands.
// An empty list yields TRUE.
func (b *Builder) MakeAnd(conds ...Node) (Node, error) {
	var kept []Node
	for _, c := range conds {
		if c == nil || IsAlwaysTrue(c) {
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return b.MakeBoolLiteral(true), nil
	case 1:
		return kept[0], nil
	default:
		return b.MakeCall(And, kept...)
	}
}
