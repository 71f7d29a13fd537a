package rex

import (
	"fmt"

	"github.com/roach88/quarry/internal/ir"
)

// Kind identifies an operator independently of its display name.
type Kind int

const (
	KindEquals Kind = iota
	KindNotEquals
	KindLessThan
	KindLessThanOrEqual
	KindGreaterThan
	KindGreaterThanOrEqual
	KindPlus
	KindMinus
	KindTimes
	KindDivide
	KindNegate
	KindAnd
	KindOr
	KindNot
	KindIsNull
	KindIsNotNull
	KindUpper
	KindLower
	KindCharLength
	KindConcat
	KindCase
)

// Operator is a scalar operator with return-type inference.
type Operator struct {
	Name  string
	Kind  Kind
	infer func(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error)
	arity int // -1 for variadic
}

// InferReturnType derives the result type of applying the operator to
// operands of the given types.
func (op *Operator) InferReturnType(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	if op.arity >= 0 && len(operands) != op.arity {
		return nil, fmt.Errorf("%s expects %d operands, got %d", op.Name, op.arity, len(operands))
	}
	return op.infer(tf, operands)
}

// IsComparison reports whether the operator is one of = <> < <= > >=.
func (op *Operator) IsComparison() bool {
	return op.Kind >= KindEquals && op.Kind <= KindGreaterThanOrEqual
}

func (op *Operator) String() string { return op.Name }

var (
	Equals             = &Operator{Name: "=", Kind: KindEquals, infer: inferComparison, arity: 2}
	NotEquals          = &Operator{Name: "<>", Kind: KindNotEquals, infer: inferComparison, arity: 2}
	LessThan           = &Operator{Name: "<", Kind: KindLessThan, infer: inferComparison, arity: 2}
	LessThanOrEqual    = &Operator{Name: "<=", Kind: KindLessThanOrEqual, infer: inferComparison, arity: 2}
	GreaterThan        = &Operator{Name: ">", Kind: KindGreaterThan, infer: inferComparison, arity: 2}
	GreaterThanOrEqual = &Operator{Name: ">=", Kind: KindGreaterThanOrEqual, infer: inferComparison, arity: 2}

	Plus   = &Operator{Name: "+", Kind: KindPlus, infer: inferArithmetic(KindPlus), arity: 2}
	Minus  = &Operator{Name: "-", Kind: KindMinus, infer: inferArithmetic(KindMinus), arity: 2}
	Times  = &Operator{Name: "*", Kind: KindTimes, infer: inferArithmetic(KindTimes), arity: 2}
	Divide = &Operator{Name: "/", Kind: KindDivide, infer: inferArithmetic(KindDivide), arity: 2}
	Negate = &Operator{Name: "-", Kind: KindNegate, infer: inferNegate, arity: 1}

	And = &Operator{Name: "AND", Kind: KindAnd, infer: inferBoolean, arity: -1}
	Or  = &Operator{Name: "OR", Kind: KindOr, infer: inferBoolean, arity: -1}
	Not = &Operator{Name: "NOT", Kind: KindNot, infer: inferBoolean, arity: 1}

	IsNull    = &Operator{Name: "IS NULL", Kind: KindIsNull, infer: inferNullTest, arity: 1}
	IsNotNull = &Operator{Name: "IS NOT NULL", Kind: KindIsNotNull, infer: inferNullTest, arity: 1}

	Upper      = &Operator{Name: "UPPER", Kind: KindUpper, infer: inferSameCharacter, arity: 1}
	Lower      = &Operator{Name: "LOWER", Kind: KindLower, infer: inferSameCharacter, arity: 1}
	CharLength = &Operator{Name: "CHAR_LENGTH", Kind: KindCharLength, infer: inferCharLength, arity: 1}
	Concat     = &Operator{Name: "||", Kind: KindConcat, infer: inferConcat, arity: 2}

	// Case operands are when1, then1, ..., whenN, thenN[, else].
	Case = &Operator{Name: "CASE", Kind: KindCase, infer: inferCase, arity: -1}
)

// Lookup finds a function-syntax operator by upper-case name.
func Lookup(name string) (*Operator, bool) {
	switch name {
	case "UPPER":
		return Upper, true
	case "LOWER":
		return Lower, true
	case "CHAR_LENGTH", "CHARACTER_LENGTH":
		return CharLength, true
	}
	return nil, false
}

func anyNullable(types []*ir.Type) bool {
	for _, t := range types {
		if t.IsNullable() {
			return true
		}
	}
	return false
}

func canCompare(a, b *ir.Type) bool {
	an, bn := a.Name(), b.Name()
	switch {
	case an == ir.TypeNull || bn == ir.TypeNull || an == ir.TypeAny || bn == ir.TypeAny:
		return true
	case an.IsNumeric() && bn.IsNumeric():
		return true
	case an.IsCharacter() && bn.IsCharacter():
		return true
	case an == bn && !a.IsStruct():
		return true
	}
	return false
}

func inferComparison(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	if !canCompare(operands[0], operands[1]) {
		return nil, fmt.Errorf("cannot compare %s with %s", operands[0].Name(), operands[1].Name())
	}
	return tf.WithNullability(tf.CreateSQLType(ir.TypeBoolean), anyNullable(operands)), nil
}

func inferBoolean(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("boolean operator needs at least one operand")
	}
	for _, t := range operands {
		if n := t.Name(); n != ir.TypeBoolean && n != ir.TypeNull && n != ir.TypeAny {
			return nil, fmt.Errorf("expected BOOLEAN operand, got %s", n)
		}
	}
	return tf.WithNullability(tf.CreateSQLType(ir.TypeBoolean), anyNullable(operands)), nil
}

func inferNullTest(tf *ir.TypeFactory, _ []*ir.Type) (*ir.Type, error) {
	return tf.CreateSQLType(ir.TypeBoolean), nil
}

// decimalPrecision is the number of decimal digits an integral type needs.
func decimalPrecision(t *ir.Type) (precision, scale int) {
	switch t.Name() {
	case ir.TypeTinyInt:
		return 3, 0
	case ir.TypeSmallInt:
		return 5, 0
	case ir.TypeInteger:
		return 10, 0
	case ir.TypeBigInt:
		return 19, 0
	default:
		p, s := t.Precision(), t.Scale()
		if p == ir.Unspecified {
			p = ir.DefaultDecimalPrecision
		}
		if s == ir.Unspecified {
			s = ir.DefaultDecimalScale
		}
		return p, s
	}
}

func inferArithmetic(kind Kind) func(*ir.TypeFactory, []*ir.Type) (*ir.Type, error) {
	return func(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
		a, b := operands[0], operands[1]
		nullable := anyNullable(operands)
		if a.Name() == ir.TypeNull || b.Name() == ir.TypeNull {
			other := a
			if a.Name() == ir.TypeNull {
				other = b
			}
			if other.Name() == ir.TypeNull {
				return tf.WithNullability(tf.CreateSQLType(ir.TypeInteger), true), nil
			}
			return tf.WithNullability(other, true), nil
		}
		if !a.Name().IsNumeric() || !b.Name().IsNumeric() {
			return nil, fmt.Errorf("cannot apply arithmetic to %s and %s", a.Name(), b.Name())
		}

		var result *ir.Type
		switch {
		case !a.Name().IsExact() || !b.Name().IsExact():
			result = tf.CreateSQLType(ir.TypeDouble)
		case a.Name() == ir.TypeDecimal || b.Name() == ir.TypeDecimal:
			p1, s1 := decimalPrecision(a)
			p2, s2 := decimalPrecision(b)
			var p, s int
			switch kind {
			case KindTimes:
				p, s = p1+p2, s1+s2
			case KindDivide:
				s = max(6, s1+p2+1)
				p = p1 - s1 + s2 + s
			default:
				s = max(s1, s2)
				p = max(p1-s1, p2-s2) + s + 1
			}
			if p > ir.MaxDecimalPrecision {
				p = ir.MaxDecimalPrecision
			}
			s = min(s, p)
			result = tf.CreateSQLTypeWithScale(ir.TypeDecimal, p, s)
		default:
			result = a
			if b.Name() > a.Name() {
				result = b
			}
			result = tf.CreateSQLType(result.Name())
		}
		return tf.WithNullability(result, nullable), nil
	}
}

func inferNegate(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	if n := operands[0].Name(); !n.IsNumeric() && n != ir.TypeNull {
		return nil, fmt.Errorf("cannot negate %s", n)
	}
	return operands[0], nil
}

func inferSameCharacter(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	t := operands[0]
	if !t.Name().IsCharacter() && t.Name() != ir.TypeNull {
		return nil, fmt.Errorf("expected character operand, got %s", t.Name())
	}
	return t, nil
}

func inferCharLength(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	t := operands[0]
	if !t.Name().IsCharacter() && t.Name() != ir.TypeNull {
		return nil, fmt.Errorf("expected character operand, got %s", t.Name())
	}
	return tf.WithNullability(tf.CreateSQLType(ir.TypeInteger), t.IsNullable()), nil
}

func inferConcat(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	precision := 0
	for _, t := range operands {
		if !t.Name().IsCharacter() && t.Name() != ir.TypeNull {
			return nil, fmt.Errorf("cannot concatenate %s", t.Name())
		}
		if precision >= 0 {
			if t.Precision() == ir.Unspecified {
				precision = ir.Unspecified
			} else {
				precision += t.Precision()
			}
		}
	}
	return tf.WithNullability(tf.CreateSQLTypeWithPrecision(ir.TypeVarchar, precision), anyNullable(operands)), nil
}

func inferCase(tf *ir.TypeFactory, operands []*ir.Type) (*ir.Type, error) {
	if len(operands) < 2 {
		return nil, fmt.Errorf("CASE needs at least one WHEN/THEN pair")
	}
	var values []*ir.Type
	for i := 0; i+1 < len(operands); i += 2 {
		if n := operands[i].Name(); n != ir.TypeBoolean && n != ir.TypeNull {
			return nil, fmt.Errorf("CASE condition must be BOOLEAN, got %s", n)
		}
		values = append(values, operands[i+1])
	}
	hasElse := len(operands)%2 == 1
	if hasElse {
		values = append(values, operands[len(operands)-1])
	}
	t, ok := tf.LeastRestrictive(values...)
	if !ok {
		return nil, fmt.Errorf("CASE branches have incompatible types")
	}
	if !hasElse {
		t = tf.WithNullability(t, true)
	}
	return t, nil
}
