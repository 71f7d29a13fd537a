package ir

import (
	"errors"
	"fmt"
	"math"

	"github.com/cockroachdb/apd/v3"
)

// ArithOp identifies a binary arithmetic operation.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	default:
		return fmt.Sprintf("ArithOp(%d)", int(op))
	}
}

// ErrDivisionByZero is returned by Arith for exact division by zero.
var ErrDivisionByZero = errors.New("division by zero")

// decimalContext is used for exact arithmetic. 34 digits matches DECIMAL128.
var decimalContext = apd.BaseContext.WithPrecision(34)

// Arith applies op to two values with SQL semantics:
// NULL in, NULL out; Int op Int stays Int (division truncates);
// any Float operand yields Float; otherwise the result is an exact Decimal.
func Arith(op ArithOp, a, b Value) (Value, error) {
	if IsNull(a) || IsNull(b) {
		return Null{}, nil
	}
	if !isNumeric(a) || !isNumeric(b) {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", op, a, b)
	}

	ai, aInt := a.(Int)
	bi, bInt := b.(Int)
	if aInt && bInt {
		return intArith(op, int64(ai), int64(bi))
	}

	_, aFloat := a.(Float)
	_, bFloat := b.(Float)
	if aFloat || bFloat {
		x, _ := ToFloat64(a)
		y, _ := ToFloat64(b)
		switch op {
		case OpAdd:
			return Float(x + y), nil
		case OpSub:
			return Float(x - y), nil
		case OpMul:
			return Float(x * y), nil
		case OpDiv:
			return Float(x / y), nil
		}
		return nil, fmt.Errorf("unknown arithmetic operator %s", op)
	}

	x, err := toApd(a)
	if err != nil {
		return nil, err
	}
	y, err := toApd(b)
	if err != nil {
		return nil, err
	}
	res := new(apd.Decimal)
	switch op {
	case OpAdd:
		_, err = decimalContext.Add(res, x, y)
	case OpSub:
		_, err = decimalContext.Sub(res, x, y)
	case OpMul:
		_, err = decimalContext.Mul(res, x, y)
	case OpDiv:
		if y.IsZero() {
			return nil, ErrDivisionByZero
		}
		_, err = decimalContext.Quo(res, x, y)
	default:
		return nil, fmt.Errorf("unknown arithmetic operator %s", op)
	}
	if err != nil {
		return nil, fmt.Errorf("decimal %s: %w", op, err)
	}
	return Decimal{d: res}, nil
}

// intRanges bounds the exact integer types narrower than int64.
var intRanges = map[TypeName][2]int64{
	TypeTinyInt:  {math.MinInt8, math.MaxInt8},
	TypeSmallInt: {math.MinInt16, math.MaxInt16},
	TypeInteger:  {math.MinInt32, math.MaxInt32},
}

// CheckRange reports an error when v is an Int that does not fit the
// integer type t. Other values and types always fit.
func CheckRange(t *Type, v Value) error {
	i, ok := v.(Int)
	if !ok || t == nil {
		return nil
	}
	r, ok := intRanges[t.Name()]
	if !ok {
		return nil
	}
	if int64(i) < r[0] || int64(i) > r[1] {
		return fmt.Errorf("integer overflow: %d out of range for %s", int64(i), t.Name().Name())
	}
	return nil
}

func intArith(op ArithOp, x, y int64) (Value, error) {
	switch op {
	case OpAdd:
		r := x + y
		if (r > x) != (y > 0) {
			return nil, fmt.Errorf("integer overflow: %d + %d", x, y)
		}
		return Int(r), nil
	case OpSub:
		r := x - y
		if (r < x) != (y > 0) {
			return nil, fmt.Errorf("integer overflow: %d - %d", x, y)
		}
		return Int(r), nil
	case OpMul:
		if x == 0 || y == 0 {
			return Int(0), nil
		}
		r := x * y
		if r/y != x || (x == -1 && y == math.MinInt64) || (y == -1 && x == math.MinInt64) {
			return nil, fmt.Errorf("integer overflow: %d * %d", x, y)
		}
		return Int(r), nil
	case OpDiv:
		if y == 0 {
			return nil, ErrDivisionByZero
		}
		return Int(x / y), nil
	default:
		return nil, fmt.Errorf("unknown arithmetic operator %s", op)
	}
}
