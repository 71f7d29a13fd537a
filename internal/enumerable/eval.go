package enumerable

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rex"
)

// Scalar evaluates an expression against one input row.
type Scalar func(row ir.Row) (ir.Value, error)

// CompileScalar turns an expression into a closure. Unsupported
// expressions fail here, never at execution time.
func CompileScalar(n rex.Node) (Scalar, error) {
	switch v := n.(type) {
	case rex.InputRef:
		i := v.Index
		return func(row ir.Row) (ir.Value, error) {
			if i >= len(row) {
				return nil, fmt.Errorf("input reference $%d out of range for row of %d fields", i, len(row))
			}
			return row[i], nil
		}, nil
	case rex.Literal:
		val := v.Value
		return func(ir.Row) (ir.Value, error) { return val, nil }, nil
	case rex.Call:
		return compileCall(v)
	default:
		return nil, fmt.Errorf("cannot evaluate %s", n)
	}
}

func compileOperands(ops []rex.Node) ([]Scalar, error) {
	out := make([]Scalar, len(ops))
	for i, o := range ops {
		s, err := CompileScalar(o)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

var arithOps = map[rex.Kind]ir.ArithOp{
	rex.KindPlus:   ir.OpAdd,
	rex.KindMinus:  ir.OpSub,
	rex.KindTimes:  ir.OpMul,
	rex.KindDivide: ir.OpDiv,
}

// checked rejects an arithmetic result that does not fit the call's type.
func checked(t *ir.Type, v ir.Value, err error) (ir.Value, error) {
	if err != nil {
		return nil, err
	}
	if err := ir.CheckRange(t, v); err != nil {
		return nil, err
	}
	return v, nil
}

func compileCall(c rex.Call) (Scalar, error) {
	args, err := compileOperands(c.Operands)
	if err != nil {
		return nil, err
	}
	switch k := c.Op.Kind; k {
	case rex.KindEquals, rex.KindNotEquals, rex.KindLessThan, rex.KindLessThanOrEqual,
		rex.KindGreaterThan, rex.KindGreaterThanOrEqual:
		return binary(args, func(a, b ir.Value) (ir.Value, error) {
			cmp, ok := ir.Compare(a, b)
			if !ok {
				return nil, fmt.Errorf("cannot compare %s and %s", a, b)
			}
			return ir.Bool(comparison(k, cmp)), nil
		}), nil

	case rex.KindPlus, rex.KindMinus, rex.KindTimes, rex.KindDivide:
		op := arithOps[k]
		return binary(args, func(a, b ir.Value) (ir.Value, error) {
			return checked(c.Type(), ir.Arith(op, a, b))
		}), nil

	case rex.KindNegate:
		return unary(args[0], func(v ir.Value) (ir.Value, error) {
			return checked(c.Type(), ir.Arith(ir.OpSub, ir.Int(0), v))
		}), nil

	case rex.KindAnd:
		return func(row ir.Row) (ir.Value, error) {
			sawNull := false
			for _, a := range args {
				v, err := a(row)
				if err != nil {
					return nil, err
				}
				switch v {
				case ir.Bool(false):
					return ir.Bool(false), nil
				case ir.Bool(true):
				default:
					sawNull = true
				}
			}
			if sawNull {
				return ir.Null{}, nil
			}
			return ir.Bool(true), nil
		}, nil

	case rex.KindOr:
		return func(row ir.Row) (ir.Value, error) {
			sawNull := false
			for _, a := range args {
				v, err := a(row)
				if err != nil {
					return nil, err
				}
				switch v {
				case ir.Bool(true):
					return ir.Bool(true), nil
				case ir.Bool(false):
				default:
					sawNull = true
				}
			}
			if sawNull {
				return ir.Null{}, nil
			}
			return ir.Bool(false), nil
		}, nil

	case rex.KindNot:
		return unary(args[0], func(v ir.Value) (ir.Value, error) {
			b, ok := v.(ir.Bool)
			if !ok {
				return nil, fmt.Errorf("NOT applied to %s", v)
			}
			return !b, nil
		}), nil

	case rex.KindIsNull, rex.KindIsNotNull:
		want := k == rex.KindIsNull
		arg := args[0]
		return func(row ir.Row) (ir.Value, error) {
			v, err := arg(row)
			if err != nil {
				return nil, err
			}
			return ir.Bool(ir.IsNull(v) == want), nil
		}, nil

	case rex.KindUpper, rex.KindLower:
		upper := k == rex.KindUpper
		return unary(args[0], func(v ir.Value) (ir.Value, error) {
			s, ok := v.(ir.String)
			if !ok {
				return nil, fmt.Errorf("%s applied to %s", c.Op, v)
			}
			caser := cases.Lower(language.Und)
			if upper {
				caser = cases.Upper(language.Und)
			}
			return ir.String(caser.String(string(s))), nil
		}), nil

	case rex.KindCharLength:
		return unary(args[0], func(v ir.Value) (ir.Value, error) {
			s, ok := v.(ir.String)
			if !ok {
				return nil, fmt.Errorf("CHAR_LENGTH applied to %s", v)
			}
			return ir.Int(utf8.RuneCountInString(string(s))), nil
		}), nil

	case rex.KindConcat:
		return binary(args, func(a, b ir.Value) (ir.Value, error) {
			return ir.String(a.String() + b.String()), nil
		}), nil

	case rex.KindCase:
		return func(row ir.Row) (ir.Value, error) {
			i := 0
			for ; i+1 < len(args); i += 2 {
				cond, err := args[i](row)
				if err != nil {
					return nil, err
				}
				if cond == ir.Bool(true) {
					return args[i+1](row)
				}
			}
			if i < len(args) {
				return args[i](row)
			}
			return ir.Null{}, nil
		}, nil
	}
	return nil, fmt.Errorf("no implementation for operator %s", c.Op)
}

func comparison(k rex.Kind, cmp int) bool {
	switch k {
	case rex.KindEquals:
		return cmp == 0
	case rex.KindNotEquals:
		return cmp != 0
	case rex.KindLessThan:
		return cmp < 0
	case rex.KindLessThanOrEqual:
		return cmp <= 0
	case rex.KindGreaterThan:
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// unary propagates NULL, then applies fn.
func unary(arg Scalar, fn func(ir.Value) (ir.Value, error)) Scalar {
	return func(row ir.Row) (ir.Value, error) {
		v, err := arg(row)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(v) {
			return ir.Null{}, nil
		}
		return fn(v)
	}
}

// binary evaluates both operands, propagates NULL, then applies fn.
func binary(args []Scalar, fn func(a, b ir.Value) (ir.Value, error)) Scalar {
	left, right := args[0], args[1]
	return func(row ir.Row) (ir.Value, error) {
		a, err := left(row)
		if err != nil {
			return nil, err
		}
		b, err := right(row)
		if err != nil {
			return nil, err
		}
		if ir.IsNull(a) || ir.IsNull(b) {
			return ir.Null{}, nil
		}
		return fn(a, b)
	}
}

// Predicate compiles a condition; a row passes only when it is TRUE.
func Predicate(n rex.Node) (func(ir.Row) (bool, error), error) {
	s, err := CompileScalar(n)
	if err != nil {
		return nil, err
	}
	return func(row ir.Row) (bool, error) {
		v, err := s(row)
		if err != nil {
			return false, err
		}
		return v == ir.Bool(true), nil
	}, nil
}
