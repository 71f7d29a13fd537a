// Package translate lowers host expression trees (package linq) to
// relational algebra: scalar expressions through a chain of parameter
// scopes, and queryable operator chains to logical nodes.
package translate

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/cockroachdb/apd/v3"

	"github.com/roach88/quarry/internal/linq"
	"github.com/roach88/quarry/internal/rex"
)

// Error reports a host construct with no relational equivalent.
type Error struct {
	// Construct is the offending expression or query operator, as text.
	Construct string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Construct != "" {
		msg += ": " + e.Construct
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsError reports whether err is (or wraps) a translation failure.
func IsError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

// ScalarTranslator converts host expressions into relational scalar
// expressions. Implementations are immutable scopes: Bind layers a new
// frame without changing the receiver.
type ScalarTranslator interface {
	ToRex(e linq.Expr) (rex.Node, error)
	// Bind returns a child scope mapping params[i] to values[i].
	// Lengths must match.
	Bind(params []*linq.ParameterExpr, values []rex.Node) ScalarTranslator
}

// scope is one frame of the parameter chain. The root frame has no parent
// and no bindings.
type scope struct {
	builder *rex.Builder
	parent  *scope
	params  []*linq.ParameterExpr
	values  []rex.Node
}

// Empty returns the root scope. Any parameter reference fails against it.
func Empty(b *rex.Builder) ScalarTranslator {
	return &scope{builder: b}
}

func (s *scope) Bind(params []*linq.ParameterExpr, values []rex.Node) ScalarTranslator {
	if len(params) != len(values) {
		panic(fmt.Sprintf("translate: bind %d parameters to %d values", len(params), len(values)))
	}
	return &scope{
		builder: s.builder,
		parent:  s,
		params:  append([]*linq.ParameterExpr(nil), params...),
		values:  append([]rex.Node(nil), values...),
	}
}

func (s *scope) lookup(p *linq.ParameterExpr) (rex.Node, bool) {
	for f := s; f != nil; f = f.parent {
		for i, bound := range f.params {
			if bound == p {
				return f.values[i], true
			}
		}
	}
	return nil, false
}

var binaryOps = map[linq.Kind]*rex.Operator{
	linq.KindEqual:              rex.Equals,
	linq.KindNotEqual:           rex.NotEquals,
	linq.KindGreaterThan:        rex.GreaterThan,
	linq.KindGreaterThanOrEqual: rex.GreaterThanOrEqual,
	linq.KindLessThan:           rex.LessThan,
	linq.KindLessThanOrEqual:    rex.LessThanOrEqual,
	linq.KindAndAlso:            rex.And,
	linq.KindOrElse:             rex.Or,
	linq.KindAdd:                rex.Plus,
	linq.KindSubtract:           rex.Minus,
	linq.KindMultiply:           rex.Times,
	linq.KindDivide:             rex.Divide,
}

var methodOps = map[*linq.Method]*rex.Operator{
	linq.MethodToUpper:   rex.Upper,
	linq.MethodToLower:   rex.Lower,
	linq.MethodRuneCount: rex.CharLength,
	linq.MethodConcat:    rex.Concat,
}

func (s *scope) ToRex(e linq.Expr) (rex.Node, error) {
	switch v := e.(type) {
	case *linq.ParameterExpr:
		if n, ok := s.lookup(v); ok {
			return n, nil
		}
		return nil, &Error{Message: "unknown parameter", Construct: v.Name}

	case *linq.MemberExpr:
		target, err := s.ToRex(v.Target)
		if err != nil {
			return nil, err
		}
		n, err := s.builder.MakeFieldAccess(target, v.Member)
		if err != nil {
			return nil, &Error{Message: "member access", Construct: v.String(), Err: err}
		}
		return n, nil

	case *linq.BinaryExpr:
		op, ok := binaryOps[v.Kind()]
		if !ok {
			return nil, unsupported(e)
		}
		return s.call(e, op, v.Left, v.Right)

	case *linq.UnaryExpr:
		if v.Kind() == linq.KindNot {
			return s.call(e, rex.Not, v.Operand)
		}
		return s.call(e, rex.Negate, v.Operand)

	case *linq.CallExpr:
		op, ok := methodOps[v.Method]
		if !ok {
			return nil, &Error{Message: "method has no relational equivalent", Construct: v.Method.Name}
		}
		args := v.Args
		if v.Target != nil {
			args = append([]linq.Expr{v.Target}, args...)
		}
		return s.call(e, op, args...)

	case *linq.ConditionalExpr:
		return s.call(e, rex.Case, v.Test, v.IfTrue, v.IfFalse)

	case *linq.ConstantExpr:
		return s.constant(v)

	default:
		return nil, unsupported(e)
	}
}

func unsupported(e linq.Expr) error {
	return &Error{Message: "unsupported expression kind " + e.Kind().String(), Construct: e.String()}
}

func (s *scope) call(e linq.Expr, op *rex.Operator, args ...linq.Expr) (rex.Node, error) {
	operands := make([]rex.Node, len(args))
	for i, a := range args {
		n, err := s.ToRex(a)
		if err != nil {
			return nil, err
		}
		operands[i] = n
	}
	n, err := s.builder.MakeCall(op, operands...)
	if err != nil {
		return nil, &Error{Message: "operand types", Construct: e.String(), Err: err}
	}
	return n, nil
}

// constant keeps the exact/approximate distinction: floats become DOUBLE
// literals, integers and decimals become exact literals with every digit.
func (s *scope) constant(c *linq.ConstantExpr) (rex.Node, error) {
	b := s.builder
	switch v := c.Value.(type) {
	case *apd.Decimal:
		return b.MakeExactLiteral(v), nil
	case apd.Decimal:
		return b.MakeExactLiteral(&v), nil
	case bool:
		return b.MakeBoolLiteral(v), nil
	case string:
		return b.MakeCharLiteral(v), nil
	}

	rv := reflect.ValueOf(c.Value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return b.MakeExactLiteral(apd.New(rv.Int(), 0)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		d, _, err := apd.NewFromString(strconv.FormatUint(rv.Uint(), 10))
		if err != nil {
			return nil, &Error{Message: "constant", Construct: c.String(), Err: err}
		}
		return b.MakeExactLiteral(d), nil
	case reflect.Float32, reflect.Float64:
		d, err := new(apd.Decimal).SetFloat64(rv.Float())
		if err != nil {
			return nil, &Error{Message: "constant", Construct: c.String(), Err: err}
		}
		lit, err := b.MakeApproxLiteral(d)
		if err != nil {
			return nil, &Error{Message: "constant", Construct: c.String(), Err: err}
		}
		return lit, nil
	}
	return nil, &Error{Message: fmt.Sprintf("constant of type %T has no relational literal", c.Value), Construct: c.String()}
}
