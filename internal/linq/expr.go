// Package linq models host-language expression trees and the queryable
// operator chains built from them.
package linq

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Kind identifies the shape of an expression node.
type Kind int

const (
	KindConstant Kind = iota
	KindParameter
	KindMemberAccess
	KindEqual
	KindNotEqual
	KindGreaterThan
	KindGreaterThanOrEqual
	KindLessThan
	KindLessThanOrEqual
	KindAndAlso
	KindOrElse
	KindAdd
	KindSubtract
	KindMultiply
	KindDivide
	KindModulo
	KindNot
	KindNegate
	KindCall
	KindLambda
	KindNew
	KindConditional
)

var kindNames = [...]string{
	KindConstant:           "Constant",
	KindParameter:          "Parameter",
	KindMemberAccess:       "MemberAccess",
	KindEqual:              "Equal",
	KindNotEqual:           "NotEqual",
	KindGreaterThan:        "GreaterThan",
	KindGreaterThanOrEqual: "GreaterThanOrEqual",
	KindLessThan:           "LessThan",
	KindLessThanOrEqual:    "LessThanOrEqual",
	KindAndAlso:            "AndAlso",
	KindOrElse:             "OrElse",
	KindAdd:                "Add",
	KindSubtract:           "Subtract",
	KindMultiply:           "Multiply",
	KindDivide:             "Divide",
	KindModulo:             "Modulo",
	KindNot:                "Not",
	KindNegate:             "Negate",
	KindCall:               "Call",
	KindLambda:             "Lambda",
	KindNew:                "New",
	KindConditional:        "Conditional",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

var binarySymbols = map[Kind]string{
	KindEqual:              "==",
	KindNotEqual:           "!=",
	KindGreaterThan:        ">",
	KindGreaterThanOrEqual: ">=",
	KindLessThan:           "<",
	KindLessThanOrEqual:    "<=",
	KindAndAlso:            "&&",
	KindOrElse:             "||",
	KindAdd:                "+",
	KindSubtract:           "-",
	KindMultiply:           "*",
	KindDivide:             "/",
	KindModulo:             "%",
}

// Expr is a host expression tree node.
type Expr interface {
	Kind() Kind
	// Type is the Go type the expression evaluates to.
	Type() reflect.Type
	String() string
}

var (
	boolType    = reflect.TypeFor[bool]()
	decimalType = reflect.TypeFor[apd.Decimal]()
)

// ConstantExpr is a literal value.
type ConstantExpr struct {
	Value any
	typ   reflect.Type
}

// Constant creates a constant. *apd.Decimal values are exact decimals.
func Constant(v any) *ConstantExpr {
	t := reflect.TypeOf(v)
	if d, ok := v.(*apd.Decimal); ok && d != nil {
		t = decimalType
	}
	return &ConstantExpr{Value: v, typ: t}
}

func (e *ConstantExpr) Kind() Kind         { return KindConstant }
func (e *ConstantExpr) Type() reflect.Type { return e.typ }
func (e *ConstantExpr) String() string {
	switch v := e.Value.(type) {
	case string:
		return strconv.Quote(v)
	case *apd.Decimal:
		return v.String() + "m"
	case nil:
		return "nil"
	default:
		return fmt.Sprint(v)
	}
}

// ParameterExpr is a lambda parameter. Parameters are compared by identity.
type ParameterExpr struct {
	Name string
	typ  reflect.Type
}

// Parameter creates a parameter of type t.
func Parameter(name string, t reflect.Type) *ParameterExpr {
	return &ParameterExpr{Name: name, typ: t}
}

func (e *ParameterExpr) Kind() Kind         { return KindParameter }
func (e *ParameterExpr) Type() reflect.Type { return e.typ }
func (e *ParameterExpr) String() string     { return e.Name }

// MemberExpr reads a field of a struct-typed expression.
type MemberExpr struct {
	Target Expr
	// Member is the column name: the field's `col` tag when present.
	Member string
	typ    reflect.Type
}

// Member accesses a field of target by column name or Go field name.
func Member(target Expr, name string) (*MemberExpr, error) {
	t := target.Type()
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("member %q: %s is not a struct", name, target.Type())
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		col := sf.Name
		if tag, ok := sf.Tag.Lookup("col"); ok {
			if tag == "-" {
				continue
			}
			col = tag
		}
		if col == name || sf.Name == name {
			return &MemberExpr{Target: target, Member: col, typ: sf.Type}, nil
		}
	}
	return nil, fmt.Errorf("member %q: no such field in %s", name, t)
}

// MustMember is Member that panics on error.
func MustMember(target Expr, name string) *MemberExpr {
	m, err := Member(target, name)
	if err != nil {
		panic(err)
	}
	return m
}

func (e *MemberExpr) Kind() Kind         { return KindMemberAccess }
func (e *MemberExpr) Type() reflect.Type { return e.typ }
func (e *MemberExpr) String() string     { return e.Target.String() + "." + e.Member }

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	kind        Kind
	Left, Right Expr
	typ         reflect.Type
}

func binary(k Kind, l, r Expr, t reflect.Type) *BinaryExpr {
	return &BinaryExpr{kind: k, Left: l, Right: r, typ: t}
}

func Equal(l, r Expr) *BinaryExpr              { return binary(KindEqual, l, r, boolType) }
func NotEqual(l, r Expr) *BinaryExpr           { return binary(KindNotEqual, l, r, boolType) }
func GreaterThan(l, r Expr) *BinaryExpr        { return binary(KindGreaterThan, l, r, boolType) }
func GreaterThanOrEqual(l, r Expr) *BinaryExpr { return binary(KindGreaterThanOrEqual, l, r, boolType) }
func LessThan(l, r Expr) *BinaryExpr           { return binary(KindLessThan, l, r, boolType) }
func LessThanOrEqual(l, r Expr) *BinaryExpr    { return binary(KindLessThanOrEqual, l, r, boolType) }
func AndAlso(l, r Expr) *BinaryExpr            { return binary(KindAndAlso, l, r, boolType) }
func OrElse(l, r Expr) *BinaryExpr             { return binary(KindOrElse, l, r, boolType) }
func Add(l, r Expr) *BinaryExpr                { return binary(KindAdd, l, r, l.Type()) }
func Subtract(l, r Expr) *BinaryExpr           { return binary(KindSubtract, l, r, l.Type()) }
func Multiply(l, r Expr) *BinaryExpr           { return binary(KindMultiply, l, r, l.Type()) }
func Divide(l, r Expr) *BinaryExpr             { return binary(KindDivide, l, r, l.Type()) }
func Modulo(l, r Expr) *BinaryExpr             { return binary(KindModulo, l, r, l.Type()) }

func (e *BinaryExpr) Kind() Kind         { return e.kind }
func (e *BinaryExpr) Type() reflect.Type { return e.typ }
func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + binarySymbols[e.kind] + " " + e.Right.String() + ")"
}

// UnaryExpr applies Not or Negate.
type UnaryExpr struct {
	kind    Kind
	Operand Expr
}

func Not(e Expr) *UnaryExpr    { return &UnaryExpr{kind: KindNot, Operand: e} }
func Negate(e Expr) *UnaryExpr { return &UnaryExpr{kind: KindNegate, Operand: e} }

func (e *UnaryExpr) Kind() Kind         { return e.kind }
func (e *UnaryExpr) Type() reflect.Type { return e.Operand.Type() }
func (e *UnaryExpr) String() string {
	if e.kind == KindNot {
		return "!" + e.Operand.String()
	}
	return "-" + e.Operand.String()
}

// Method describes a host function or method.
type Method struct {
	// Name is the qualified host name, e.g. "strings.ToUpper".
	Name   string
	Result reflect.Type
}

// Well-known methods.
var (
	MethodToUpper   = &Method{Name: "strings.ToUpper", Result: reflect.TypeFor[string]()}
	MethodToLower   = &Method{Name: "strings.ToLower", Result: reflect.TypeFor[string]()}
	MethodRuneCount = &Method{Name: "utf8.RuneCountInString", Result: reflect.TypeFor[int]()}
	MethodConcat    = &Method{Name: "string.Concat", Result: reflect.TypeFor[string]()}
	MethodTrimSpace = &Method{Name: "strings.TrimSpace", Result: reflect.TypeFor[string]()}
)

// CallExpr calls a method. Target is nil for package-level functions.
type CallExpr struct {
	Target Expr
	Method *Method
	Args   []Expr
}

// Call creates a call expression.
func Call(target Expr, m *Method, args ...Expr) *CallExpr {
	return &CallExpr{Target: target, Method: m, Args: args}
}

func (e *CallExpr) Kind() Kind         { return KindCall }
func (e *CallExpr) Type() reflect.Type { return e.Method.Result }
func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	prefix := ""
	if e.Target != nil {
		prefix = e.Target.String() + "."
	}
	return prefix + e.Method.Name + "(" + strings.Join(args, ", ") + ")"
}

// LambdaExpr is a function literal.
type LambdaExpr struct {
	Params []*ParameterExpr
	Body   Expr
}

// Lambda creates a lambda.
func Lambda(body Expr, params ...*ParameterExpr) *LambdaExpr {
	return &LambdaExpr{Params: params, Body: body}
}

func (e *LambdaExpr) Kind() Kind         { return KindLambda }
func (e *LambdaExpr) Type() reflect.Type { return e.Body.Type() }
func (e *LambdaExpr) String() string {
	names := make([]string, len(e.Params))
	for i, p := range e.Params {
		names[i] = p.Name
	}
	params := strings.Join(names, ", ")
	if len(names) != 1 {
		params = "(" + params + ")"
	}
	return params + " => " + e.Body.String()
}

// NewExpr builds a row from named members.
type NewExpr struct {
	Members []string
	Args    []Expr
	typ     reflect.Type
}

// New creates a row constructor. Its type is a struct whose fields carry
// the member names in `col` tags.
func New(members []string, args ...Expr) (*NewExpr, error) {
	if len(members) != len(args) {
		return nil, fmt.Errorf("new: %d members but %d arguments", len(members), len(args))
	}
	fields := make([]reflect.StructField, len(members))
	for i, m := range members {
		if args[i].Type() == nil {
			return nil, fmt.Errorf("new: member %q has no type", m)
		}
		fields[i] = reflect.StructField{
			Name: "F" + strconv.Itoa(i),
			Type: args[i].Type(),
			Tag:  reflect.StructTag(`col:"` + m + `"`),
		}
	}
	return &NewExpr{Members: members, Args: args, typ: reflect.StructOf(fields)}, nil
}

// MustNew is New that panics on error.
func MustNew(members []string, args ...Expr) *NewExpr {
	n, err := New(members, args...)
	if err != nil {
		panic(err)
	}
	return n
}

func (e *NewExpr) Kind() Kind         { return KindNew }
func (e *NewExpr) Type() reflect.Type { return e.typ }
func (e *NewExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = e.Members[i] + ": " + a.String()
	}
	return "new{" + strings.Join(parts, ", ") + "}"
}

// ConditionalExpr is test ? ifTrue : ifFalse.
type ConditionalExpr struct {
	Test, IfTrue, IfFalse Expr
}

// Condition creates a conditional expression.
func Condition(test, ifTrue, ifFalse Expr) *ConditionalExpr {
	return &ConditionalExpr{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
}

func (e *ConditionalExpr) Kind() Kind         { return KindConditional }
func (e *ConditionalExpr) Type() reflect.Type { return e.IfTrue.Type() }
func (e *ConditionalExpr) String() string {
	return "(" + e.Test.String() + " ? " + e.IfTrue.String() + " : " + e.IfFalse.String() + ")"
}
