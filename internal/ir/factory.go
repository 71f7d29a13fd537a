package ir

import (
	"fmt"
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// Default precisions used when a type is created without one.
const (
	DefaultDecimalPrecision = 19
	DefaultDecimalScale     = 0
	MaxDecimalPrecision     = 34
)

// TypeFactory creates types. One factory is scoped to a preparation; it
// holds no mutable state, so sharing one across goroutines is also safe.
type TypeFactory struct{}

// NewTypeFactory creates a type factory.
func NewTypeFactory() *TypeFactory {
	return &TypeFactory{}
}

// CreateSQLType creates a NOT NULL scalar type with unspecified precision.
func (f *TypeFactory) CreateSQLType(name TypeName) *Type {
	return &Type{name: name, precision: Unspecified, scale: Unspecified, nullable: name == TypeNull}
}

// CreateSQLTypeWithPrecision creates a NOT NULL scalar type with a precision.
// The precision is ignored when the category does not allow one.
func (f *TypeFactory) CreateSQLTypeWithPrecision(name TypeName, precision int) *Type {
	t := f.CreateSQLType(name)
	if name.AllowsPrecision() {
		t.precision = precision
	}
	return t
}

// CreateSQLTypeWithScale creates a NOT NULL scalar type with precision and scale.
func (f *TypeFactory) CreateSQLTypeWithScale(name TypeName, precision, scale int) *Type {
	t := f.CreateSQLTypeWithPrecision(name, precision)
	if name.AllowsScale() {
		t.scale = scale
	}
	return t
}

// CreateStructType creates a row type from parallel name and type slices.
func (f *TypeFactory) CreateStructType(names []string, types []*Type) *Type {
	if len(names) != len(types) {
		panic(fmt.Sprintf("CreateStructType: %d names but %d types", len(names), len(types)))
	}
	fields := make([]Field, len(names))
	for i := range names {
		fields[i] = Field{Name: names[i], Index: i, Type: types[i]}
	}
	return &Type{name: TypeRow, precision: Unspecified, scale: Unspecified, fields: fields}
}

// CreateStructTypeFromFields creates a row type from fields, re-indexing them.
func (f *TypeFactory) CreateStructTypeFromFields(fields []Field) *Type {
	names := make([]string, len(fields))
	types := make([]*Type, len(fields))
	for i, fd := range fields {
		names[i] = fd.Name
		types[i] = fd.Type
	}
	return f.CreateStructType(names, types)
}

// WithNullability returns t with the given nullability.
// Struct types are returned unchanged.
func (f *TypeFactory) WithNullability(t *Type, nullable bool) *Type {
	if t.IsStruct() || t.nullable == nullable {
		return t
	}
	c := *t
	c.nullable = nullable
	return &c
}

// LeastRestrictive returns the narrowest type every input can be widened to.
// Returns ok=false for incompatible inputs (e.g. VARCHAR and INTEGER).
func (f *TypeFactory) LeastRestrictive(types ...*Type) (*Type, bool) {
	if len(types) == 0 {
		return nil, false
	}
	var result *Type
	nullable := false
	for _, t := range types {
		nullable = nullable || t.nullable
		if t.name == TypeNull {
			continue
		}
		if result == nil {
			result = t
			continue
		}
		merged, ok := f.widen(result, t)
		if !ok {
			return nil, false
		}
		result = merged
	}
	if result == nil {
		return f.CreateSQLType(TypeNull), true
	}
	return f.WithNullability(result, nullable), true
}

func (f *TypeFactory) widen(a, b *Type) (*Type, bool) {
	if a.IsStruct() || b.IsStruct() {
		if a.Equal(b) {
			return a, true
		}
		return nil, false
	}
	switch {
	case a.name == b.name:
		if a.name.AllowsPrecision() && b.precision > a.precision {
			return b, true
		}
		return a, true
	case a.name.IsNumeric() && b.name.IsNumeric():
		if !a.name.IsExact() || !b.name.IsExact() {
			return f.CreateSQLType(TypeDouble), true
		}
		if a.name == TypeDecimal || b.name == TypeDecimal {
			return f.CreateSQLTypeWithScale(TypeDecimal, MaxDecimalPrecision, max(a.scale, b.scale, 0)), true
		}
		if a.name > b.name {
			return a, true
		}
		return b, true
	case a.name.IsCharacter() && b.name.IsCharacter():
		return f.CreateSQLTypeWithPrecision(TypeVarchar, max(a.precision, b.precision)), true
	case a.name == TypeAny:
		return a, true
	case b.name == TypeAny:
		return b, true
	}
	return nil, false
}

var (
	decimalType    = reflect.TypeOf(apd.Decimal{})
	timeType       = reflect.TypeOf(time.Time{})
	valueInterface = reflect.TypeOf((*Value)(nil)).Elem()
)

// CreateTypeFromGo lifts a Go type into the SQL type system.
//
// Mapping:
//
//	bool -> BOOLEAN, int8 -> TINYINT, int16 -> SMALLINT, int32 -> INTEGER,
//	int/int64 -> BIGINT, float32 -> REAL, float64 -> DOUBLE,
//	string -> VARCHAR, apd.Decimal -> DECIMAL, time.Time -> TIMESTAMP,
//	ir.Value -> ANY, struct -> ROW of exported fields.
//
// Pointers make the type nullable. A struct field's column name is taken
// from its `col` tag when present, otherwise from the field name;
// `col:"-"` skips the field.
func (f *TypeFactory) CreateTypeFromGo(t reflect.Type) (*Type, error) {
	return f.fromGo(t, false)
}

func (f *TypeFactory) fromGo(t reflect.Type, nullable bool) (*Type, error) {
	if t == nil {
		return nil, fmt.Errorf("nil Go type")
	}
	if t.Kind() == reflect.Pointer {
		return f.fromGo(t.Elem(), true)
	}
	if t == valueInterface {
		return f.WithNullability(f.CreateSQLType(TypeAny), true), nil
	}

	var st *Type
	switch {
	case t == decimalType:
		st = f.CreateSQLTypeWithScale(TypeDecimal, DefaultDecimalPrecision, DefaultDecimalScale)
	case t == timeType:
		st = f.CreateSQLType(TypeTimestamp)
	default:
		switch t.Kind() {
		case reflect.Bool:
			st = f.CreateSQLType(TypeBoolean)
		case reflect.Int8:
			st = f.CreateSQLType(TypeTinyInt)
		case reflect.Int16, reflect.Uint8:
			st = f.CreateSQLType(TypeSmallInt)
		case reflect.Int32, reflect.Uint16:
			st = f.CreateSQLType(TypeInteger)
		case reflect.Int, reflect.Int64, reflect.Uint32:
			st = f.CreateSQLType(TypeBigInt)
		case reflect.Float32:
			st = f.CreateSQLType(TypeReal)
		case reflect.Float64:
			st = f.CreateSQLType(TypeDouble)
		case reflect.String:
			st = f.CreateSQLType(TypeVarchar)
		case reflect.Struct:
			return f.structFromGo(t)
		default:
			return nil, fmt.Errorf("cannot map Go type %s to a SQL type", t)
		}
	}
	return f.WithNullability(st, nullable), nil
}

func (f *TypeFactory) structFromGo(t reflect.Type) (*Type, error) {
	var names []string
	var types []*Type
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("col"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		ft, err := f.fromGo(sf.Type, false)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		names = append(names, name)
		types = append(types, ft)
	}
	return f.CreateStructType(names, types), nil
}
