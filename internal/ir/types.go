package ir

import (
	"fmt"
	"strings"
)

// TypeName is the category of a SQL type.
type TypeName int

const (
	TypeBoolean TypeName = iota
	TypeTinyInt
	TypeSmallInt
	TypeInteger
	TypeBigInt
	TypeDecimal
	TypeReal
	TypeDouble
	TypeChar
	TypeVarchar
	TypeDate
	TypeTimestamp
	TypeAny
	TypeNull
	TypeRow
)

// typeNameInfo describes one TypeName.
// jdbc is the java.sql.Types code clients speaking typed protocols expect.
type typeNameInfo struct {
	name      string
	jdbc      int
	precision bool
	scale     bool
}

var typeNames = [...]typeNameInfo{
	TypeBoolean:   {"BOOLEAN", 16, false, false},
	TypeTinyInt:   {"TINYINT", -6, false, false},
	TypeSmallInt:  {"SMALLINT", 5, false, false},
	TypeInteger:   {"INTEGER", 4, false, false},
	TypeBigInt:    {"BIGINT", -5, false, false},
	TypeDecimal:   {"DECIMAL", 3, true, true},
	TypeReal:      {"REAL", 7, false, false},
	TypeDouble:    {"DOUBLE", 8, false, false},
	TypeChar:      {"CHAR", 1, true, false},
	TypeVarchar:   {"VARCHAR", 12, true, false},
	TypeDate:      {"DATE", 91, false, false},
	TypeTimestamp: {"TIMESTAMP", 93, true, false},
	TypeAny:       {"ANY", 1111, false, false},
	TypeNull:      {"NULL", 0, false, false},
	TypeRow:       {"ROW", 2002, false, false},
}

// Name returns the SQL name of the type category, e.g. "INTEGER".
func (n TypeName) Name() string {
	if int(n) < 0 || int(n) >= len(typeNames) {
		return fmt.Sprintf("TypeName(%d)", int(n))
	}
	return typeNames[n].name
}

func (n TypeName) String() string { return n.Name() }

// JDBCType returns the external numeric type code (java.sql.Types).
func (n TypeName) JDBCType() int { return typeNames[n].jdbc }

// AllowsPrecision reports whether types of this category carry a precision.
func (n TypeName) AllowsPrecision() bool { return typeNames[n].precision }

// AllowsScale reports whether types of this category carry a scale.
func (n TypeName) AllowsScale() bool { return typeNames[n].scale }

// IsNumeric reports whether the category is an exact or approximate number.
func (n TypeName) IsNumeric() bool {
	switch n {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt, TypeDecimal, TypeReal, TypeDouble:
		return true
	}
	return false
}

// IsExact reports whether the category is an exact number.
func (n TypeName) IsExact() bool {
	switch n {
	case TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt, TypeDecimal:
		return true
	}
	return false
}

// IsCharacter reports whether the category is CHAR or VARCHAR.
func (n TypeName) IsCharacter() bool {
	return n == TypeChar || n == TypeVarchar
}

// LookupTypeName maps a SQL type name (case-insensitive) to its category.
// Common aliases (INT, TEXT, FLOAT, NUMERIC, ...) are accepted.
func LookupTypeName(s string) (TypeName, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BOOLEAN", "BOOL":
		return TypeBoolean, true
	case "TINYINT":
		return TypeTinyInt, true
	case "SMALLINT":
		return TypeSmallInt, true
	case "INTEGER", "INT":
		return TypeInteger, true
	case "BIGINT":
		return TypeBigInt, true
	case "DECIMAL", "NUMERIC":
		return TypeDecimal, true
	case "REAL":
		return TypeReal, true
	case "DOUBLE", "FLOAT":
		return TypeDouble, true
	case "CHAR":
		return TypeChar, true
	case "VARCHAR", "TEXT", "STRING":
		return TypeVarchar, true
	case "DATE":
		return TypeDate, true
	case "TIMESTAMP":
		return TypeTimestamp, true
	case "ANY":
		return TypeAny, true
	}
	return 0, false
}

// Unspecified marks an absent precision or scale.
const Unspecified = -1

// Type describes either a scalar SQL type or a struct (row) type.
// Types are immutable; use TypeFactory to derive variants.
type Type struct {
	name      TypeName
	precision int
	scale     int
	nullable  bool
	fields    []Field
}

// Field is one named, ordered member of a struct type.
type Field struct {
	Name  string
	Index int
	Type  *Type
}

// Name returns the type category.
func (t *Type) Name() TypeName { return t.name }

// Precision returns the declared precision or Unspecified.
func (t *Type) Precision() int { return t.precision }

// Scale returns the declared scale or Unspecified.
func (t *Type) Scale() int { return t.scale }

// IsNullable reports whether values of this type may be NULL.
func (t *Type) IsNullable() bool { return t.nullable }

// IsStruct reports whether this is a row type with named fields.
func (t *Type) IsStruct() bool { return t.name == TypeRow }

// Fields returns the struct fields in declaration order (nil for scalars).
func (t *Type) Fields() []Field { return t.fields }

// FieldCount returns the number of struct fields.
func (t *Type) FieldCount() int { return len(t.fields) }

// FieldNames returns the field names in order.
func (t *Type) FieldNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a struct field by exact name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports structural equality, including nullability.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return t.Digest() == o.Digest()
}

// Digest is a complete, stable rendering of the type used as identity.
func (t *Type) Digest() string {
	var b strings.Builder
	t.writeDigest(&b)
	return b.String()
}

func (t *Type) writeDigest(b *strings.Builder) {
	if t.IsStruct() {
		b.WriteString("RecordType(")
		for i, f := range t.fields {
			if i > 0 {
				b.WriteString(", ")
			}
			f.Type.writeDigest(b)
			b.WriteByte(' ')
			b.WriteString(f.Name)
		}
		b.WriteByte(')')
		return
	}
	b.WriteString(t.name.Name())
	if t.name.AllowsPrecision() && t.precision != Unspecified {
		if t.name.AllowsScale() && t.scale != Unspecified {
			fmt.Fprintf(b, "(%d, %d)", t.precision, t.scale)
		} else {
			fmt.Fprintf(b, "(%d)", t.precision)
		}
	}
	if !t.nullable {
		b.WriteString(" NOT NULL")
	}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Digest()
}
