package prepare

import (
	"github.com/roach88/quarry/internal/ir"
)

// ScalarFieldName names the single field of a normalized scalar row type.
const ScalarFieldName = "$0"

// MakeStruct returns t unchanged when it is a struct, and otherwise a
// one-field struct whose field has type t.
func MakeStruct(tf *ir.TypeFactory, t *ir.Type) *ir.Type {
	if t.IsStruct() {
		return t
	}
	return tf.CreateStructType([]string{ScalarFieldName}, []*ir.Type{t})
}

// ColumnMetaData describes one result column.
// Precision and Scale are ir.Unspecified when the type does not carry them.
type ColumnMetaData struct {
	Ordinal   int    `json:"ordinal"`
	Nullable  bool   `json:"nullable"`
	Label     string `json:"label"`
	Precision int    `json:"precision"`
	Scale     int    `json:"scale"`
	TypeName  string `json:"type_name"`
	TypeID    int    `json:"type_id"`
}

// Columns derives column metadata from a struct row type, in field order.
func Columns(rowType *ir.Type) []ColumnMetaData {
	fields := rowType.Fields()
	cols := make([]ColumnMetaData, len(fields))
	for i, f := range fields {
		name := f.Type.Name()
		col := ColumnMetaData{
			Ordinal:   i,
			Nullable:  f.Type.IsNullable(),
			Label:     f.Name,
			Precision: ir.Unspecified,
			Scale:     ir.Unspecified,
			TypeName:  name.Name(),
			TypeID:    name.JDBCType(),
		}
		if name.AllowsPrecision() {
			col.Precision = f.Type.Precision()
		}
		if name.AllowsScale() {
			col.Scale = f.Type.Scale()
		}
		cols[i] = col
	}
	return cols
}
