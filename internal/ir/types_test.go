package ir

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeNameCapabilities(t *testing.T) {
	tests := []struct {
		name      TypeName
		sql       string
		jdbc      int
		precision bool
		scale     bool
	}{
		{TypeInteger, "INTEGER", 4, false, false},
		{TypeBigInt, "BIGINT", -5, false, false},
		{TypeDecimal, "DECIMAL", 3, true, true},
		{TypeVarchar, "VARCHAR", 12, true, false},
		{TypeDouble, "DOUBLE", 8, false, false},
		{TypeBoolean, "BOOLEAN", 16, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.sql, tt.name.Name())
			assert.Equal(t, tt.jdbc, tt.name.JDBCType())
			assert.Equal(t, tt.precision, tt.name.AllowsPrecision())
			assert.Equal(t, tt.scale, tt.name.AllowsScale())
		})
	}
}

func TestLookupTypeName(t *testing.T) {
	n, ok := LookupTypeName("int")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, n)

	n, ok = LookupTypeName("Text")
	require.True(t, ok)
	assert.Equal(t, TypeVarchar, n)

	_, ok = LookupTypeName("blob")
	assert.False(t, ok)
}

func TestTypeDigest(t *testing.T) {
	tf := NewTypeFactory()

	assert.Equal(t, "INTEGER NOT NULL", tf.CreateSQLType(TypeInteger).Digest())
	assert.Equal(t, "DECIMAL(10, 2) NOT NULL", tf.CreateSQLTypeWithScale(TypeDecimal, 10, 2).Digest())
	assert.Equal(t, "VARCHAR(20)", tf.WithNullability(tf.CreateSQLTypeWithPrecision(TypeVarchar, 20), true).Digest())

	row := tf.CreateStructType(
		[]string{"x", "y"},
		[]*Type{tf.CreateSQLType(TypeInteger), tf.WithNullability(tf.CreateSQLType(TypeVarchar), true)},
	)
	assert.Equal(t, "RecordType(INTEGER NOT NULL x, VARCHAR y)", row.Digest())
	assert.True(t, row.IsStruct())
	assert.Equal(t, []string{"x", "y"}, row.FieldNames())

	f, ok := row.Field("y")
	require.True(t, ok)
	assert.Equal(t, 1, f.Index)
}

func TestPrecisionIgnoredWhenNotAllowed(t *testing.T) {
	tf := NewTypeFactory()
	it := tf.CreateSQLTypeWithScale(TypeInteger, 10, 2)
	assert.Equal(t, Unspecified, it.Precision())
	assert.Equal(t, Unspecified, it.Scale())
}

func TestLeastRestrictive(t *testing.T) {
	tf := NewTypeFactory()
	intT := tf.CreateSQLType(TypeInteger)
	bigT := tf.CreateSQLType(TypeBigInt)
	dblT := tf.CreateSQLType(TypeDouble)
	strT := tf.CreateSQLType(TypeVarchar)
	nullT := tf.CreateSQLType(TypeNull)

	got, ok := tf.LeastRestrictive(intT, bigT)
	require.True(t, ok)
	assert.Equal(t, TypeBigInt, got.Name())

	got, ok = tf.LeastRestrictive(intT, dblT)
	require.True(t, ok)
	assert.Equal(t, TypeDouble, got.Name())

	got, ok = tf.LeastRestrictive(intT, nullT)
	require.True(t, ok)
	assert.Equal(t, TypeInteger, got.Name())
	assert.True(t, got.IsNullable())

	_, ok = tf.LeastRestrictive(intT, strT)
	assert.False(t, ok)
}

type employee struct {
	ID     int32  `col:"empid"`
	Name   string `col:"name"`
	Salary *float64
	Bonus  apd.Decimal
	secret string
	Skip   string `col:"-"`
}

func TestCreateTypeFromGo(t *testing.T) {
	tf := NewTypeFactory()

	rt, err := tf.CreateTypeFromGo(reflect.TypeOf(employee{}))
	require.NoError(t, err)
	require.True(t, rt.IsStruct())
	assert.Equal(t, []string{"empid", "name", "Salary", "Bonus"}, rt.FieldNames())

	assert.Equal(t, "INTEGER NOT NULL", rt.Fields()[0].Type.Digest())
	assert.Equal(t, "VARCHAR NOT NULL", rt.Fields()[1].Type.Digest())
	assert.Equal(t, "DOUBLE", rt.Fields()[2].Type.Digest())
	assert.Equal(t, "DECIMAL(19, 0) NOT NULL", rt.Fields()[3].Type.Digest())
}

func TestCreateTypeFromGoScalar(t *testing.T) {
	tf := NewTypeFactory()

	st, err := tf.CreateTypeFromGo(reflect.TypeOf(int64(0)))
	require.NoError(t, err)
	assert.False(t, st.IsStruct())
	assert.Equal(t, TypeBigInt, st.Name())

	_, err = tf.CreateTypeFromGo(reflect.TypeOf(map[string]int{}))
	assert.Error(t, err)
}
