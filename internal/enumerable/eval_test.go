package enumerable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rex"
)

func TestCompileScalar(t *testing.T) {
	tf := ir.NewTypeFactory()
	b := rex.NewBuilder(tf)
	boolean := tf.CreateSQLType(ir.TypeBoolean)
	rt := tf.CreateStructType(
		[]string{"n", "s", "flag"},
		[]*ir.Type{
			tf.WithNullability(tf.CreateSQLType(ir.TypeInteger), true),
			tf.CreateSQLType(ir.TypeVarchar),
			tf.WithNullability(boolean, true),
		},
	)
	n, s, flag := b.MakeInputRef(rt, 0), b.MakeInputRef(rt, 1), b.MakeInputRef(rt, 2)
	null := b.MakeNullLiteral(boolean)
	yes, no := b.MakeBoolLiteral(true), b.MakeBoolLiteral(false)

	row := ir.Row{ir.Int(7), ir.String("stra\u00dfe"), ir.Null{}}
	nullRow := ir.Row{ir.Null{}, ir.String(""), ir.Bool(true)}

	tests := []struct {
		name string
		expr rex.Node
		row  ir.Row
		want ir.Value
	}{
		{"and false dominates null", b.MustCall(rex.And, null, no), row, ir.Bool(false)},
		{"and null with true", b.MustCall(rex.And, yes, flag), row, ir.Null{}},
		{"or true dominates null", b.MustCall(rex.Or, flag, yes), row, ir.Bool(true)},
		{"or null with false", b.MustCall(rex.Or, no, flag), row, ir.Null{}},
		{"not null", b.MustCall(rex.Not, flag), row, ir.Null{}},
		{"not true", b.MustCall(rex.Not, flag), nullRow, ir.Bool(false)},
		{"is null", b.MustCall(rex.IsNull, n), nullRow, ir.Bool(true)},
		{"is not null", b.MustCall(rex.IsNotNull, n), row, ir.Bool(true)},
		{"comparison with null", b.MustCall(rex.GreaterThan, n, b.MakeIntLiteral(1)), nullRow, ir.Null{}},
		{"comparison", b.MustCall(rex.LessThanOrEqual, n, b.MakeIntLiteral(7)), row, ir.Bool(true)},
		{"arithmetic", b.MustCall(rex.Times, n, b.MakeIntLiteral(6)), row, ir.Int(42)},
		{"negate", b.MustCall(rex.Negate, n), row, ir.Int(-7)},
		{"arithmetic null", b.MustCall(rex.Plus, n, b.MakeIntLiteral(1)), nullRow, ir.Null{}},
		{"upper", b.MustCall(rex.Upper, s), row, ir.String("STRASSE")},
		{"char length counts runes", b.MustCall(rex.CharLength, s), row, ir.Int(6)},
		{"concat", b.MustCall(rex.Concat, s, b.MakeCharLiteral("!")), row, ir.String("stra\u00dfe!")},
		{"case first match", b.MustCall(rex.Case, b.MustCall(rex.IsNull, n), b.MakeCharLiteral("none"), b.MakeCharLiteral("some")), row, ir.String("some")},
		{"case without else", b.MustCall(rex.Case, flag, b.MakeCharLiteral("on")), row, ir.Null{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := CompileScalar(tt.expr)
			require.NoError(t, err)
			got, err := fn(tt.row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileScalar_RuntimeErrors(t *testing.T) {
	tf := ir.NewTypeFactory()
	b := rex.NewBuilder(tf)
	rt := tf.CreateStructType([]string{"n"}, []*ir.Type{tf.CreateSQLType(ir.TypeInteger)})

	fn, err := CompileScalar(b.MustCall(rex.Divide, b.MakeInputRef(rt, 0), b.MakeIntLiteral(0)))
	require.NoError(t, err)
	_, err = fn(ir.Row{ir.Int(1)})
	assert.ErrorIs(t, err, ir.ErrDivisionByZero)
}

func TestPredicate_OnlyTruePasses(t *testing.T) {
	tf := ir.NewTypeFactory()
	b := rex.NewBuilder(tf)
	rt := tf.CreateStructType([]string{"f"}, []*ir.Type{tf.WithNullability(tf.CreateSQLType(ir.TypeBoolean), true)})

	keep, err := Predicate(b.MakeInputRef(rt, 0))
	require.NoError(t, err)
	for v, want := range map[ir.Value]bool{ir.Bool(true): true, ir.Bool(false): false, ir.Null{}: false} {
		got, err := keep(ir.Row{v})
		require.NoError(t, err)
		assert.Equal(t, want, got, "%v", v)
	}
}
