package translate

import (
	"reflect"
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/linq"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

type emp struct {
	ID     int32   `col:"empid"`
	Dept   *int32  `col:"deptno"`
	Name   string  `col:"name"`
	Salary float64 `col:"salary"`
}

type empName struct {
	Name string `col:"name"`
}

func fixture(t *testing.T) (*rel.Cluster, *QueryableTranslator) {
	t.Helper()
	tf := ir.NewTypeFactory()
	ten := int32(10)
	emps, err := catalog.NewStructTable("emps", []emp{
		{ID: 100, Dept: &ten, Name: "Bill", Salary: 10000},
		{ID: 110, Name: "Theodore", Salary: 11500},
	})
	require.NoError(t, err)
	root := catalog.NewMapSchema("").AddSubSchema("hr", catalog.NewMapSchema("hr").AddTable("emps", emps))
	c := rel.NewCluster(nil, tf, rex.NewBuilder(tf))
	return c, NewQueryableTranslator(c, catalog.NewReader(root, tf))
}

func TestToRex_Constants(t *testing.T) {
	tf := ir.NewTypeFactory()
	s := Empty(rex.NewBuilder(tf))

	exact, _, err := apd.NewFromString("12345678901234.5")
	require.NoError(t, err)

	tests := []struct {
		name      string
		value     any
		wantType  string
		wantValue string
		wantExact bool
	}{
		{"float is approximate", 1.5, "DOUBLE NOT NULL", "1.5", false},
		{"float32 is approximate", float32(0.25), "DOUBLE NOT NULL", "0.25", false},
		{"small int is exact", 42, "INTEGER NOT NULL", "42", true},
		{"large int is exact", int64(1) << 40, "BIGINT NOT NULL", "1099511627776", true},
		{"unsigned is exact", uint64(18446744073709551615), "DECIMAL(20, 0) NOT NULL", "18446744073709551615", true},
		{"decimal keeps every digit", exact, "DECIMAL(15, 1) NOT NULL", "12345678901234.5", true},
		{"bool", true, "BOOLEAN NOT NULL", "TRUE", false},
		{"string", "abc", "CHAR(3) NOT NULL", "abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.ToRex(linq.Constant(tt.value))
			require.NoError(t, err)
			lit, ok := n.(rex.Literal)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, lit.Type().String())
			assert.Equal(t, tt.wantValue, lit.Value.String())
			assert.Equal(t, tt.wantExact, lit.IsExact())
		})
	}

	_, err = s.ToRex(linq.Constant(struct{}{}))
	assert.True(t, IsError(err))
}

func TestToRex_ScopeChain(t *testing.T) {
	b := rex.NewBuilder(ir.NewTypeFactory())
	root := Empty(b)
	p := linq.Parameter("p", reflect.TypeFor[int32]())
	q := linq.Parameter("q", reflect.TypeFor[int32]())
	v, w := b.MakeIntLiteral(7), b.MakeIntLiteral(8)

	bound := root.Bind([]*linq.ParameterExpr{p}, []rex.Node{v})
	got, err := bound.ToRex(p)
	require.NoError(t, err)
	assert.Equal(t, rex.Node(v), got)

	_, err = root.ToRex(p)
	require.Error(t, err)
	assert.True(t, IsError(err))
	assert.Equal(t, "unknown parameter: p", err.Error())

	inner := bound.Bind([]*linq.ParameterExpr{q}, []rex.Node{w})
	got, err = inner.ToRex(linq.Add(p, q))
	require.NoError(t, err)
	assert.Equal(t, "+(7, 8)", got.String(), "outer frame reached through the parent")

	shadow := bound.Bind([]*linq.ParameterExpr{p}, []rex.Node{w})
	got, err = shadow.ToRex(p)
	require.NoError(t, err)
	assert.Equal(t, rex.Node(w), got, "innermost binding wins")

	// parameters are matched by identity, not by name
	_, err = bound.ToRex(linq.Parameter("p", reflect.TypeFor[int32]()))
	assert.ErrorContains(t, err, "unknown parameter")

	assert.Panics(t, func() { root.Bind([]*linq.ParameterExpr{p, q}, []rex.Node{v}) })
}

func TestToRex_Expressions(t *testing.T) {
	tf := ir.NewTypeFactory()
	b := rex.NewBuilder(tf)
	rowType, err := tf.CreateTypeFromGo(reflect.TypeFor[emp]())
	require.NoError(t, err)

	e := linq.Parameter("e", reflect.TypeFor[emp]())
	s := Empty(b).Bind([]*linq.ParameterExpr{e}, []rex.Node{b.MakeRangeRef(rowType, 0)})
	name := linq.MustMember(e, "name")

	tests := []struct {
		name string
		expr linq.Expr
		want string
	}{
		{"member folds to input ref", linq.MustMember(e, "salary"), "$3"},
		{"comparison", linq.GreaterThanOrEqual(linq.MustMember(e, "empid"), linq.Constant(100)), ">=($0, 100)"},
		{"logical", linq.OrElse(linq.Not(linq.Equal(name, linq.Constant("x"))), linq.Constant(false)), "OR(NOT(=($2, 'x')), false)"},
		{"arithmetic", linq.Divide(linq.Subtract(linq.MustMember(e, "salary"), linq.Constant(1.0)), linq.Constant(2.0)), "/(-($3, 1E+00), 2E+00)"},
		{"negate", linq.Negate(linq.MustMember(e, "empid")), "-($0)"},
		{"method on target", linq.Call(name, linq.MethodConcat, linq.Constant("!")), "||($2, '!')"},
		{"static method", linq.Call(nil, linq.MethodToUpper, name), "UPPER($2)"},
		{"rune count", linq.Call(nil, linq.MethodRuneCount, name), "CHAR_LENGTH($2)"},
		{"conditional", linq.Condition(linq.LessThan(linq.MustMember(e, "empid"), linq.Constant(5)), name, linq.Constant("n/a")), "CASE(<($0, 5), $2, 'n/a')"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.ToRex(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestToRex_Unsupported(t *testing.T) {
	tf := ir.NewTypeFactory()
	b := rex.NewBuilder(tf)
	s := Empty(b)
	x := linq.Constant(5)

	tests := []struct {
		name string
		expr linq.Expr
		want string
	}{
		{"modulo", linq.Modulo(x, x), "unsupported expression kind Modulo"},
		{"lambda", linq.Lambda(x), "unsupported expression kind Lambda"},
		{"new", linq.MustNew([]string{"a"}, x), "unsupported expression kind New"},
		{"unmapped method", linq.Call(nil, linq.MethodTrimSpace, linq.Constant(" a ")), "method has no relational equivalent: strings.TrimSpace"},
		{"operand types", linq.Add(linq.Constant(true), x), "operand types"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ToRex(tt.expr)
			require.Error(t, err)
			assert.True(t, IsError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestQueryable_Lowering(t *testing.T) {
	_, tr := fixture(t)
	q := linq.From[emp]("hr", "emps")
	e := q.Row("e")
	filtered := q.Where(linq.Lambda(linq.GreaterThan(linq.MustMember(e, "salary"), linq.Constant(10500.0)), e))
	r := filtered.Row("r")
	projected := filtered.Select(linq.Lambda(linq.MustNew(
		[]string{"name", "bonus"},
		linq.MustMember(r, "name"),
		linq.Multiply(linq.MustMember(r, "salary"), linq.Constant(0.1)),
	), r))
	p := projected.Row("p")
	top := projected.OrderBy(linq.Lambda(linq.MustMember(p, "bonus"), p), true).Take(1)

	root, err := tr.Translate(top)
	require.NoError(t, err)

	want := "LogicalSort(sort0=[$1 DESC], fetch=[1])\n" +
		"  LogicalProject(name=[$2], bonus=[*($3, 1E-01)])\n" +
		"    LogicalFilter(condition=[>($3, 1.05E+04)])\n" +
		"      LogicalTableScan(table=[[hr, emps]])\n"
	assert.Equal(t, want, rel.Explain(root))
	assert.Equal(t, []string{"name", "bonus"}, root.RowType().FieldNames())
}

func TestQueryable_ComputedOrderKey(t *testing.T) {
	_, tr := fixture(t)
	q := linq.From[emp]("hr", "emps")
	e := q.Row("e")
	ordered := q.OrderBy(linq.Lambda(linq.Call(nil, linq.MethodRuneCount, linq.MustMember(e, "name")), e), false).Skip(1)

	root, err := tr.Translate(ordered)
	require.NoError(t, err)
	want := "LogicalSort(offset=[1])\n" +
		"  LogicalProject(empid=[$0], deptno=[$1], name=[$2], salary=[$3])\n" +
		"    LogicalSort(sort0=[$4])\n" +
		"      LogicalProject(empid=[$0], deptno=[$1], name=[$2], salary=[$3], key=[CHAR_LENGTH($2)])\n" +
		"        LogicalTableScan(table=[[hr, emps]])\n"
	assert.Equal(t, want, rel.Explain(root))
}

func TestQueryable_ElementTypeSubset(t *testing.T) {
	_, tr := fixture(t)
	root, err := tr.Translate(linq.From[empName]("hr", "emps"))
	require.NoError(t, err)
	assert.Equal(t, "LogicalProject(name=[$2])\n  LogicalTableScan(table=[[hr, emps]])\n", rel.Explain(root))
}

func TestQueryable_SetOps(t *testing.T) {
	_, tr := fixture(t)
	a := linq.From[empName]("hr", "emps")

	tests := []struct {
		query *linq.Queryable
		op    string
	}{
		{a.Union(a), "LogicalUnion(all=[false])"},
		{a.Concat(a), "LogicalUnion(all=[true])"},
		{a.Intersect(a), "LogicalIntersect(all=[false])"},
		{a.Except(a), "LogicalMinus(all=[false])"},
	}
	for _, tt := range tests {
		t.Run(tt.query.Kind().String(), func(t *testing.T) {
			root, err := tr.Translate(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.op, rel.Explain(root)[:len(tt.op)])
			assert.Len(t, root.Inputs(), 2)
		})
	}
}

func TestQueryable_Errors(t *testing.T) {
	_, tr := fixture(t)

	_, err := tr.Translate(linq.From[emp]("hr", "Z"))
	require.Error(t, err)
	assert.True(t, catalog.IsNotFound(err))
	assert.Contains(t, err.Error(), "Z")

	q := linq.From[emp]("hr", "emps")
	e := q.Row("e")
	_, err = tr.Translate(q.Where(linq.Lambda(linq.MustMember(e, "salary"), e)))
	assert.ErrorContains(t, err, "not BOOLEAN")

	stray := linq.Parameter("x", reflect.TypeFor[emp]())
	_, err = tr.Translate(q.Where(linq.Lambda(linq.GreaterThan(linq.MustMember(stray, "empid"), linq.Constant(1)), e)))
	assert.ErrorContains(t, err, "unknown parameter: x")

	_, err = tr.Translate(q.Take(-1))
	assert.ErrorContains(t, err, "negative count")

	_, err = tr.Translate(q.Union(linq.From[empName]("hr", "emps")))
	assert.ErrorContains(t, err, "incompatible set operands")
}
