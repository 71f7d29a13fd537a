package enumerable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

type fixture struct {
	c     *rel.Cluster
	b     *rex.Builder
	root  *catalog.MapSchema
	emps  *catalog.MemTable
	empsH *catalog.TableHandle
	depH  *catalog.TableHandle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tf := ir.NewTypeFactory()
	integer := tf.CreateSQLType(ir.TypeInteger)
	varchar := tf.CreateSQLType(ir.TypeVarchar)

	empType := tf.CreateStructType(
		[]string{"id", "dept", "name"},
		[]*ir.Type{integer, tf.WithNullability(integer, true), varchar},
	)
	emps := catalog.NewMemTable("emps", empType,
		ir.Row{ir.Int(1), ir.Int(10), ir.String("ann")},
		ir.Row{ir.Int(2), ir.Int(20), ir.String("bob")},
		ir.Row{ir.Int(3), ir.Null{}, ir.String("cy")},
		ir.Row{ir.Int(4), ir.Int(10), ir.String("dee")},
	)
	deptType := tf.CreateStructType([]string{"dno", "dname"}, []*ir.Type{integer, varchar})
	depts := catalog.NewMemTable("depts", deptType,
		ir.Row{ir.Int(10), ir.String("eng")},
		ir.Row{ir.Int(20), ir.String("ops")},
		ir.Row{ir.Int(30), ir.String("hr")},
	)
	root := catalog.NewMapSchema("").AddTable("emps", emps).AddTable("depts", depts)
	reader := catalog.NewReader(root, tf)
	empsH, err := reader.Resolve([]string{"emps"})
	require.NoError(t, err)
	depH, err := reader.Resolve([]string{"depts"})
	require.NoError(t, err)

	c := rel.NewCluster(nil, tf, rex.NewBuilder(tf))
	return &fixture{c: c, b: c.Builder(), root: root, emps: emps, empsH: empsH, depH: depH}
}

func (f *fixture) scan(h *catalog.TableHandle) *TableScan {
	return NewTableScan(rel.NewTableScan(f.c, h))
}

func (f *fixture) run(t *testing.T, root rel.Node) []ir.Row {
	t.Helper()
	return f.runIn(t, root, catalog.NewDataContext(f.root))
}

func (f *fixture) runIn(t *testing.T, root rel.Node, dc catalog.DataContext) []ir.Row {
	t.Helper()
	proc, err := NewImplementor().ImplementRoot(root)
	require.NoError(t, err)
	exe, err := ClosureCompiler{}.Compile(proc)
	require.NoError(t, err)
	e, err := exe.Execute(dc)
	require.NoError(t, err)
	rows, err := ir.Collect(t.Context(), e)
	require.NoError(t, err)
	return rows
}

func render(rows []ir.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = make([]string, len(r))
		for j, v := range r {
			out[i][j] = v.String()
		}
	}
	return out
}

func (f *fixture) calcOverSort() *Calc {
	scan := f.scan(f.empsH)
	sort := &Sort{rel.NewSort(f.c, scan, []rel.FieldCollation{{Field: 0, Descending: true}}, 0, rel.NoFetch)}
	rt := sort.RowType()
	exprs := []rex.Node{
		f.b.MustCall(rex.Plus, f.b.MakeInputRef(rt, 0), f.b.MakeIntLiteral(1)),
		f.b.MakeInputRef(rt, 2),
	}
	return NewCalc(f.c, sort, Program{Projects: exprs},
		rel.ProjectRowType(f.c.TypeFactory(), exprs, []string{"EXPR$0", "name"}))
}

func TestImplementRoot_Source(t *testing.T) {
	f := newFixture(t)
	proc, err := NewImplementor().ImplementRoot(f.calcOverSort())
	require.NoError(t, err)

	want := "func(root0 DataContext) Enumerable[RecordType(INTEGER NOT NULL EXPR$0, VARCHAR NOT NULL name)] {\n" +
		"  v0 := scan(root0, [emps])\n" +
		"  v1 := sort([$0 DESC], offset=0, fetch=-1) <- v0\n" +
		"  v2 := calc(project=[+($0, 1), $2]) <- v1\n" +
		"  return v2\n" +
		"}\n"
	assert.Equal(t, want, proc.Source())
}

func TestImplementRoot_RejectsLogicalNodes(t *testing.T) {
	f := newFixture(t)
	_, err := NewImplementor().ImplementRoot(rel.NewTableScan(f.c, f.empsH))
	assert.ErrorContains(t, err, "not in ENUMERABLE convention")
}

func TestExecute_CalcOverSort(t *testing.T) {
	f := newFixture(t)
	rows := f.run(t, f.calcOverSort())
	assert.Equal(t, [][]string{{"5", "dee"}, {"4", "cy"}, {"3", "bob"}, {"2", "ann"}}, render(rows))
}

func TestExecute_IsLazyAndRepeatable(t *testing.T) {
	f := newFixture(t)
	proc, err := NewImplementor().ImplementRoot(f.scan(f.empsH))
	require.NoError(t, err)
	exe, err := ClosureCompiler{}.Compile(proc)
	require.NoError(t, err)
	e, err := exe.Execute(catalog.NewDataContext(f.root))
	require.NoError(t, err)

	f.emps.Append(ir.Row{ir.Int(5), ir.Int(30), ir.String("eve")})

	first, err := ir.Collect(t.Context(), e)
	require.NoError(t, err)
	assert.Len(t, first, 5, "rows appended after Execute are visible")

	f.emps.Append(ir.Row{ir.Int(6), ir.Int(30), ir.String("fay")})
	second, err := ir.Collect(t.Context(), e)
	require.NoError(t, err)
	assert.Len(t, second, 6, "each enumeration reopens the table")
}

func TestExecute_ReadsLiveDataContext(t *testing.T) {
	f := newFixture(t)
	other := catalog.NewMemTable("emps", f.empsH.RowType(), ir.Row{ir.Int(9), ir.Null{}, ir.String("zed")})
	dc := catalog.NewDataContext(catalog.NewMapSchema("").AddTable("emps", other))

	rows := f.runIn(t, f.scan(f.empsH), dc)
	assert.Equal(t, [][]string{{"9", "NULL", "zed"}}, render(rows))

	proc, err := NewImplementor().ImplementRoot(f.scan(f.empsH))
	require.NoError(t, err)
	exe, err := ClosureCompiler{}.Compile(proc)
	require.NoError(t, err)
	e, err := exe.Execute(catalog.NewDataContext(catalog.NewMapSchema("")))
	require.NoError(t, err)
	_, err = ir.Collect(t.Context(), e)
	assert.ErrorContains(t, err, "emps is not in the data context")
}

func TestExecute_Joins(t *testing.T) {
	f := newFixture(t)
	emps, depts := f.scan(f.empsH), f.scan(f.depH)
	rt := rel.JoinRowType(f.c.TypeFactory(), emps.RowType(), depts.RowType(), rel.LeftJoin)
	eq := f.b.MustCall(rex.Equals, f.b.MakeInputRef(rt, 1), f.b.MakeInputRef(rt, 3))

	tests := []struct {
		name string
		cond rex.Node
		jt   rel.JoinType
		algo string
		want [][]string
	}{
		{
			name: "hash left join pads unmatched",
			cond: eq,
			jt:   rel.LeftJoin,
			algo: "hash",
			want: [][]string{
				{"1", "10", "ann", "10", "eng"},
				{"2", "20", "bob", "20", "ops"},
				{"3", "NULL", "cy", "NULL", "NULL"},
				{"4", "10", "dee", "10", "eng"},
			},
		},
		{
			name: "hash inner join with residual",
			cond: f.b.MustCall(rex.And, eq, f.b.MustCall(rex.GreaterThan, f.b.MakeInputRef(rt, 0), f.b.MakeIntLiteral(1))),
			jt:   rel.InnerJoin,
			algo: "hash",
			want: [][]string{
				{"2", "20", "bob", "20", "ops"},
				{"4", "10", "dee", "10", "eng"},
			},
		},
		{
			name: "nested loop on inequality",
			cond: f.b.MustCall(rex.GreaterThan, f.b.MakeInputRef(rt, 1), f.b.MakeInputRef(rt, 3)),
			jt:   rel.InnerJoin,
			algo: "nestedLoop",
			want: [][]string{
				{"2", "20", "bob", "10", "eng"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &Join{rel.NewJoin(f.c, emps, depts, tt.cond, tt.jt)}
			assert.Contains(t, j.Attrs(), rel.Attr{Name: "algorithm", Value: tt.algo})
			assert.Equal(t, tt.want, render(f.run(t, j)))
		})
	}
}

func TestExecute_Aggregate(t *testing.T) {
	f := newFixture(t)
	tf := f.c.TypeFactory()
	emps := f.scan(f.empsH)
	bigint := tf.CreateSQLType(ir.TypeBigInt)

	grouped := &Aggregate{rel.NewAggregate(f.c, emps, []int{1}, []rel.AggCall{
		{Func: rel.AggCount, Type: bigint, Name: "c"},
		{Func: rel.AggSum, Args: []int{0}, Type: bigint, Name: "s"},
		{Func: rel.AggMax, Args: []int{2}, Type: tf.CreateSQLType(ir.TypeVarchar), Name: "m"},
	})}
	assert.Equal(t, [][]string{
		{"10", "2", "5", "dee"},
		{"20", "1", "2", "bob"},
		{"NULL", "1", "3", "cy"},
	}, render(f.run(t, grouped)))

	none := NewCalc(f.c, emps, Program{
		Condition: f.b.MustCall(rex.GreaterThan, f.b.MakeInputRef(emps.RowType(), 0), f.b.MakeIntLiteral(100)),
		Projects:  []rex.Node{f.b.MakeInputRef(emps.RowType(), 0)},
	}, tf.CreateStructType([]string{"id"}, []*ir.Type{tf.CreateSQLType(ir.TypeInteger)}))
	global := &Aggregate{rel.NewAggregate(f.c, none, nil, []rel.AggCall{
		{Func: rel.AggCount, Type: bigint, Name: "c"},
		{Func: rel.AggSum, Args: []int{0}, Type: tf.WithNullability(bigint, true), Name: "s"},
	})}
	assert.Equal(t, [][]string{{"0", "NULL"}}, render(f.run(t, global)))

	distinct := &Aggregate{rel.NewAggregate(f.c, emps, nil, []rel.AggCall{
		{Func: rel.AggCount, Distinct: true, Args: []int{1}, Type: bigint, Name: "c"},
	})}
	assert.Equal(t, [][]string{{"2"}}, render(f.run(t, distinct)))
}

func TestExecute_SortNullsLastAndFetch(t *testing.T) {
	f := newFixture(t)
	emps := f.scan(f.empsH)

	asc := &Sort{rel.NewSort(f.c, emps, []rel.FieldCollation{{Field: 1}}, 0, rel.NoFetch)}
	names := func(rows []ir.Row) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r[2].String())
		}
		return out
	}
	assert.Equal(t, []string{"ann", "dee", "bob", "cy"}, names(f.run(t, asc)))

	page := &Sort{rel.NewSort(f.c, emps, []rel.FieldCollation{{Field: 0, Descending: true}}, 1, 2)}
	assert.Equal(t, []string{"cy", "bob"}, names(f.run(t, page)))

	past := &Sort{rel.NewSort(f.c, emps, nil, 10, rel.NoFetch)}
	assert.Empty(t, f.run(t, past))
}

func TestExecute_SetOps(t *testing.T) {
	f := newFixture(t)
	tf := f.c.TypeFactory()
	rt := tf.CreateStructType([]string{"n"}, []*ir.Type{tf.CreateSQLType(ir.TypeInteger)})
	values := func(ns ...int64) *Values {
		tuples := make([][]rex.Literal, len(ns))
		for i, n := range ns {
			tuples[i] = []rex.Literal{f.b.MakeIntLiteral(n)}
		}
		return &Values{rel.NewValues(f.c, rt, tuples)}
	}
	flat := func(rows []ir.Row) []string {
		out := []string{}
		for _, r := range rows {
			out = append(out, r[0].String())
		}
		return out
	}

	tests := []struct {
		kind rel.SetKind
		all  bool
		want []string
	}{
		{rel.SetUnion, true, []string{"1", "1", "2", "2", "2", "3", "4"}},
		{rel.SetUnion, false, []string{"1", "2", "3", "4"}},
		{rel.SetIntersect, false, []string{"2"}},
		{rel.SetIntersect, true, []string{"2"}},
		{rel.SetMinus, false, []string{"1"}},
		{rel.SetMinus, true, []string{"1", "1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			op := &SetOp{rel.NewSetOp(f.c, tt.kind, []rel.Node{values(1, 1, 2, 2), values(2, 3, 4)}, tt.all, rt)}
			assert.Equal(t, tt.want, flat(f.run(t, op)))
		})
	}
}

func TestCompile_FailureCarriesSource(t *testing.T) {
	f := newFixture(t)
	scan := f.scan(f.empsH)
	rng := f.b.MakeRangeRef(scan.RowType(), 0)
	tf := f.c.TypeFactory()
	calc := NewCalc(f.c, scan, Program{Projects: []rex.Node{rng}},
		tf.CreateStructType([]string{"r"}, []*ir.Type{scan.RowType()}))

	proc, err := NewImplementor().ImplementRoot(calc)
	require.NoError(t, err)
	_, err = ClosureCompiler{}.Compile(proc)
	require.Error(t, err)
	assert.True(t, IsCompileError(err))

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, proc.Source(), ce.Source)
	assert.Contains(t, err.Error(), "RANGE($0)")
}

func TestProgramMerge(t *testing.T) {
	f := newFixture(t)
	rt := f.empsH.RowType()
	bottom := Program{
		Condition: f.b.MustCall(rex.IsNotNull, f.b.MakeInputRef(rt, 1)),
		Projects:  []rex.Node{f.b.MakeInputRef(rt, 2), f.b.MakeInputRef(rt, 0)},
	}
	mid := f.c.TypeFactory().CreateStructType([]string{"name", "id"},
		[]*ir.Type{rt.Fields()[2].Type, rt.Fields()[0].Type})
	top := Program{
		Condition: f.b.MustCall(rex.GreaterThan, f.b.MakeInputRef(mid, 1), f.b.MakeIntLiteral(2)),
		Projects:  []rex.Node{f.b.MakeInputRef(mid, 0)},
	}

	merged, err := top.Merge(f.b, bottom)
	require.NoError(t, err)
	assert.Equal(t, "filter=AND(IS NOT NULL($1), >($0, 2)), project=[$2]", merged.String())
	assert.False(t, merged.IsTrivial(3))
	assert.True(t, Program{Projects: []rex.Node{f.b.MakeInputRef(mid, 0), f.b.MakeInputRef(mid, 1)}}.IsTrivial(2))
}
