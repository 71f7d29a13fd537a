package planner

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

func fixture(t *testing.T) (*Driver, *catalog.TableHandle) {
	t.Helper()
	tf := ir.NewTypeFactory()
	xy := tf.CreateStructType(
		[]string{"x", "y"},
		[]*ir.Type{tf.CreateSQLType(ir.TypeInteger), tf.CreateSQLType(ir.TypeInteger)},
	)
	root := catalog.NewMapSchema("").AddTable("T", catalog.NewMemTable("T", xy))
	h, err := catalog.NewReader(root, tf).Resolve([]string{"T"})
	require.NoError(t, err)
	return NewDriver(tf), h
}

func TestOptimize_SortUnderProjectYieldsOneCalc(t *testing.T) {
	d, h := fixture(t)
	c := d.Cluster()
	b := c.Builder()

	scan := rel.NewTableScan(c, h)
	sort := rel.NewSort(c, scan, []rel.FieldCollation{{Field: 1}}, 0, rel.NoFetch)
	exprs := []rex.Node{
		b.MustCall(rex.Plus, b.MakeInputRef(sort.RowType(), 0), b.MakeIntLiteral(1)),
		b.MakeInputRef(sort.RowType(), 1),
	}
	project := rel.NewProject(c, sort, exprs, rel.ProjectRowType(c.TypeFactory(), exprs, []string{"EXPR$0", "y"}))

	best, err := d.Optimize(project, project.RowType())
	require.NoError(t, err)

	want := "EnumerableCalc(EXPR$0=[+($0, 1)], y=[$1])\n" +
		"  EnumerableSort(sort0=[$1])\n" +
		"    EnumerableTableScan(table=[[T]])\n"
	assert.Equal(t, want, rel.Explain(best))
	assert.Equal(t, StateOptimized, d.Planner().State())

	calcs := 0
	rel.Walk(best, func(n rel.Node) bool {
		if n.OpName() == "EnumerableCalc" {
			calcs++
		}
		return true
	})
	assert.Equal(t, 1, calcs)
}

func TestOptimize_StackedFiltersBecomeOneCalc(t *testing.T) {
	d, h := fixture(t)
	c := d.Cluster()
	b := c.Builder()

	scan := rel.NewTableScan(c, h)
	rt := scan.RowType()
	inner := rel.NewFilter(c, scan, b.MustCall(rex.GreaterThan, b.MakeInputRef(rt, 0), b.MakeIntLiteral(1)))
	outer := rel.NewFilter(c, inner, b.MustCall(rex.LessThan, b.MakeInputRef(rt, 1), b.MakeIntLiteral(5)))

	best, err := d.Optimize(outer, outer.RowType())
	require.NoError(t, err)

	want := "EnumerableCalc(condition=[AND(>($0, 1), <($1, 5))], x=[$0], y=[$1])\n" +
		"  EnumerableTableScan(table=[[T]])\n"
	assert.Equal(t, want, rel.Explain(best))
}

func TestOptimize_IdentityProjectRemoved(t *testing.T) {
	d, h := fixture(t)
	c := d.Cluster()
	b := c.Builder()

	scan := rel.NewTableScan(c, h)
	rt := scan.RowType()
	project := rel.NewProject(c, scan, []rex.Node{b.MakeInputRef(rt, 0), b.MakeInputRef(rt, 1)}, rt)

	best, err := d.Optimize(project, rt)
	require.NoError(t, err)
	assert.Equal(t, "EnumerableTableScan(table=[[T]])\n", rel.Explain(best))
}

func TestOptimize_FilterPushedIntoJoin(t *testing.T) {
	d, h := fixture(t)
	c := d.Cluster()
	b := c.Builder()

	join := rel.NewJoin(c, rel.NewTableScan(c, h), rel.NewTableScan(c, h), b.MakeBoolLiteral(true), rel.InnerJoin)
	rt := join.RowType()
	cond, err := b.MakeAnd(
		b.MustCall(rex.Equals, b.MakeInputRef(rt, 0), b.MakeInputRef(rt, 2)),
		b.MustCall(rex.GreaterThan, b.MakeInputRef(rt, 1), b.MakeIntLiteral(3)),
	)
	require.NoError(t, err)
	filter := rel.NewFilter(c, join, cond)

	best, err := d.Optimize(filter, filter.RowType())
	require.NoError(t, err)

	want := "EnumerableJoin(condition=[=($0, $2)], joinType=[inner], algorithm=[hash])\n" +
		"  EnumerableCalc(condition=[>($1, 3)], x=[$0], y=[$1])\n" +
		"    EnumerableTableScan(table=[[T]])\n" +
		"  EnumerableTableScan(table=[[T]])\n"
	assert.Equal(t, want, rel.Explain(best))
}

// opaque is a logical operator no rule can implement.
type opaque struct{ *rel.Values }

func (o *opaque) OpName() string             { return "Opaque" }
func (o *opaque) Copy([]rel.Node) rel.Node   { return &opaque{o.Values.Copy(nil).(*rel.Values)} }
func (o *opaque) Convention() rel.Convention { return rel.None }

func TestOptimize_UnimplementableIsPlanningError(t *testing.T) {
	d, h := fixture(t)
	c := d.Cluster()
	b := c.Builder()

	scan := rel.NewTableScan(c, h)
	values := &opaque{rel.NewValues(c, scan.RowType(), [][]rex.Literal{{b.MakeIntLiteral(1), b.MakeIntLiteral(2)}})}
	union := rel.NewSetOp(c, rel.SetUnion, []rel.Node{scan, values}, true, scan.RowType())

	_, err := d.Optimize(union, union.RowType())
	require.Error(t, err)

	var pe *PlanningError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Digest, "Opaque")
	assert.Equal(t, StateFailed, d.Planner().State())
}

func TestOptimize_RejectsMismatchedTarget(t *testing.T) {
	d, h := fixture(t)
	scan := rel.NewTableScan(d.Cluster(), h)
	tf := d.Cluster().TypeFactory()
	target := tf.CreateStructType([]string{"x"}, []*ir.Type{tf.CreateSQLType(ir.TypeInteger)})

	_, err := d.Optimize(scan, target)
	var pe *PlanningError
	assert.True(t, errors.As(err, &pe))
}

func TestPlanner_DedupesEquivalentNodes(t *testing.T) {
	d, h := fixture(t)
	c := d.Cluster()
	scan := rel.NewTableScan(c, h)
	union := rel.NewSetOp(c, rel.SetUnion, []rel.Node{scan, rel.NewTableScan(c, h)}, false, scan.RowType())

	require.NoError(t, d.Planner().SetRoot(union))
	assert.Equal(t, 2, d.Planner().Sets())

	best, err := d.Planner().FindBestPlan(rel.Enumerable)
	require.NoError(t, err)
	assert.Equal(t, "EnumerableUnion(all=[false])\n"+
		"  EnumerableTableScan(table=[[T]])\n"+
		"  EnumerableTableScan(table=[[T]])\n", rel.Explain(best))
}

func TestPlanner_StateMachine(t *testing.T) {
	d, h := fixture(t)
	p := d.Planner()
	assert.Equal(t, StateConfigured, p.State())

	rules := len(p.Rules())
	p.AddRule(FilterMergeRule)
	assert.Len(t, p.Rules(), rules, "duplicate rule ignored")
	assert.Equal(t, []rel.TraitDef{rel.ConventionTraitDef}, p.TraitDefs())

	require.NoError(t, p.SetRoot(rel.NewTableScan(d.Cluster(), h)))
	_, err := p.FindBestPlan(rel.Enumerable)
	require.NoError(t, err)
	assert.Equal(t, StateOptimized, p.State())

	assert.Panics(t, func() { p.AddRule(ProjectMergeRule) })
	assert.Panics(t, func() { _, _ = p.FindBestPlan(rel.Enumerable) })
}

func TestPlanner_BudgetStopsFiring(t *testing.T) {
	tf := ir.NewTypeFactory()
	d := NewDriver(tf, WithPlannerOptions(WithBudget(0)))
	xy := tf.CreateStructType([]string{"x"}, []*ir.Type{tf.CreateSQLType(ir.TypeInteger)})
	h := catalog.NewTableHandle([]string{"T"}, xy, catalog.NewMemTable("T", xy), catalog.DefaultRowCount)

	_, err := d.Optimize(rel.NewTableScan(d.Cluster(), h), xy)
	var pe *PlanningError
	require.True(t, errors.As(err, &pe), "no rule fired so nothing is ENUMERABLE")
}

func TestPassThroughFlattener(t *testing.T) {
	d, h := fixture(t)
	scan := rel.NewTableScan(d.Cluster(), h)
	assert.Same(t, scan, d.Flatten(scan))
}

func TestDriver_LogsThroughDriverLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tf := ir.NewTypeFactory()
	d := NewDriver(tf, WithDriverLogger(logger.With("prepare_id", "p-1")), WithPlannerOptions(WithBudget(0)))
	xy := tf.CreateStructType([]string{"x"}, []*ir.Type{tf.CreateSQLType(ir.TypeInteger)})
	h := catalog.NewTableHandle([]string{"T"}, xy, catalog.NewMemTable("T", xy), catalog.DefaultRowCount)
	scan := rel.NewTableScan(d.Cluster(), h)
	_, _ = d.Optimize(scan, xy)
	assert.Contains(t, buf.String(), `msg="planner: rule budget exhausted" prepare_id=p-1`)

	buf.Reset()
	d = NewDriver(tf, WithDriverLogger(logger.With("prepare_id", "p-2")))
	_, err := d.Optimize(rel.NewTableScan(d.Cluster(), h), xy)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="planner: optimized" prepare_id=p-2`)
	assert.Contains(t, buf.String(), `msg="planner: best plan chosen" prepare_id=p-2`)
}
