package rel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rex"
)

// TableScan reads every row of a catalog table.
type TableScan struct {
	base
	Table *catalog.TableHandle
}

// NewTableScan creates a scan of table.
func NewTableScan(c *Cluster, table *catalog.TableHandle) *TableScan {
	return &TableScan{base: newBase(c, table.RowType()), Table: table}
}

func (s *TableScan) Inputs() []Node   { return nil }
func (s *TableScan) OpName() string   { return "LogicalTableScan" }
func (s *TableScan) Copy([]Node) Node { return NewTableScan(s.cluster, s.Table) }

func (s *TableScan) Attrs() []Attr {
	return []Attr{{"table", "[" + strings.Join(s.Table.QualifiedName(), ", ") + "]"}}
}

func (s *TableScan) EstimateRowCount() float64 { return s.Table.RowCount() }
func (s *TableScan) SelfCost() Cost            { return Cost{Rows: s.Table.RowCount(), CPU: s.Table.RowCount()} }

// Values produces a fixed list of literal rows.
type Values struct {
	base
	Tuples [][]rex.Literal
}

// NewValues creates a Values node. Every tuple must match rowType.
func NewValues(c *Cluster, rowType *ir.Type, tuples [][]rex.Literal) *Values {
	return &Values{base: newBase(c, rowType), Tuples: tuples}
}

func (v *Values) Inputs() []Node { return nil }
func (v *Values) OpName() string { return "LogicalValues" }
func (v *Values) Attrs() []Attr {
	rows := make([]string, len(v.Tuples))
	for i, t := range v.Tuples {
		cells := make([]string, len(t))
		for j, l := range t {
			cells[j] = l.String()
		}
		rows[i] = "{ " + strings.Join(cells, ", ") + " }"
	}
	return []Attr{{"type", v.rowType.Digest()}, {"tuples", "[" + strings.Join(rows, ", ") + "]"}}
}
func (v *Values) Copy([]Node) Node          { return NewValues(v.cluster, v.rowType, v.Tuples) }
func (v *Values) EstimateRowCount() float64 { return float64(len(v.Tuples)) }
func (v *Values) SelfCost() Cost {
	n := float64(len(v.Tuples))
	return Cost{Rows: n, CPU: n}
}

// Filter keeps the input rows for which Condition is TRUE.
type Filter struct {
	base
	Input     Node
	Condition rex.Node
}

// NewFilter creates a filter.
func NewFilter(c *Cluster, input Node, cond rex.Node) *Filter {
	return &Filter{base: newBase(c, input.RowType()), Input: input, Condition: cond}
}

func (f *Filter) Inputs() []Node { return []Node{f.Input} }
func (f *Filter) OpName() string { return "LogicalFilter" }
func (f *Filter) Attrs() []Attr  { return []Attr{{"condition", f.Condition.String()}} }
func (f *Filter) Copy(inputs []Node) Node {
	return NewFilter(f.cluster, inputs[0], f.Condition)
}
func (f *Filter) EstimateRowCount() float64 { return RowCount(f.Input) * Selectivity(f.Condition) }
func (f *Filter) SelfCost() Cost {
	in := RowCount(f.Input)
	return Cost{Rows: f.EstimateRowCount(), CPU: in}
}

// Selectivity guesses the fraction of rows a condition keeps.
func Selectivity(cond rex.Node) float64 {
	sel := 1.0
	for _, c := range rex.Conjunctions(cond) {
		call, ok := c.(rex.Call)
		switch {
		case ok && call.Op.Kind == rex.KindEquals:
			sel *= 0.15
		case ok && call.Op.Kind == rex.KindIsNotNull:
			sel *= 0.9
		default:
			sel *= 0.5
		}
	}
	return sel
}

// Project computes one expression per output field.
type Project struct {
	base
	Input Node
	Exprs []rex.Node
}

// NewProject creates a projection. rowType names the output fields and
// must have one field per expression.
func NewProject(c *Cluster, input Node, exprs []rex.Node, rowType *ir.Type) *Project {
	if rowType.FieldCount() != len(exprs) {
		panic(fmt.Sprintf("NewProject: %d expressions but %d fields", len(exprs), rowType.FieldCount()))
	}
	return &Project{base: newBase(c, rowType), Input: input, Exprs: exprs}
}

// ProjectRowType derives a row type for exprs with the given names.
func ProjectRowType(tf *ir.TypeFactory, exprs []rex.Node, names []string) *ir.Type {
	types := make([]*ir.Type, len(exprs))
	for i, e := range exprs {
		types[i] = e.Type()
	}
	return tf.CreateStructType(names, types)
}

func (p *Project) Inputs() []Node { return []Node{p.Input} }
func (p *Project) OpName() string { return "LogicalProject" }
func (p *Project) Attrs() []Attr  { return exprAttrs(p.rowType, p.Exprs) }
func (p *Project) Copy(inputs []Node) Node {
	return NewProject(p.cluster, inputs[0], p.Exprs, p.rowType)
}
func (p *Project) EstimateRowCount() float64 { return RowCount(p.Input) }
func (p *Project) SelfCost() Cost {
	n := RowCount(p.Input)
	return Cost{Rows: n, CPU: n * float64(len(p.Exprs))}
}

// IsIdentity reports whether the projection returns its input unchanged,
// field names included.
func (p *Project) IsIdentity() bool {
	return rex.IsIdentity(p.Exprs, p.Input.RowType().FieldCount()) &&
		equalNames(p.rowType.FieldNames(), p.Input.RowType().FieldNames())
}

func exprAttrs(rowType *ir.Type, exprs []rex.Node) []Attr {
	attrs := make([]Attr, len(exprs))
	names := rowType.FieldNames()
	for i, e := range exprs {
		attrs[i] = Attr{names[i], e.String()}
	}
	return attrs
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// JoinType is the kind of join.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

func (t JoinType) String() string {
	if t == LeftJoin {
		return "left"
	}
	return "inner"
}

// Join combines two inputs on a condition over their concatenated fields.
type Join struct {
	base
	Left, Right Node
	Condition   rex.Node
	Type        JoinType
}

// NewJoin creates a join.
func NewJoin(c *Cluster, left, right Node, cond rex.Node, jt JoinType) *Join {
	rt := JoinRowType(c.TypeFactory(), left.RowType(), right.RowType(), jt)
	return &Join{base: newBase(c, rt), Left: left, Right: right, Condition: cond, Type: jt}
}

// JoinRowType concatenates the fields of both sides. Names repeated on the
// right get a numeric suffix; right fields become nullable for LEFT joins.
func JoinRowType(tf *ir.TypeFactory, left, right *ir.Type, jt JoinType) *ir.Type {
	var names []string
	var types []*ir.Type
	for _, f := range left.Fields() {
		names = append(names, f.Name)
		types = append(types, f.Type)
	}
	for _, f := range right.Fields() {
		names = append(names, f.Name)
		t := f.Type
		if jt == LeftJoin {
			t = tf.WithNullability(t, true)
		}
		types = append(types, t)
	}
	return tf.CreateStructType(UniquifyNames(names), types)
}

// UniquifyNames renames duplicates by appending the lowest free integer.
func UniquifyNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		name := n
		for k := 0; used[name]; k++ {
			name = n + strconv.Itoa(k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func (j *Join) Inputs() []Node { return []Node{j.Left, j.Right} }
func (j *Join) OpName() string { return "LogicalJoin" }
func (j *Join) Attrs() []Attr {
	return []Attr{{"condition", j.Condition.String()}, {"joinType", j.Type.String()}}
}
func (j *Join) Copy(inputs []Node) Node {
	return NewJoin(j.cluster, inputs[0], inputs[1], j.Condition, j.Type)
}
func (j *Join) EstimateRowCount() float64 {
	n := RowCount(j.Left) * RowCount(j.Right) * Selectivity(j.Condition)
	if j.Type == LeftJoin {
		n = max(n, RowCount(j.Left))
	}
	return n
}
func (j *Join) SelfCost() Cost {
	return Cost{Rows: j.EstimateRowCount(), CPU: RowCount(j.Left) * RowCount(j.Right)}
}

// AggFunc is an aggregate function.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggSum
	AggMin
	AggMax
)

func (f AggFunc) String() string {
	return [...]string{"COUNT", "SUM", "MIN", "MAX"}[f]
}

// LookupAggFunc maps an upper-case function name to an aggregate.
func LookupAggFunc(name string) (AggFunc, bool) {
	switch name {
	case "COUNT":
		return AggCount, true
	case "SUM":
		return AggSum, true
	case "MIN":
		return AggMin, true
	case "MAX":
		return AggMax, true
	}
	return 0, false
}

// AggCall is one aggregate computed by an Aggregate node.
// Args are input field indexes; COUNT(*) has none.
type AggCall struct {
	Func     AggFunc
	Distinct bool
	Args     []int
	Type     *ir.Type
	Name     string
}

func (a AggCall) String() string {
	args := make([]string, len(a.Args))
	for i, x := range a.Args {
		args[i] = "$" + strconv.Itoa(x)
	}
	d := ""
	if a.Distinct {
		d = "DISTINCT "
	}
	return a.Func.String() + "(" + d + strings.Join(args, ", ") + ")"
}

// InferAggType derives an aggregate's result type. argType is nil for
// COUNT(*). Results are nullable when the aggregate can see an empty group.
func InferAggType(tf *ir.TypeFactory, fn AggFunc, argType *ir.Type, grouped bool) (*ir.Type, error) {
	if fn == AggCount {
		return tf.CreateSQLType(ir.TypeBigInt), nil
	}
	if argType == nil {
		return nil, fmt.Errorf("%s requires an argument", fn)
	}
	nullable := argType.IsNullable() || !grouped
	switch fn {
	case AggSum:
		name := argType.Name()
		switch {
		case !name.IsNumeric():
			return nil, fmt.Errorf("cannot SUM %s", name)
		case name == ir.TypeDecimal:
			return tf.WithNullability(tf.CreateSQLTypeWithScale(ir.TypeDecimal, ir.MaxDecimalPrecision, max(argType.Scale(), 0)), nullable), nil
		case name.IsExact():
			return tf.WithNullability(tf.CreateSQLType(ir.TypeBigInt), nullable), nil
		default:
			return tf.WithNullability(tf.CreateSQLType(ir.TypeDouble), nullable), nil
		}
	default:
		if argType.IsStruct() {
			return nil, fmt.Errorf("cannot %s a ROW", fn)
		}
		return tf.WithNullability(argType, nullable), nil
	}
}

// Aggregate groups its input and computes aggregates per group.
// Output fields are the group keys followed by one field per AggCall.
type Aggregate struct {
	base
	Input    Node
	GroupSet []int
	AggCalls []AggCall
}

// NewAggregate creates an aggregate.
func NewAggregate(c *Cluster, input Node, groupSet []int, calls []AggCall) *Aggregate {
	in := input.RowType().Fields()
	var names []string
	var types []*ir.Type
	for _, g := range groupSet {
		names = append(names, in[g].Name)
		types = append(types, in[g].Type)
	}
	for _, a := range calls {
		names = append(names, a.Name)
		types = append(types, a.Type)
	}
	rt := c.TypeFactory().CreateStructType(UniquifyNames(names), types)
	return &Aggregate{base: newBase(c, rt), Input: input, GroupSet: groupSet, AggCalls: calls}
}

func (a *Aggregate) Inputs() []Node { return []Node{a.Input} }
func (a *Aggregate) OpName() string { return "LogicalAggregate" }
func (a *Aggregate) Attrs() []Attr {
	keys := make([]string, len(a.GroupSet))
	for i, g := range a.GroupSet {
		keys[i] = strconv.Itoa(g)
	}
	attrs := []Attr{{"group", "{" + strings.Join(keys, ", ") + "}"}}
	for _, c := range a.AggCalls {
		attrs = append(attrs, Attr{c.Name, c.String()})
	}
	return attrs
}
func (a *Aggregate) Copy(inputs []Node) Node {
	return NewAggregate(a.cluster, inputs[0], a.GroupSet, a.AggCalls)
}
func (a *Aggregate) EstimateRowCount() float64 {
	if len(a.GroupSet) == 0 {
		return 1
	}
	return RowCount(a.Input) * 0.1
}
func (a *Aggregate) SelfCost() Cost {
	in := RowCount(a.Input)
	return Cost{Rows: a.EstimateRowCount(), CPU: in * float64(len(a.AggCalls)+1)}
}

// FieldCollation is one sort key.
type FieldCollation struct {
	Field      int
	Descending bool
}

func (fc FieldCollation) String() string {
	if fc.Descending {
		return "$" + strconv.Itoa(fc.Field) + " DESC"
	}
	return "$" + strconv.Itoa(fc.Field)
}

// NoFetch marks a Sort without a row limit.
const NoFetch = -1

// Sort orders its input, then skips Offset rows and keeps at most Fetch.
// A Sort with no collation only applies offset/fetch.
type Sort struct {
	base
	Input     Node
	Collation []FieldCollation
	Offset    int64
	Fetch     int64
}

// NewSort creates a sort.
func NewSort(c *Cluster, input Node, collation []FieldCollation, offset, fetch int64) *Sort {
	return &Sort{base: newBase(c, input.RowType()), Input: input, Collation: collation, Offset: offset, Fetch: fetch}
}

func (s *Sort) Inputs() []Node { return []Node{s.Input} }
func (s *Sort) OpName() string { return "LogicalSort" }
func (s *Sort) Attrs() []Attr {
	var attrs []Attr
	for i, fc := range s.Collation {
		attrs = append(attrs, Attr{"sort" + strconv.Itoa(i), fc.String()})
	}
	if s.Offset > 0 {
		attrs = append(attrs, Attr{"offset", strconv.FormatInt(s.Offset, 10)})
	}
	if s.Fetch != NoFetch {
		attrs = append(attrs, Attr{"fetch", strconv.FormatInt(s.Fetch, 10)})
	}
	return attrs
}
func (s *Sort) Copy(inputs []Node) Node {
	return NewSort(s.cluster, inputs[0], s.Collation, s.Offset, s.Fetch)
}
func (s *Sort) EstimateRowCount() float64 {
	n := max(RowCount(s.Input)-float64(s.Offset), 0)
	if s.Fetch != NoFetch {
		n = min(n, float64(s.Fetch))
	}
	return n
}
func (s *Sort) SelfCost() Cost {
	in := RowCount(s.Input)
	cpu := in
	if len(s.Collation) > 0 && in > 1 {
		cpu = in * math.Log2(in)
	}
	return Cost{Rows: s.EstimateRowCount(), CPU: cpu}
}

// SetKind distinguishes the three set operators.
type SetKind int

const (
	SetUnion SetKind = iota
	SetIntersect
	SetMinus
)

func (k SetKind) String() string {
	return [...]string{"Union", "Intersect", "Minus"}[k]
}

// SetOp is UNION, INTERSECT or EXCEPT over two or more inputs.
// All keeps duplicates.
type SetOp struct {
	base
	Kind     SetKind
	Branches []Node
	All      bool
}

// NewSetOp creates a set operator. rowType is the least restrictive row
// type of the inputs.
func NewSetOp(c *Cluster, kind SetKind, inputs []Node, all bool, rowType *ir.Type) *SetOp {
	return &SetOp{base: newBase(c, rowType), Kind: kind, Branches: inputs, All: all}
}

func (s *SetOp) Inputs() []Node { return s.Branches }
func (s *SetOp) OpName() string { return "Logical" + s.Kind.String() }
func (s *SetOp) Attrs() []Attr  { return []Attr{{"all", strconv.FormatBool(s.All)}} }
func (s *SetOp) Copy(inputs []Node) Node {
	return NewSetOp(s.cluster, s.Kind, inputs, s.All, s.rowType)
}
func (s *SetOp) EstimateRowCount() float64 {
	switch s.Kind {
	case SetUnion:
		n := 0.0
		for _, in := range s.Branches {
			n += RowCount(in)
		}
		if !s.All {
			n *= 0.5
		}
		return n
	case SetIntersect:
		n := RowCount(s.Branches[0])
		for _, in := range s.Branches[1:] {
			n = min(n, RowCount(in))
		}
		return n * 0.25
	default:
		return RowCount(s.Branches[0]) * 0.5
	}
}
func (s *SetOp) SelfCost() Cost {
	cpu := 0.0
	for _, in := range s.Branches {
		cpu += RowCount(in)
	}
	return Cost{Rows: s.EstimateRowCount(), CPU: cpu}
}

// SetOpRowType derives the row type of a set operation: field names come
// from the first input, types are the least restrictive per column.
func SetOpRowType(tf *ir.TypeFactory, inputs []*ir.Type) (*ir.Type, error) {
	first := inputs[0]
	n := first.FieldCount()
	types := make([]*ir.Type, n)
	for i := 0; i < n; i++ {
		col := make([]*ir.Type, len(inputs))
		for j, in := range inputs {
			if in.FieldCount() != n {
				return nil, fmt.Errorf("set operator inputs have %d and %d columns", n, in.FieldCount())
			}
			col[j] = in.Fields()[i].Type
		}
		t, ok := tf.LeastRestrictive(col...)
		if !ok {
			return nil, fmt.Errorf("column %d has incompatible types across set operator inputs", i+1)
		}
		types[i] = t
	}
	return tf.CreateStructType(first.FieldNames(), types), nil
}
