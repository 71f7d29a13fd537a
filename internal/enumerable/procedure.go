package enumerable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

// RootParam is the name of the procedure's entry parameter, the
// DataContext the plan executes against.
const RootParam = "root0"

// Op is one operator statement of a procedure.
type Op interface {
	op()
	String() string
}

// ScanOp reads a table by qualified name from the live root schema.
type ScanOp struct {
	Table *catalog.TableHandle
}

// ValuesOp emits literal rows.
type ValuesOp struct {
	Rows [][]rex.Literal
}

// CalcOp filters and projects.
type CalcOp struct {
	Program Program
}

// JoinOp joins two inputs.
type JoinOp struct {
	Type       rel.JoinType
	Keys       JoinKeys
	RightWidth int
}

// AggregateOp groups and aggregates.
type AggregateOp struct {
	GroupSet []int
	Calls    []rel.AggCall
}

// SortOp orders, then applies offset and fetch.
type SortOp struct {
	Collation []rel.FieldCollation
	Offset    int64
	Fetch     int64
}

// SetOpOp combines two or more inputs.
type SetOpOp struct {
	Kind rel.SetKind
	All  bool
}

func (ScanOp) op()      {}
func (ValuesOp) op()    {}
func (CalcOp) op()      {}
func (JoinOp) op()      {}
func (AggregateOp) op() {}
func (SortOp) op()      {}
func (SetOpOp) op()     {}

func (o ScanOp) String() string {
	return fmt.Sprintf("scan(%s, [%s])", RootParam, strings.Join(o.Table.QualifiedName(), ", "))
}

func (o ValuesOp) String() string {
	return fmt.Sprintf("values(%d rows)", len(o.Rows))
}

func (o CalcOp) String() string { return "calc(" + o.Program.String() + ")" }

func (o JoinOp) String() string {
	var parts []string
	for i := range o.Keys.Left {
		parts = append(parts, fmt.Sprintf("$%d = $%d", o.Keys.Left[i], o.Keys.Right[i]))
	}
	algo := "hash"
	if len(parts) == 0 {
		algo = "nestedLoop"
	}
	s := fmt.Sprintf("join(%s, %s, keys=[%s]", o.Type, algo, strings.Join(parts, ", "))
	if len(o.Keys.Residual) > 0 {
		s += ", residual=[" + strings.Join(rex.Digests(o.Keys.Residual), ", ") + "]"
	}
	return s + ")"
}

func (o AggregateOp) String() string {
	keys := make([]string, len(o.GroupSet))
	for i, g := range o.GroupSet {
		keys[i] = strconv.Itoa(g)
	}
	calls := make([]string, len(o.Calls))
	for i, c := range o.Calls {
		calls[i] = c.String()
	}
	return fmt.Sprintf("aggregate(group={%s}, calls=[%s])", strings.Join(keys, ", "), strings.Join(calls, ", "))
}

func (o SortOp) String() string {
	keys := make([]string, len(o.Collation))
	for i, fc := range o.Collation {
		keys[i] = fc.String()
	}
	return fmt.Sprintf("sort([%s], offset=%d, fetch=%d)", strings.Join(keys, ", "), o.Offset, o.Fetch)
}

func (o SetOpOp) String() string {
	return fmt.Sprintf("%s(all=%t)", strings.ToLower(o.Kind.String()), o.All)
}

// Stmt binds the rows of Op over Inputs to Var.
type Stmt struct {
	Var    string
	Op     Op
	Inputs []string
}

// Procedure is an implemented plan: a single root block of statements over
// the entry parameter RootParam, returning the rows of Result.
type Procedure struct {
	Stmts   []Stmt
	Result  string
	RowType *ir.Type
}

// Source renders the procedure as a readable listing.
func (p *Procedure) Source() string {
	var b strings.Builder
	fmt.Fprintf(&b, "func(%s DataContext) Enumerable[%s] {\n", RootParam, p.RowType.Digest())
	for _, s := range p.Stmts {
		args := s.Inputs
		fmt.Fprintf(&b, "  %s := %s", s.Var, s.Op.String())
		if len(args) > 0 {
			fmt.Fprintf(&b, " <- %s", strings.Join(args, ", "))
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  return %s\n}\n", p.Result)
	return b.String()
}

// Implementor lowers a physical plan into a Procedure.
type Implementor struct {
	stmts []Stmt
}

// NewImplementor creates an implementor.
func NewImplementor() *Implementor { return &Implementor{} }

// ImplementRoot lowers root, which must be in the ENUMERABLE convention
// throughout.
func (imp *Implementor) ImplementRoot(root rel.Node) (*Procedure, error) {
	imp.stmts = nil
	v, err := imp.Child(root)
	if err != nil {
		return nil, err
	}
	return &Procedure{Stmts: imp.stmts, Result: v, RowType: root.RowType()}, nil
}

// Child implements n and returns its variable.
func (imp *Implementor) Child(n rel.Node) (string, error) {
	en, ok := n.(Node)
	if !ok {
		return "", fmt.Errorf("cannot implement %s: not in %s convention", n.OpName(), rel.Enumerable)
	}
	return en.Implement(imp)
}

// Emit appends a statement and returns its variable.
func (imp *Implementor) Emit(op Op, inputs ...string) string {
	v := "v" + strconv.Itoa(len(imp.stmts))
	imp.stmts = append(imp.stmts, Stmt{Var: v, Op: op, Inputs: inputs})
	return v
}

func (imp *Implementor) children(ns []rel.Node) ([]string, error) {
	vars := make([]string, len(ns))
	for i, n := range ns {
		v, err := imp.Child(n)
		if err != nil {
			return nil, err
		}
		vars[i] = v
	}
	return vars, nil
}

func (s *TableScan) Implement(imp *Implementor) (string, error) {
	return imp.Emit(ScanOp{Table: s.Table}), nil
}

func (v *Values) Implement(imp *Implementor) (string, error) {
	return imp.Emit(ValuesOp{Rows: v.Tuples}), nil
}

func (c *Calc) Implement(imp *Implementor) (string, error) {
	in, err := imp.Child(c.Input)
	if err != nil {
		return "", err
	}
	return imp.Emit(CalcOp{Program: c.Program}, in), nil
}

func (j *Join) Implement(imp *Implementor) (string, error) {
	ins, err := imp.children(j.Inputs())
	if err != nil {
		return "", err
	}
	op := JoinOp{
		Type:       j.Type,
		Keys:       EquiKeys(j.Condition, j.Left.RowType().FieldCount()),
		RightWidth: j.Right.RowType().FieldCount(),
	}
	return imp.Emit(op, ins...), nil
}

func (a *Aggregate) Implement(imp *Implementor) (string, error) {
	in, err := imp.Child(a.Input)
	if err != nil {
		return "", err
	}
	return imp.Emit(AggregateOp{GroupSet: a.GroupSet, Calls: a.AggCalls}, in), nil
}

func (s *Sort) Implement(imp *Implementor) (string, error) {
	in, err := imp.Child(s.Input)
	if err != nil {
		return "", err
	}
	return imp.Emit(SortOp{Collation: s.Collation, Offset: s.Offset, Fetch: s.Fetch}, in), nil
}

func (s *SetOp) Implement(imp *Implementor) (string, error) {
	ins, err := imp.children(s.Branches)
	if err != nil {
		return "", err
	}
	return imp.Emit(SetOpOp{Kind: s.Kind, All: s.All}, ins...), nil
}
