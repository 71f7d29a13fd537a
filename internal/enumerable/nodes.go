package enumerable

import (
	"strings"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

// Node is a relational node in the ENUMERABLE convention.
type Node interface {
	rel.Node
	// Implement appends the node's statement to the procedure and returns
	// the variable holding its rows.
	Implement(imp *Implementor) (string, error)
}

// TableScan reads a table through its DataAccess.
type TableScan struct{ *rel.TableScan }

// NewTableScan wraps a logical scan.
func NewTableScan(s *rel.TableScan) *TableScan { return &TableScan{s} }

func (s *TableScan) Convention() rel.Convention { return rel.Enumerable }
func (s *TableScan) OpName() string             { return "EnumerableTableScan" }
func (s *TableScan) Copy([]rel.Node) rel.Node {
	return NewTableScan(s.TableScan.Copy(nil).(*rel.TableScan))
}

// Values emits literal rows.
type Values struct{ *rel.Values }

func (v *Values) Convention() rel.Convention { return rel.Enumerable }
func (v *Values) OpName() string             { return "EnumerableValues" }
func (v *Values) Copy([]rel.Node) rel.Node {
	return &Values{v.Values.Copy(nil).(*rel.Values)}
}

// Program is the body of a Calc: an optional filter condition over the
// input row, then one expression per output field.
type Program struct {
	// Condition is nil when every row passes.
	Condition rex.Node
	Projects  []rex.Node
}

// IsTrivial reports whether the program returns its input unchanged.
func (p Program) IsTrivial(inputFields int) bool {
	return p.Condition == nil && rex.IsIdentity(p.Projects, inputFields)
}

// Merge returns the program equivalent to running bottom, then p.
func (p Program) Merge(b *rex.Builder, bottom Program) (Program, error) {
	substitute := func(n rex.Node) rex.Node {
		return rex.Replace(n, func(r rex.InputRef) rex.Node { return bottom.Projects[r.Index] })
	}
	out := Program{Projects: make([]rex.Node, len(p.Projects))}
	for i, e := range p.Projects {
		out.Projects[i] = substitute(e)
	}
	var conds []rex.Node
	if bottom.Condition != nil {
		conds = append(conds, bottom.Condition)
	}
	if p.Condition != nil {
		conds = append(conds, substitute(p.Condition))
	}
	if len(conds) > 0 {
		cond, err := b.MakeAnd(conds...)
		if err != nil {
			return Program{}, err
		}
		if !rex.IsAlwaysTrue(cond) {
			out.Condition = cond
		}
	}
	return out, nil
}

func (p Program) String() string {
	var b strings.Builder
	if p.Condition != nil {
		b.WriteString("filter=")
		b.WriteString(p.Condition.String())
		b.WriteString(", ")
	}
	b.WriteString("project=[")
	b.WriteString(strings.Join(rex.Digests(p.Projects), ", "))
	b.WriteByte(']')
	return b.String()
}

// Calc filters and projects in one pass.
type Calc struct {
	cluster *rel.Cluster
	id      int
	rowType *ir.Type
	Input   rel.Node
	Program Program
}

// NewCalc creates a calc. rowType names the projected fields.
func NewCalc(c *rel.Cluster, input rel.Node, prog Program, rowType *ir.Type) *Calc {
	return &Calc{cluster: c, id: c.NextID(), rowType: rowType, Input: input, Program: prog}
}

func (c *Calc) ID() int                    { return c.id }
func (c *Calc) Cluster() *rel.Cluster      { return c.cluster }
func (c *Calc) RowType() *ir.Type          { return c.rowType }
func (c *Calc) Inputs() []rel.Node         { return []rel.Node{c.Input} }
func (c *Calc) Convention() rel.Convention { return rel.Enumerable }
func (c *Calc) OpName() string             { return "EnumerableCalc" }

func (c *Calc) Attrs() []rel.Attr {
	var attrs []rel.Attr
	if c.Program.Condition != nil {
		attrs = append(attrs, rel.Attr{Name: "condition", Value: c.Program.Condition.String()})
	}
	names := c.rowType.FieldNames()
	for i, e := range c.Program.Projects {
		attrs = append(attrs, rel.Attr{Name: names[i], Value: e.String()})
	}
	return attrs
}

func (c *Calc) Copy(inputs []rel.Node) rel.Node {
	return NewCalc(c.cluster, inputs[0], c.Program, c.rowType)
}

func (c *Calc) EstimateRowCount() float64 {
	n := rel.RowCount(c.Input)
	if c.Program.Condition != nil {
		n *= rel.Selectivity(c.Program.Condition)
	}
	return n
}

func (c *Calc) SelfCost() rel.Cost {
	in := rel.RowCount(c.Input)
	return rel.Cost{Rows: c.EstimateRowCount(), CPU: in * float64(len(c.Program.Projects)+1)}
}

// Join implements an inner or left join. Equality conjuncts between the
// two sides become hash keys; anything else is evaluated per candidate pair.
type Join struct{ *rel.Join }

func (j *Join) Convention() rel.Convention { return rel.Enumerable }
func (j *Join) OpName() string             { return "EnumerableJoin" }
func (j *Join) Attrs() []rel.Attr {
	algo := "nestedLoop"
	if keys := EquiKeys(j.Condition, j.Left.RowType().FieldCount()); len(keys.Left) > 0 {
		algo = "hash"
	}
	return append(j.Join.Attrs(), rel.Attr{Name: "algorithm", Value: algo})
}
func (j *Join) Copy(inputs []rel.Node) rel.Node {
	return &Join{j.Join.Copy(inputs).(*rel.Join)}
}
func (j *Join) SelfCost() rel.Cost {
	l, r := rel.RowCount(j.Left), rel.RowCount(j.Right)
	cpu := l * r
	if keys := EquiKeys(j.Condition, j.Left.RowType().FieldCount()); len(keys.Left) > 0 {
		cpu = l + r
	}
	return rel.Cost{Rows: j.EstimateRowCount(), CPU: cpu}
}

// JoinKeys are the field pairs of a join condition's equality conjuncts,
// plus whatever remains.
type JoinKeys struct {
	Left, Right []int
	// Residual conjuncts are evaluated over the concatenated row.
	Residual []rex.Node
}

// EquiKeys splits cond into hash keys and a residual. Right indexes are
// relative to the right input.
func EquiKeys(cond rex.Node, nLeft int) JoinKeys {
	var keys JoinKeys
	for _, c := range rex.Conjunctions(cond) {
		call, ok := c.(rex.Call)
		if ok && call.Op.Kind == rex.KindEquals {
			a, aok := call.Operands[0].(rex.InputRef)
			b, bok := call.Operands[1].(rex.InputRef)
			if aok && bok {
				if a.Index > b.Index {
					a, b = b, a
				}
				if a.Index < nLeft && b.Index >= nLeft {
					keys.Left = append(keys.Left, a.Index)
					keys.Right = append(keys.Right, b.Index-nLeft)
					continue
				}
			}
		}
		keys.Residual = append(keys.Residual, c)
	}
	return keys
}

// Aggregate is a hash aggregate.
type Aggregate struct{ *rel.Aggregate }

func (a *Aggregate) Convention() rel.Convention { return rel.Enumerable }
func (a *Aggregate) OpName() string             { return "EnumerableAggregate" }
func (a *Aggregate) Copy(inputs []rel.Node) rel.Node {
	return &Aggregate{a.Aggregate.Copy(inputs).(*rel.Aggregate)}
}

// Sort sorts in memory, then applies offset and fetch.
type Sort struct{ *rel.Sort }

func (s *Sort) Convention() rel.Convention { return rel.Enumerable }
func (s *Sort) OpName() string             { return "EnumerableSort" }
func (s *Sort) Copy(inputs []rel.Node) rel.Node {
	return &Sort{s.Sort.Copy(inputs).(*rel.Sort)}
}

// SetOp implements UNION, INTERSECT and EXCEPT.
type SetOp struct{ *rel.SetOp }

func (s *SetOp) Convention() rel.Convention { return rel.Enumerable }
func (s *SetOp) OpName() string             { return "Enumerable" + s.Kind.String() }
func (s *SetOp) Copy(inputs []rel.Node) rel.Node {
	return &SetOp{s.SetOp.Copy(inputs).(*rel.SetOp)}
}
