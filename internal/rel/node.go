package rel

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/quarry/internal/ir"
)

// Convention tags a node with the execution strategy it targets.
type Convention string

const (
	// None is the convention of logical nodes; they cannot be executed.
	None Convention = "NONE"
	// Enumerable nodes execute as composed row iterators.
	Enumerable Convention = "ENUMERABLE"
)

func (c Convention) String() string { return string(c) }

// TraitDef describes a trait the planner tracks. Convention is the only one.
type TraitDef struct {
	Name    string
	Default Convention
}

// ConventionTraitDef is the convention trait definition.
var ConventionTraitDef = TraitDef{Name: "convention", Default: None}

// Node is a relational expression.
//
// Logical nodes live in this package; physical nodes live with their
// convention (package enumerable) and the planner adds placeholder nodes
// of its own, so the interface is deliberately open.
type Node interface {
	// ID is unique within a Cluster.
	ID() int
	Cluster() *Cluster
	RowType() *ir.Type
	Inputs() []Node
	Convention() Convention

	// OpName and Attrs describe the node for digests and EXPLAIN output.
	OpName() string
	Attrs() []Attr

	// Copy returns an equivalent node over new inputs.
	Copy(inputs []Node) Node

	// EstimateRowCount is the estimated output cardinality.
	EstimateRowCount() float64

	// SelfCost is the cost of this node alone, excluding its inputs.
	SelfCost() Cost
}

// Attr is one named attribute of a node.
type Attr struct {
	Name  string
	Value string
}

// Digester lets a node replace the generic digest.
type Digester interface {
	Digest() string
}

// Digest identifies a node by operator, attributes, and input digests.
// Two nodes with equal digests are interchangeable.
func Digest(n Node) string {
	if d, ok := n.(Digester); ok {
		return d.Digest()
	}
	var b strings.Builder
	b.WriteString(n.OpName())
	b.WriteByte('(')
	first := true
	sep := func() {
		if !first {
			b.WriteString(", ")
		}
		first = false
	}
	for i, in := range n.Inputs() {
		sep()
		fmt.Fprintf(&b, "input#%d=%s", i, Digest(in))
	}
	for _, a := range n.Attrs() {
		sep()
		b.WriteString(a.Name)
		b.WriteByte('=')
		b.WriteString(a.Value)
	}
	b.WriteByte(')')
	return b.String()
}

// RowCount returns n's estimated row count, never below one.
func RowCount(n Node) float64 {
	return max(n.EstimateRowCount(), 1)
}

// Cost is the estimated cost of a plan: rows produced plus CPU work.
type Cost struct {
	Rows float64
	CPU  float64
}

// InfiniteCost marks a plan that cannot be implemented.
var InfiniteCost = Cost{Rows: math.Inf(1), CPU: math.Inf(1)}

// Plus adds two costs.
func (c Cost) Plus(o Cost) Cost { return Cost{Rows: c.Rows + o.Rows, CPU: c.CPU + o.CPU} }

// Less orders costs by rows, then CPU.
func (c Cost) Less(o Cost) bool {
	if c.Rows != o.Rows {
		return c.Rows < o.Rows
	}
	return c.CPU < o.CPU
}

// IsInfinite reports whether c is InfiniteCost.
func (c Cost) IsInfinite() bool { return math.IsInf(c.Rows, 1) }

func (c Cost) String() string {
	if c.IsInfinite() {
		return "{inf}"
	}
	return fmt.Sprintf("{%g rows, %g cpu}", c.Rows, c.CPU)
}

// base holds the fields every node shares.
type base struct {
	cluster *Cluster
	id      int
	rowType *ir.Type
}

func newBase(c *Cluster, rowType *ir.Type) base {
	return base{cluster: c, id: c.NextID(), rowType: rowType}
}

func (b *base) ID() int                { return b.id }
func (b *base) Cluster() *Cluster      { return b.cluster }
func (b *base) RowType() *ir.Type      { return b.rowType }
func (b *base) Convention() Convention { return None }
