package rel

import (
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rex"
)

// Cluster is the optimization context shared by every node of one
// preparation: the planner, the type factory and the expression builder.
// Clusters are never shared between preparations.
type Cluster struct {
	planner Planner
	tf      *ir.TypeFactory
	builder *rex.Builder
	ids     int
}

// NewCluster creates a cluster. planner may be nil for trees that are
// built but never optimized.
func NewCluster(planner Planner, tf *ir.TypeFactory, builder *rex.Builder) *Cluster {
	return &Cluster{planner: planner, tf: tf, builder: builder}
}

// Planner returns the planner the cluster's nodes are optimized by.
func (c *Cluster) Planner() Planner { return c.planner }

// TypeFactory returns the cluster's type factory.
func (c *Cluster) TypeFactory() *ir.TypeFactory { return c.tf }

// Builder returns the cluster's expression builder.
func (c *Cluster) Builder() *rex.Builder { return c.builder }

// NextID allocates a node id.
func (c *Cluster) NextID() int {
	c.ids++
	return c.ids
}
