package planner

import (
	"errors"
	"fmt"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
)

// Subset stands for every node of one equivalence set in one convention.
// Registered nodes take subsets as inputs.
type Subset struct {
	id      int
	set     *set
	conv    rel.Convention
	planner *Planner
}

func (s *Subset) canonical() *set { return s.planner.find(s.set) }

func (s *Subset) ID() int                    { return s.id }
func (s *Subset) Cluster() *rel.Cluster      { return s.planner.cluster }
func (s *Subset) RowType() *ir.Type          { return s.canonical().rowType }
func (s *Subset) Inputs() []rel.Node         { return nil }
func (s *Subset) Convention() rel.Convention { return s.conv }
func (s *Subset) OpName() string             { return fmt.Sprintf("Subset#%d.%s", s.canonical().id, s.conv) }
func (s *Subset) Attrs() []rel.Attr          { return nil }
func (s *Subset) Copy([]rel.Node) rel.Node   { return s }
func (s *Subset) EstimateRowCount() float64  { return s.canonical().rowCount }
func (s *Subset) SelfCost() rel.Cost         { return rel.Cost{} }

// Digest implements rel.Digester.
func (s *Subset) Digest() string { return s.OpName() }

// PlanningError reports that no plan exists in the requested convention.
type PlanningError struct {
	Reason string
	// Digest names the node whose set could not be implemented.
	Digest string
	Err    error
}

func (e *PlanningError) Error() string {
	msg := "planning failed: " + e.Reason
	if e.Digest != "" {
		msg += ": " + e.Digest
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PlanningError) Unwrap() error { return e.Err }

// IsPlanningError reports whether err is, or wraps, a PlanningError.
func IsPlanningError(err error) bool {
	var pe *PlanningError
	return errors.As(err, &pe)
}
