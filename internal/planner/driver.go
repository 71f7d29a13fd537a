package planner

import (
	"fmt"
	"log/slog"

	"github.com/roach88/quarry/internal/enumerable"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

// Flattener rewrites a tree so that no field has a struct type.
type Flattener interface {
	Flatten(root rel.Node) rel.Node
}

// PassThrough is the default Flattener: rows are already flat.
type PassThrough struct{}

func (PassThrough) Flatten(root rel.Node) rel.Node { return root }

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithFlattener replaces the PassThrough flattener.
func WithFlattener(f Flattener) DriverOption {
	return func(d *Driver) { d.flattener = f }
}

// WithRules registers extra rules after the built-in ones.
func WithRules(rules ...rel.Rule) DriverOption {
	return func(d *Driver) { d.extra = append(d.extra, rules...) }
}

// WithPlannerOptions configures the underlying Planner.
func WithPlannerOptions(opts ...Option) DriverOption {
	return func(d *Driver) { d.plannerOpts = append(d.plannerOpts, opts...) }
}

// WithDriverLogger sets the logger of the driver and its planner.
// Default: slog.Default().
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.log = l }
}

// Driver owns one planner and the cluster its trees are built in.
// Create one per preparation.
type Driver struct {
	planner     *Planner
	cluster     *rel.Cluster
	flattener   Flattener
	extra       []rel.Rule
	plannerOpts []Option
	log         *slog.Logger
}

// NewDriver creates a planner with the convention trait, the abstract
// rules and the ENUMERABLE implementation rules registered, and a fresh
// cluster bound to it.
func NewDriver(tf *ir.TypeFactory, opts ...DriverOption) *Driver {
	d := &Driver{flattener: PassThrough{}, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.planner = New(append([]Option{WithLogger(d.log)}, d.plannerOpts...)...)
	d.planner.AddTraitDef(rel.ConventionTraitDef)
	RegisterAbstractRules(d.planner)
	for _, r := range enumerable.Rules() {
		d.planner.AddRule(r)
	}
	for _, r := range d.extra {
		d.planner.AddRule(r)
	}
	d.cluster = rel.NewCluster(d.planner, tf, rex.NewBuilder(tf))
	return d
}

// Cluster returns the cluster new trees must be built in.
func (d *Driver) Cluster() *rel.Cluster { return d.cluster }

// Planner returns the driver's planner.
func (d *Driver) Planner() *Planner { return d.planner }

// Flatten applies the configured flattener.
func (d *Driver) Flatten(root rel.Node) rel.Node { return d.flattener.Flatten(root) }

// Optimize finds the cheapest ENUMERABLE plan for root. target is the row
// type the caller will expose; it must have one field per root field.
func (d *Driver) Optimize(root rel.Node, target *ir.Type) (rel.Node, error) {
	if target.FieldCount() != root.RowType().FieldCount() {
		return nil, &PlanningError{Reason: fmt.Sprintf("requested %d fields but the query produces %d",
			target.FieldCount(), root.RowType().FieldCount())}
	}
	if err := d.planner.SetRoot(root); err != nil {
		return nil, &PlanningError{Reason: "registering root", Err: err}
	}
	best, err := d.planner.FindBestPlan(rel.Enumerable)
	if err != nil {
		return nil, err
	}
	if err := checkRowType(root.RowType(), best.RowType()); err != nil {
		return nil, &PlanningError{Reason: "chosen plan changed the row type", Err: err}
	}
	d.log.Debug("planner: best plan chosen", "rules", len(d.planner.Rules()), "plan", rel.Explain(best))
	return best, nil
}
