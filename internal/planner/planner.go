package planner

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
)

// State is the lifecycle of a Planner.
type State int

const (
	StateConfigured State = iota
	StateOptimizing
	StateOptimized
	StateFailed
)

func (s State) String() string {
	return [...]string{"configured", "optimizing", "optimized", "failed"}[s]
}

// DefaultBudget bounds the number of rule firings per optimization.
const DefaultBudget = 5000

// Planner is a cost-based optimizer over a memo of equivalence sets.
//
// Every registered node lives in exactly one set; the inputs of registered
// nodes are Subset placeholders naming a set and a convention. Rules add
// equivalent nodes to sets until no rule has anything new to match. The
// cheapest node of the requested convention is then chosen per set.
//
// A Planner serves a single optimization and is not safe for concurrent use.
type Planner struct {
	state     State
	traitDefs []rel.TraitDef
	rules     []rel.Rule
	budget    int
	log       *slog.Logger

	cluster *rel.Cluster
	sets    []*set
	digests map[string]*set
	relSet  map[int]*set
	subsets map[subsetKey]*Subset

	queue []match
	fired map[string]bool
	errs  []error

	root *set
}

type set struct {
	id       int
	rowType  *ir.Type
	rowCount float64
	rels     []rel.Node
	parents  []rel.Node
	merged   *set
}

type subsetKey struct {
	set  int
	conv rel.Convention
}

type match struct {
	rule rel.Rule
	rel  rel.Node
}

// Option configures a Planner.
type Option func(*Planner)

// WithBudget overrides DefaultBudget.
func WithBudget(n int) Option {
	return func(p *Planner) { p.budget = n }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// New creates a planner in the configured state.
func New(opts ...Option) *Planner {
	p := &Planner{
		budget:  DefaultBudget,
		log:     slog.Default(),
		digests: make(map[string]*set),
		relSet:  make(map[int]*set),
		subsets: make(map[subsetKey]*Subset),
		fired:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the planner's lifecycle state.
func (p *Planner) State() State { return p.state }

// AddTraitDef implements rel.Planner.
func (p *Planner) AddTraitDef(def rel.TraitDef) {
	p.mustBeConfigured("AddTraitDef")
	p.traitDefs = append(p.traitDefs, def)
}

// TraitDefs returns the registered trait definitions.
func (p *Planner) TraitDefs() []rel.TraitDef { return p.traitDefs }

// AddRule implements rel.Planner. Adding a rule twice is a no-op.
func (p *Planner) AddRule(r rel.Rule) {
	p.mustBeConfigured("AddRule")
	for _, existing := range p.rules {
		if existing.Name() == r.Name() {
			return
		}
	}
	p.rules = append(p.rules, r)
}

// Rules implements rel.Planner.
func (p *Planner) Rules() []rel.Rule { return p.rules }

func (p *Planner) mustBeConfigured(op string) {
	if p.state != StateConfigured {
		panic(fmt.Sprintf("planner: %s called in state %s", op, p.state))
	}
}

// SetRoot registers the tree to optimize.
func (p *Planner) SetRoot(root rel.Node) error {
	p.mustBeConfigured("SetRoot")
	p.cluster = root.Cluster()
	s, err := p.register(root, nil)
	if err != nil {
		return err
	}
	p.root = s
	return nil
}

// FindBestPlan runs the rules to a fix-point and returns the cheapest plan
// for the root in convention target.
func (p *Planner) FindBestPlan(target rel.Convention) (rel.Node, error) {
	if p.root == nil {
		return nil, fmt.Errorf("planner: FindBestPlan called before SetRoot")
	}
	p.mustBeConfigured("FindBestPlan")
	p.state = StateOptimizing

	fired := p.fire()
	if len(p.errs) > 0 {
		p.state = StateFailed
		return nil, &PlanningError{Reason: "rule failed", Err: p.errs[0]}
	}

	best := p.computeCosts()
	root := p.find(p.root)
	key := subsetKey{root.id, target}
	if c, ok := best.cost[key]; !ok || c.IsInfinite() {
		p.state = StateFailed
		return nil, &PlanningError{
			Reason: fmt.Sprintf("no %s plan", target),
			Digest: p.blockingDigest(best, target),
		}
	}

	plan := p.extract(best, key)
	p.state = StateOptimized
	p.log.Debug("planner: optimized",
		"sets", len(p.sets),
		"firings", fired,
		"cost", best.cost[key].String(),
	)
	return plan, nil
}

func (p *Planner) find(s *set) *set {
	for s.merged != nil {
		s = s.merged
	}
	return s
}

// register adds n (and, recursively, its inputs) to the memo. When into is
// non-nil n is declared equivalent to that set.
func (p *Planner) register(n rel.Node, into *set) (*set, error) {
	if sub, ok := n.(*Subset); ok {
		s := p.find(sub.set)
		if into != nil {
			return p.merge(p.find(into), s), nil
		}
		return s, nil
	}

	ins := n.Inputs()
	newIns := make([]rel.Node, len(ins))
	for i, in := range ins {
		s, err := p.register(in, nil)
		if err != nil {
			return nil, err
		}
		conv := in.Convention()
		if sub, ok := in.(*Subset); ok {
			conv = sub.conv
		}
		newIns[i] = p.subset(s, conv)
	}
	if len(ins) > 0 {
		n = n.Copy(newIns)
	}

	d := rel.Digest(n)
	if existing, ok := p.digests[d]; ok {
		existing = p.find(existing)
		if into != nil {
			return p.merge(p.find(into), existing), nil
		}
		return existing, nil
	}

	target := into
	if target == nil {
		target = &set{id: len(p.sets), rowType: n.RowType(), rowCount: n.EstimateRowCount()}
		p.sets = append(p.sets, target)
	} else {
		target = p.find(target)
		if err := checkRowType(target.rowType, n.RowType()); err != nil {
			return nil, fmt.Errorf("registering %s: %w", d, err)
		}
	}

	target.rels = append(target.rels, n)
	p.digests[d] = target
	p.relSet[n.ID()] = target
	for _, in := range n.Inputs() {
		child := p.find(in.(*Subset).set)
		child.parents = append(child.parents, n)
	}
	p.subset(target, n.Convention())

	p.enqueue(n)
	for _, parent := range target.parents {
		p.enqueue(parent)
	}
	return target, nil
}

// checkRowType requires equal field types; names may differ.
func checkRowType(want, got *ir.Type) error {
	if want.FieldCount() != got.FieldCount() {
		return fmt.Errorf("row type mismatch: %s vs %s", want, got)
	}
	wf, gf := want.Fields(), got.Fields()
	for i := range wf {
		if !wf[i].Type.Equal(gf[i].Type) {
			return fmt.Errorf("row type mismatch at field %d: %s vs %s", i, wf[i].Type, gf[i].Type)
		}
	}
	return nil
}

// merge folds b into a and returns a.
func (p *Planner) merge(a, b *set) *set {
	if a == b {
		return a
	}
	b.merged = a
	a.rels = append(a.rels, b.rels...)
	a.parents = append(a.parents, b.parents...)
	for _, r := range b.rels {
		p.relSet[r.ID()] = a
	}
	var convs []rel.Convention
	for key := range p.subsets {
		if key.set == b.id {
			convs = append(convs, key.conv)
		}
	}
	for _, conv := range convs {
		p.subset(a, conv)
	}
	for _, r := range a.rels {
		p.enqueue(r)
	}
	for _, parent := range a.parents {
		p.enqueue(parent)
	}
	return a
}

// subset returns the placeholder for s in conv, creating it on first use.
func (p *Planner) subset(s *set, conv rel.Convention) *Subset {
	s = p.find(s)
	key := subsetKey{s.id, conv}
	if sub, ok := p.subsets[key]; ok {
		return sub
	}
	sub := &Subset{id: p.cluster.NextID(), set: s, conv: conv, planner: p}
	p.subsets[key] = sub
	return sub
}

func (p *Planner) enqueue(n rel.Node) {
	for _, r := range p.rules {
		if r.Matches(n) {
			p.queue = append(p.queue, match{rule: r, rel: n})
		}
	}
}

// fingerprint changes whenever an input set of n gains alternatives, so a
// rule can fire again on n when there is something new to see.
func (p *Planner) fingerprint(m match) string {
	var b strings.Builder
	b.WriteString(m.rule.Name())
	b.WriteByte('#')
	b.WriteString(strconv.Itoa(m.rel.ID()))
	for _, in := range m.rel.Inputs() {
		s := p.find(in.(*Subset).set)
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(s.id))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(s.rels)))
	}
	return b.String()
}

func (p *Planner) fire() int {
	firings := 0
	for len(p.queue) > 0 {
		if firings >= p.budget {
			p.log.Warn("planner: rule budget exhausted", "budget", p.budget, "pending", len(p.queue))
			p.queue = nil
			break
		}
		m := p.queue[0]
		p.queue = p.queue[1:]

		fp := p.fingerprint(m)
		if p.fired[fp] {
			continue
		}
		p.fired[fp] = true
		firings++

		call := &ruleCall{planner: p, rel: m.rel}
		if err := m.rule.OnMatch(call); err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", m.rule.Name(), err))
			return firings
		}
		if call.err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", m.rule.Name(), call.err))
			return firings
		}
	}
	return firings
}

type bestPlans struct {
	cost map[subsetKey]rel.Cost
	rel  map[subsetKey]rel.Node
}

// computeCosts relaxes node costs until no subset gets cheaper. Cycles
// introduced by merged sets never win because self costs are positive.
func (p *Planner) computeCosts() bestPlans {
	best := bestPlans{cost: map[subsetKey]rel.Cost{}, rel: map[subsetKey]rel.Node{}}
	for changed := true; changed; {
		changed = false
		for _, s := range p.sets {
			if s.merged != nil {
				continue
			}
			for _, r := range s.rels {
				c := r.SelfCost()
				for _, in := range r.Inputs() {
					sub := in.(*Subset)
					ic, ok := best.cost[subsetKey{p.find(sub.set).id, sub.conv}]
					if !ok {
						ic = rel.InfiniteCost
					}
					c = c.Plus(ic)
				}
				if c.IsInfinite() {
					continue
				}
				key := subsetKey{s.id, r.Convention()}
				if old, ok := best.cost[key]; !ok || c.Less(old) {
					best.cost[key] = c
					best.rel[key] = r
					changed = true
				}
			}
		}
	}
	return best
}

func (p *Planner) extract(best bestPlans, key subsetKey) rel.Node {
	r := best.rel[key]
	ins := r.Inputs()
	if len(ins) == 0 {
		return r.Copy(nil)
	}
	children := make([]rel.Node, len(ins))
	for i, in := range ins {
		sub := in.(*Subset)
		children[i] = p.extract(best, subsetKey{p.find(sub.set).id, sub.conv})
	}
	return r.Copy(children)
}

// blockingDigest names the deepest set with no implementation in target
// whose inputs all have one.
func (p *Planner) blockingDigest(best bestPlans, target rel.Convention) string {
	for _, s := range p.sets {
		if s.merged != nil {
			continue
		}
		if _, ok := best.cost[subsetKey{s.id, target}]; ok {
			continue
		}
		for _, r := range s.rels {
			if r.Convention() != rel.None {
				continue
			}
			ready := true
			for _, in := range r.Inputs() {
				sub := in.(*Subset)
				if _, ok := best.cost[subsetKey{p.find(sub.set).id, target}]; !ok {
					ready = false
					break
				}
			}
			if ready {
				return rel.Digest(r)
			}
		}
	}
	if p.root != nil && len(p.find(p.root).rels) > 0 {
		return rel.Digest(p.find(p.root).rels[0])
	}
	return ""
}

// Sets returns the number of live equivalence sets.
func (p *Planner) Sets() int {
	n := 0
	for _, s := range p.sets {
		if s.merged == nil {
			n++
		}
	}
	return n
}

type ruleCall struct {
	planner *Planner
	rel     rel.Node
	err     error
}

func (c *ruleCall) Rel() rel.Node { return c.rel }

func (c *ruleCall) InputAlternatives(i int) []rel.Node {
	sub := c.rel.Inputs()[i].(*Subset)
	rels := c.planner.find(sub.set).rels
	return append([]rel.Node(nil), rels...)
}

func (c *ruleCall) Convert(input rel.Node, conv rel.Convention) rel.Node {
	if sub, ok := input.(*Subset); ok {
		return c.planner.subset(sub.set, conv)
	}
	s, err := c.planner.register(input, nil)
	if err != nil {
		c.err = err
		return input
	}
	return c.planner.subset(s, conv)
}

func (c *ruleCall) Transform(n rel.Node) {
	if c.err != nil {
		return
	}
	into := c.planner.relSet[c.rel.ID()]
	if _, err := c.planner.register(n, into); err != nil {
		c.err = err
	}
}
