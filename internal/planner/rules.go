package planner

import (
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

// AbstractRules returns the logical rewrite rules every preparation uses.
func AbstractRules() []rel.Rule {
	return []rel.Rule{
		FilterMergeRule,
		ProjectMergeRule,
		ProjectRemoveRule,
		FilterIntoJoinRule,
	}
}

// RegisterAbstractRules adds AbstractRules to p.
func RegisterAbstractRules(p rel.Planner) {
	for _, r := range AbstractRules() {
		p.AddRule(r)
	}
}

// logicalRule matches logical nodes of one Go type.
type logicalRule[T rel.Node] struct {
	name    string
	onMatch func(call rel.RuleCall, n T) error
}

func (r *logicalRule[T]) Name() string { return r.name }

func (r *logicalRule[T]) Matches(n rel.Node) bool {
	_, ok := n.(T)
	return ok && n.Convention() == rel.None
}

func (r *logicalRule[T]) OnMatch(call rel.RuleCall) error {
	return r.onMatch(call, call.Rel().(T))
}

// logicalInputs returns the logical alternatives of input i that are a T.
func logicalInputs[T rel.Node](call rel.RuleCall, i int) []T {
	var out []T
	for _, alt := range call.InputAlternatives(i) {
		if t, ok := alt.(T); ok && alt.Convention() == rel.None {
			out = append(out, t)
		}
	}
	return out
}

// FilterMergeRule combines a Filter over a Filter into one Filter.
var FilterMergeRule rel.Rule = &logicalRule[*rel.Filter]{
	name: "FilterMergeRule",
	onMatch: func(call rel.RuleCall, top *rel.Filter) error {
		b := top.Cluster().Builder()
		for _, bottom := range logicalInputs[*rel.Filter](call, 0) {
			cond, err := b.MakeAnd(bottom.Condition, top.Condition)
			if err != nil {
				return err
			}
			call.Transform(rel.NewFilter(top.Cluster(), bottom.Input, cond))
		}
		return nil
	},
}

// ProjectMergeRule substitutes a Project's input Project into its
// expressions.
var ProjectMergeRule rel.Rule = &logicalRule[*rel.Project]{
	name: "ProjectMergeRule",
	onMatch: func(call rel.RuleCall, top *rel.Project) error {
		for _, bottom := range logicalInputs[*rel.Project](call, 0) {
			exprs := make([]rex.Node, len(top.Exprs))
			for i, e := range top.Exprs {
				exprs[i] = rex.Replace(e, func(r rex.InputRef) rex.Node {
					return bottom.Exprs[r.Index]
				})
			}
			call.Transform(rel.NewProject(top.Cluster(), bottom.Input, exprs, top.RowType()))
		}
		return nil
	},
}

// ProjectRemoveRule declares an identity Project equivalent to its input.
var ProjectRemoveRule rel.Rule = &logicalRule[*rel.Project]{
	name: "ProjectRemoveRule",
	onMatch: func(call rel.RuleCall, p *rel.Project) error {
		if p.IsIdentity() {
			call.Transform(p.Input)
		}
		return nil
	},
}

// FilterIntoJoinRule pushes the conjuncts of a Filter above an inner Join
// into the join's inputs when they reference one side only, and into the
// join condition otherwise.
var FilterIntoJoinRule rel.Rule = &logicalRule[*rel.Filter]{
	name: "FilterIntoJoinRule",
	onMatch: func(call rel.RuleCall, f *rel.Filter) error {
		c := f.Cluster()
		b := c.Builder()
		for _, j := range logicalInputs[*rel.Join](call, 0) {
			if j.Type != rel.InnerJoin {
				continue
			}
			nLeft := j.Left.RowType().FieldCount()
			var left, right, rest []rex.Node
			for _, cond := range rex.Conjunctions(f.Condition) {
				used := rex.InputsUsed(cond)
				switch {
				case len(used) > 0 && used[len(used)-1] < nLeft:
					left = append(left, cond)
				case len(used) > 0 && used[0] >= nLeft:
					right = append(right, rex.Shift(cond, -nLeft))
				default:
					rest = append(rest, cond)
				}
			}

			l, r := j.Left, j.Right
			if len(left) > 0 {
				cond, err := b.MakeAnd(left...)
				if err != nil {
					return err
				}
				l = rel.NewFilter(c, l, cond)
			}
			if len(right) > 0 {
				cond, err := b.MakeAnd(right...)
				if err != nil {
					return err
				}
				r = rel.NewFilter(c, r, cond)
			}
			cond, err := b.MakeAnd(append(rex.Conjunctions(j.Condition), rest...)...)
			if err != nil {
				return err
			}
			call.Transform(rel.NewJoin(c, l, r, cond, rel.InnerJoin))
		}
		return nil
	},
}
