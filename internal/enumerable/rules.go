package enumerable

import (
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

// Rules returns the rules that implement every logical operator in the
// ENUMERABLE convention.
func Rules() []rel.Rule {
	return []rel.Rule{
		TableScanRule,
		ValuesRule,
		ProjectToCalcRule,
		FilterToCalcRule,
		CalcMergeRule,
		JoinRule,
		AggregateRule,
		SortRule,
		UnionRule,
		IntersectRule,
		MinusRule,
	}
}

func converter[T rel.Node](name string, match func(T) bool, convert func(call rel.RuleCall, n T) (rel.Node, error)) *rel.ConverterRule {
	return &rel.ConverterRule{
		RuleName: name,
		Out:      rel.Enumerable,
		Match: func(n rel.Node) bool {
			t, ok := n.(T)
			return ok && (match == nil || match(t))
		},
		Convert: func(call rel.RuleCall) (rel.Node, error) {
			return convert(call, call.Rel().(T))
		},
	}
}

var (
	TableScanRule = converter("EnumerableTableScanRule", nil,
		func(_ rel.RuleCall, s *rel.TableScan) (rel.Node, error) {
			return NewTableScan(s.Copy(nil).(*rel.TableScan)), nil
		})

	ValuesRule = converter("EnumerableValuesRule", nil,
		func(_ rel.RuleCall, v *rel.Values) (rel.Node, error) {
			return &Values{v.Copy(nil).(*rel.Values)}, nil
		})

	ProjectToCalcRule = converter("EnumerableProjectToCalcRule", nil,
		func(call rel.RuleCall, p *rel.Project) (rel.Node, error) {
			input := call.Convert(p.Input, rel.Enumerable)
			return NewCalc(p.Cluster(), input, Program{Projects: p.Exprs}, p.RowType()), nil
		})

	FilterToCalcRule = converter("EnumerableFilterToCalcRule", nil,
		func(call rel.RuleCall, f *rel.Filter) (rel.Node, error) {
			input := call.Convert(f.Input, rel.Enumerable)
			b := f.Cluster().Builder()
			rt := f.RowType()
			projects := make([]rex.Node, rt.FieldCount())
			for i := range projects {
				projects[i] = b.MakeInputRef(rt, i)
			}
			return NewCalc(f.Cluster(), input, Program{Condition: f.Condition, Projects: projects}, rt), nil
		})

	JoinRule = converter("EnumerableJoinRule", nil,
		func(call rel.RuleCall, j *rel.Join) (rel.Node, error) {
			return &Join{j.Copy(rel.ConvertInputs(call, j, rel.Enumerable)).(*rel.Join)}, nil
		})

	AggregateRule = converter("EnumerableAggregateRule", nil,
		func(call rel.RuleCall, a *rel.Aggregate) (rel.Node, error) {
			return &Aggregate{a.Copy(rel.ConvertInputs(call, a, rel.Enumerable)).(*rel.Aggregate)}, nil
		})

	SortRule = converter("EnumerableSortRule", nil,
		func(call rel.RuleCall, s *rel.Sort) (rel.Node, error) {
			return &Sort{s.Copy(rel.ConvertInputs(call, s, rel.Enumerable)).(*rel.Sort)}, nil
		})

	UnionRule     = setOpRule("EnumerableUnionRule", rel.SetUnion)
	IntersectRule = setOpRule("EnumerableIntersectRule", rel.SetIntersect)
	MinusRule     = setOpRule("EnumerableMinusRule", rel.SetMinus)
)

func setOpRule(name string, kind rel.SetKind) *rel.ConverterRule {
	return converter(name,
		func(s *rel.SetOp) bool { return s.Kind == kind },
		func(call rel.RuleCall, s *rel.SetOp) (rel.Node, error) {
			return &SetOp{s.Copy(rel.ConvertInputs(call, s, rel.Enumerable)).(*rel.SetOp)}, nil
		})
}

// CalcMergeRule merges a Calc over a Calc into one Calc.
var CalcMergeRule rel.Rule = calcMergeRule{}

type calcMergeRule struct{}

func (calcMergeRule) Name() string { return "EnumerableCalcMergeRule" }

func (calcMergeRule) Matches(n rel.Node) bool {
	_, ok := n.(*Calc)
	return ok
}

func (calcMergeRule) OnMatch(call rel.RuleCall) error {
	top := call.Rel().(*Calc)
	b := top.Cluster().Builder()
	for _, alt := range call.InputAlternatives(0) {
		bottom, ok := alt.(*Calc)
		if !ok {
			continue
		}
		prog, err := top.Program.Merge(b, bottom.Program)
		if err != nil {
			return err
		}
		call.Transform(NewCalc(top.Cluster(), bottom.Input, prog, top.RowType()))
	}
	return nil
}
