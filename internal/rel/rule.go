package rel

// Planner is the part of the optimizer visible to nodes, rules and
// translators.
type Planner interface {
	AddTraitDef(def TraitDef)
	AddRule(r Rule)
	Rules() []Rule
}

// Rule rewrites a matched node into an equivalent one.
//
// Matches is a cheap test on the node itself. OnMatch may look at the
// alternatives available for each input through the RuleCall, and
// registers zero or more equivalents with Transform.
type Rule interface {
	Name() string
	Matches(n Node) bool
	OnMatch(call RuleCall) error
}

// RuleCall is one firing of a rule.
type RuleCall interface {
	// Rel is the matched node. Its inputs are planner placeholders.
	Rel() Node

	// InputAlternatives lists the registered nodes equivalent to the
	// node's i-th input.
	InputAlternatives(i int) []Node

	// Convert returns a placeholder for input in the given convention.
	Convert(input Node, conv Convention) Node

	// Transform registers n as equivalent to Rel.
	Transform(n Node)
}

// ConverterRule is a rule that implements one logical operator in a
// target convention.
type ConverterRule struct {
	RuleName string
	Out      Convention
	Match    func(n Node) bool
	Convert  func(call RuleCall) (Node, error)
}

func (r *ConverterRule) Name() string { return r.RuleName }

func (r *ConverterRule) Matches(n Node) bool {
	return n.Convention() == None && r.Match(n)
}

func (r *ConverterRule) OnMatch(call RuleCall) error {
	n, err := r.Convert(call)
	if err != nil {
		return err
	}
	if n != nil {
		call.Transform(n)
	}
	return nil
}

// ConvertInputs returns placeholders for every input of n in conv.
func ConvertInputs(call RuleCall, n Node, conv Convention) []Node {
	ins := n.Inputs()
	out := make([]Node, len(ins))
	for i, in := range ins {
		out[i] = call.Convert(in, conv)
	}
	return out
}
