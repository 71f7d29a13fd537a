package rel

import (
	"strings"
)

// Explain renders a plan tree, one node per line, children indented by two
// spaces:
//
//	EnumerableCalc(EXPR$0=[+($0, 0)], y=[$1])
//	  EnumerableTableScan(table=[[T]])
func Explain(n Node) string {
	var b strings.Builder
	explain(&b, n, 0)
	return b.String()
}

func explain(b *strings.Builder, n Node, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.OpName())
	if attrs := n.Attrs(); len(attrs) > 0 {
		b.WriteByte('(')
		for i, a := range attrs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.Name)
			b.WriteString("=[")
			b.WriteString(a.Value)
			b.WriteByte(']')
		}
		b.WriteByte(')')
	}
	b.WriteByte('\n')
	for _, in := range n.Inputs() {
		explain(b, in, depth+1)
	}
}

// Walk visits n and its descendants depth-first, parents first.
// Returning false from fn skips a node's inputs.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, in := range n.Inputs() {
		Walk(in, fn)
	}
}
