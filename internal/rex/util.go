package rex

import "sort"

// Replace rebuilds n bottom-up, substituting every InputRef with fn's result.
// Call types are kept as-is; fn must return a node of the same type.
func Replace(n Node, fn func(InputRef) Node) Node {
	switch v := n.(type) {
	case InputRef:
		return fn(v)
	case FieldAccess:
		return FieldAccess{Expr: Replace(v.Expr, fn), Field: v.Field}
	case Call:
		ops := make([]Node, len(v.Operands))
		for i, o := range v.Operands {
			ops[i] = Replace(o, fn)
		}
		return Call{Op: v.Op, Operands: ops, typ: v.typ}
	default:
		return n
	}
}

// Shift adds offset to every InputRef index in n.
func Shift(n Node, offset int) Node {
	if offset == 0 {
		return n
	}
	return Replace(n, func(r InputRef) Node {
		return InputRef{Index: r.Index + offset, typ: r.typ}
	})
}

// InputsUsed returns the sorted distinct input indexes n references.
func InputsUsed(n Node) []int {
	seen := map[int]bool{}
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case InputRef:
			seen[v.Index] = true
		case RangeRef:
			for i := range v.typ.FieldCount() {
				seen[v.Offset+i] = true
			}
		case FieldAccess:
			walk(v.Expr)
		case Call:
			for _, o := range v.Operands {
				walk(o)
			}
		}
	}
	walk(n)
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Conjunctions splits n on top-level AND.
func Conjunctions(n Node) []Node {
	if n == nil || IsAlwaysTrue(n) {
		return nil
	}
	c, ok := n.(Call)
	if !ok || c.Op.Kind != KindAnd {
		return []Node{n}
	}
	var out []Node
	for _, o := range c.Operands {
		out = append(out, Conjunctions(o)...)
	}
	return out
}

// IsIdentity reports whether exprs is exactly $0, $1, ..., $n-1 over an
// input with n fields.
func IsIdentity(exprs []Node, inputFieldCount int) bool {
	if len(exprs) != inputFieldCount {
		return false
	}
	for i, e := range exprs {
		r, ok := e.(InputRef)
		if !ok || r.Index != i {
			return false
		}
	}
	return true
}

// Digests renders a list of expressions for use in node digests.
func Digests(exprs []Node) []string {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		out[i] = e.String()
	}
	return out
}
