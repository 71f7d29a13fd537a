// Package sql2rel lowers validated SQL syntax trees to relational algebra.
//
// The converter reads name resolution from a validate.Validated rather
// than resolving again, so it cannot disagree with the validator about
// what a name means. Desugaring happens here: BETWEEN becomes a pair of
// comparisons, IN a disjunction of equalities, a simple CASE a searched
// one, DISTINCT an aggregate over every column.
package sql2rel

import (
	"fmt"
	"strconv"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
	"github.com/roach88/quarry/internal/sqlparse"
	"github.com/roach88/quarry/internal/validate"
)

// Converter lowers queries into nodes of one cluster.
type Converter struct {
	validator *validate.Validator
	reader    *catalog.Reader
	b         *rex.Builder
	cluster   *rel.Cluster
}

// NewConverter creates a converter. Nodes are created in c, whose planner
// can be consulted for costs while converting.
func NewConverter(v *validate.Validator, reader *catalog.Reader, b *rex.Builder, c *rel.Cluster) *Converter {
	return &Converter{validator: v, reader: reader, b: b, cluster: c}
}

// Convert validates q and lowers it.
func (c *Converter) Convert(q *sqlparse.Query) (rel.Node, *ir.Type, error) {
	v, rt, err := c.validator.Validate(q)
	if err != nil {
		return nil, nil, err
	}
	n, err := c.ConvertValidated(v)
	if err != nil {
		return nil, nil, err
	}
	return n, rt, nil
}

// ConvertValidated lowers an already validated query.
func (c *Converter) ConvertValidated(v *validate.Validated) (rel.Node, error) {
	cv := &conv{Converter: c, v: v}
	return cv.query(v.Query)
}

type conv struct {
	*Converter
	v *validate.Validated
}

func (cv *conv) query(q *sqlparse.Query) (rel.Node, error) {
	keys := cv.v.OrderKeys(q)
	var hidden []sqlparse.Expr
	for _, k := range keys {
		if k.Expr != nil {
			hidden = append(hidden, k.Expr)
		}
	}

	var n rel.Node
	var err error
	if s, ok := q.Body.(*sqlparse.Select); ok {
		n, err = cv.selectBlock(s, hidden)
	} else {
		n, err = cv.setExpr(q.Body)
	}
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 && q.Limit < 0 && q.Offset <= 0 {
		return n, nil
	}

	width := cv.v.RowTypeOf(q.Body).FieldCount()
	collation := make([]rel.FieldCollation, len(keys))
	extra := 0
	for i, k := range keys {
		field := k.Ordinal
		if k.Expr != nil {
			field = width + extra
			extra++
		}
		collation[i] = rel.FieldCollation{Field: field, Descending: k.Desc}
	}
	fetch := int64(rel.NoFetch)
	if q.Limit >= 0 {
		fetch = q.Limit
	}
	n = rel.NewSort(cv.cluster, n, collation, max(q.Offset, 0), fetch)
	if len(hidden) == 0 {
		return n, nil
	}
	return cv.trim(n, width), nil
}

// trim projects away the hidden sort columns after the first width.
func (cv *conv) trim(n rel.Node, width int) rel.Node {
	rt := n.RowType()
	exprs := make([]rex.Node, width)
	for i := range width {
		exprs[i] = cv.b.MakeInputRef(rt, i)
	}
	names := rt.FieldNames()[:width]
	return rel.NewProject(cv.cluster, n, exprs, rel.ProjectRowType(cv.b.TypeFactory(), exprs, names))
}

var setKinds = map[sqlparse.SetOpKind]rel.SetKind{
	sqlparse.Union:     rel.SetUnion,
	sqlparse.Intersect: rel.SetIntersect,
	sqlparse.Except:    rel.SetMinus,
}

func (cv *conv) setExpr(e sqlparse.SetExpr) (rel.Node, error) {
	switch x := e.(type) {
	case *sqlparse.Select:
		return cv.selectBlock(x, nil)
	case *sqlparse.Query:
		return cv.query(x)
	case *sqlparse.SetOp:
		left, err := cv.setExpr(x.Left)
		if err != nil {
			return nil, err
		}
		right, err := cv.setExpr(x.Right)
		if err != nil {
			return nil, err
		}
		rt, err := rel.SetOpRowType(cv.b.TypeFactory(), []*ir.Type{left.RowType(), right.RowType()})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", x.Kind, err)
		}
		return rel.NewSetOp(cv.cluster, setKinds[x.Kind], []rel.Node{left, right}, x.All, rt), nil
	}
	return nil, fmt.Errorf("unexpected query body %T", e)
}

// selectBlock lowers one SELECT. extra expressions are appended as
// trailing columns for sorting on.
func (cv *conv) selectBlock(s *sqlparse.Select, extra []sqlparse.Expr) (rel.Node, error) {
	sel := cv.v.Select(s)

	var input rel.Node
	if s.From == nil {
		input = cv.oneRow()
	} else {
		n, err := cv.from(s.From)
		if err != nil {
			return nil, err
		}
		input = n
	}

	bb := &blackboard{conv: cv, rowType: input.RowType()}
	if s.Where != nil {
		cond, err := bb.convert(s.Where)
		if err != nil {
			return nil, err
		}
		input = rel.NewFilter(cv.cluster, input, cond)
	}

	if sel.Aggregated {
		agg, aggBB, err := cv.aggregate(sel, input, bb)
		if err != nil {
			return nil, err
		}
		input, bb = agg, aggBB
		if s.Having != nil {
			cond, err := bb.convert(s.Having)
			if err != nil {
				return nil, err
			}
			input = rel.NewFilter(cv.cluster, input, cond)
		}
	}

	exprs := make([]rex.Node, 0, len(sel.Items)+len(extra))
	names := make([]string, 0, len(sel.Items)+len(extra))
	for _, it := range sel.Items {
		n, err := bb.convert(it.Expr)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, n)
		names = append(names, it.Name)
	}
	for _, e := range extra {
		n, err := bb.convert(e)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, n)
		names = append(names, "EXPR$"+strconv.Itoa(len(names)))
	}
	names = rel.UniquifyNames(names)
	var out rel.Node = rel.NewProject(cv.cluster, input, exprs, rel.ProjectRowType(cv.b.TypeFactory(), exprs, names))

	if s.Distinct {
		group := make([]int, len(exprs))
		for i := range group {
			group[i] = i
		}
		out = rel.NewAggregate(cv.cluster, out, group, nil)
	}
	return out, nil
}

// oneRow is the input of a SELECT without FROM.
func (cv *conv) oneRow() rel.Node {
	tf := cv.b.TypeFactory()
	rt := tf.CreateStructType([]string{"ZERO"}, []*ir.Type{tf.CreateSQLType(ir.TypeInteger)})
	return rel.NewValues(cv.cluster, rt, [][]rex.Literal{{cv.b.MakeIntLiteral(0)}})
}

func (cv *conv) from(item sqlparse.FromItem) (rel.Node, error) {
	switch x := item.(type) {
	case *sqlparse.TableRef:
		h := cv.v.Table(x)
		if h == nil {
			return nil, fmt.Errorf("table %v was not validated", x.Names)
		}
		return rel.NewTableScan(cv.cluster, h), nil

	case *sqlparse.SubqueryRef:
		return cv.query(x.Query)

	case *sqlparse.Join:
		left, err := cv.from(x.Left)
		if err != nil {
			return nil, err
		}
		right, err := cv.from(x.Right)
		if err != nil {
			return nil, err
		}
		jt := rel.InnerJoin
		if x.Kind == sqlparse.LeftJoin {
			jt = rel.LeftJoin
		}
		var cond rex.Node = cv.b.MakeBoolLiteral(true)
		if x.On != nil {
			rt := rel.JoinRowType(cv.b.TypeFactory(), left.RowType(), right.RowType(), jt)
			bb := &blackboard{conv: cv, rowType: rt}
			if cond, err = bb.convert(x.On); err != nil {
				return nil, err
			}
		}
		return rel.NewJoin(cv.cluster, left, right, cond, jt), nil
	}
	return nil, fmt.Errorf("unexpected FROM item %T", item)
}

// aggregate builds the Aggregate of a grouped block. Group keys and
// aggregate arguments that are not plain columns are computed by a
// projection first. The returned blackboard converts expressions over the
// aggregate's output.
func (cv *conv) aggregate(sel *validate.SelectScope, input rel.Node, bb *blackboard) (rel.Node, *blackboard, error) {
	var pre []rex.Node
	var preNames []string
	slot := map[string]int{}
	add := func(e sqlparse.Expr) (int, error) {
		k := cv.v.Key(e)
		if i, ok := slot[k]; ok {
			return i, nil
		}
		n, err := bb.convert(e)
		if err != nil {
			return 0, err
		}
		name := "$f" + strconv.Itoa(len(pre))
		if ref, ok := n.(rex.InputRef); ok {
			name = input.RowType().Fields()[ref.Index].Name
		}
		pre = append(pre, n)
		preNames = append(preNames, name)
		slot[k] = len(pre) - 1
		return len(pre) - 1, nil
	}

	out := &blackboard{conv: cv, groups: map[string]int{}, aggs: map[string]int{}}
	var group []int
	for _, g := range sel.GroupBy {
		k := cv.v.Key(g)
		if _, dup := out.groups[k]; dup {
			continue
		}
		i, err := add(g)
		if err != nil {
			return nil, nil, err
		}
		out.groups[k] = len(group)
		group = append(group, i)
	}

	type pending struct {
		call *sqlparse.FuncCall
		fn   rel.AggFunc
		arg  int
	}
	var calls []pending
	for _, a := range sel.Aggregates {
		fn, _ := rel.LookupAggFunc(a.Name)
		p := pending{call: a, fn: fn, arg: -1}
		if !a.Star {
			i, err := add(a.Args[0])
			if err != nil {
				return nil, nil, err
			}
			p.arg = i
		}
		calls = append(calls, p)
	}

	// skip the projection when every slot is a plain column
	remap := make([]int, len(pre))
	plain := true
	for i, n := range pre {
		ref, ok := n.(rex.InputRef)
		if !ok {
			plain = false
			break
		}
		remap[i] = ref.Index
	}
	if !plain {
		for i := range remap {
			remap[i] = i
		}
		tf := cv.b.TypeFactory()
		input = rel.NewProject(cv.cluster, input, pre, rel.ProjectRowType(tf, pre, rel.UniquifyNames(preNames)))
	}

	for i := range group {
		group[i] = remap[group[i]]
	}
	grouped := len(sel.GroupBy) > 0
	aggCalls := make([]rel.AggCall, len(calls))
	for i, p := range calls {
		ac := rel.AggCall{Func: p.fn, Distinct: p.call.Distinct, Name: "EXPR$" + strconv.Itoa(len(group)+i)}
		var argType *ir.Type
		if p.arg >= 0 {
			ac.Args = []int{remap[p.arg]}
			argType = input.RowType().Fields()[remap[p.arg]].Type
		}
		t, err := rel.InferAggType(cv.b.TypeFactory(), p.fn, argType, grouped)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p.call, err)
		}
		ac.Type = t
		aggCalls[i] = ac
		out.aggs[cv.v.Key(p.call)] = len(group) + i
	}

	agg := rel.NewAggregate(cv.cluster, input, group, aggCalls)
	out.rowType = agg.RowType()
	return agg, out, nil
}
