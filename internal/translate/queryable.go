package translate

import (
	"fmt"
	"slices"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/linq"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
)

// QueryableTranslator lowers a linq.Queryable chain to relational algebra
// built in one cluster.
type QueryableTranslator struct {
	cluster *rel.Cluster
	reader  *catalog.Reader
	root    ScalarTranslator
}

// NewQueryableTranslator creates a translator whose nodes live in c and
// whose collections resolve through reader.
func NewQueryableTranslator(c *rel.Cluster, reader *catalog.Reader) *QueryableTranslator {
	return &QueryableTranslator{cluster: c, reader: reader, root: Empty(c.Builder())}
}

// Translate lowers q. Resolution failures wrap catalog.ErrNotFound;
// everything else without a relational equivalent is an *Error.
func (t *QueryableTranslator) Translate(q *linq.Queryable) (rel.Node, error) {
	switch q.Kind() {
	case linq.QueryFrom:
		return t.from(q)
	case linq.QueryWhere:
		return t.where(q)
	case linq.QuerySelect:
		return t.sel(q)
	case linq.QueryOrderBy:
		return t.orderBy(q)
	case linq.QueryTake, linq.QuerySkip:
		return t.limit(q)
	default:
		return t.setOp(q)
	}
}

// from scans the table, projecting onto the element type's columns when
// they differ from the table's.
func (t *QueryableTranslator) from(q *linq.Queryable) (rel.Node, error) {
	h, err := t.reader.Resolve(q.Names())
	if err != nil {
		return nil, err
	}
	scan := rel.NewTableScan(t.cluster, h)

	elem, err := t.cluster.TypeFactory().CreateTypeFromGo(q.ElementType())
	if err != nil || !elem.IsStruct() {
		return nil, &Error{Message: "element type is not a row", Construct: q.String(), Err: err}
	}
	tableType := h.RowType()
	names := elem.FieldNames()
	if slices.Equal(names, tableType.FieldNames()) {
		return scan, nil
	}

	b := t.cluster.Builder()
	exprs := make([]rex.Node, len(names))
	for i, name := range names {
		f, ok := tableType.Field(name)
		if !ok {
			return nil, &Error{Message: fmt.Sprintf("column %q of %s not in table %s", name, q.ElementType(), h), Construct: q.String()}
		}
		exprs[i] = b.MakeInputRef(tableType, f.Index)
	}
	return rel.NewProject(t.cluster, scan, exprs, rel.ProjectRowType(t.cluster.TypeFactory(), exprs, names)), nil
}

// body translates a one-parameter lambda whose parameter is the whole
// input row.
func (t *QueryableTranslator) body(input rel.Node, l *linq.LambdaExpr, construct string) (rex.Node, error) {
	if len(l.Params) != 1 {
		return nil, &Error{Message: fmt.Sprintf("lambda takes %d parameters, want 1", len(l.Params)), Construct: construct}
	}
	row := t.cluster.Builder().MakeRangeRef(input.RowType(), 0)
	n, err := t.root.Bind(l.Params, []rex.Node{row}).ToRex(l.Body)
	if err != nil {
		return nil, err
	}
	if _, whole := n.(rex.RangeRef); whole {
		return nil, &Error{Message: "row-valued expression", Construct: l.String()}
	}
	return n, nil
}

func (t *QueryableTranslator) where(q *linq.Queryable) (rel.Node, error) {
	input, err := t.Translate(q.Source())
	if err != nil {
		return nil, err
	}
	cond, err := t.body(input, q.Lambda(), q.String())
	if err != nil {
		return nil, err
	}
	if cond.Type().Name() != ir.TypeBoolean {
		return nil, &Error{Message: "predicate is " + cond.Type().String() + ", not BOOLEAN", Construct: q.Lambda().String()}
	}
	return rel.NewFilter(t.cluster, input, cond), nil
}

// sel projects one column per New argument, or a single column "$0" for
// any other body.
func (t *QueryableTranslator) sel(q *linq.Queryable) (rel.Node, error) {
	input, err := t.Translate(q.Source())
	if err != nil {
		return nil, err
	}
	l := q.Lambda()
	if len(l.Params) != 1 {
		return nil, &Error{Message: fmt.Sprintf("lambda takes %d parameters, want 1", len(l.Params)), Construct: q.String()}
	}
	scope := t.root.Bind(l.Params, []rex.Node{t.cluster.Builder().MakeRangeRef(input.RowType(), 0)})

	args, names := []linq.Expr{l.Body}, []string{"$0"}
	if n, ok := l.Body.(*linq.NewExpr); ok {
		args, names = n.Args, n.Members
	}
	exprs := make([]rex.Node, len(args))
	for i, a := range args {
		if exprs[i], err = scope.ToRex(a); err != nil {
			return nil, err
		}
		if _, whole := exprs[i].(rex.RangeRef); whole {
			if len(args) == 1 {
				return input, nil
			}
			return nil, &Error{Message: "row-valued member", Construct: a.String()}
		}
	}
	return rel.NewProject(t.cluster, input, exprs, rel.ProjectRowType(t.cluster.TypeFactory(), exprs, names)), nil
}

// orderBy sorts on a column directly, or on a computed key appended by a
// projection and dropped again after the sort.
func (t *QueryableTranslator) orderBy(q *linq.Queryable) (rel.Node, error) {
	input, err := t.Translate(q.Source())
	if err != nil {
		return nil, err
	}
	key, err := t.body(input, q.Lambda(), q.String())
	if err != nil {
		return nil, err
	}
	if ref, ok := key.(rex.InputRef); ok {
		return rel.NewSort(t.cluster, input, []rel.FieldCollation{{Field: ref.Index, Descending: q.Descending()}}, 0, rel.NoFetch), nil
	}

	b, tf := t.cluster.Builder(), t.cluster.TypeFactory()
	rt := input.RowType()
	n := rt.FieldCount()
	exprs := make([]rex.Node, 0, n+1)
	for i := range n {
		exprs = append(exprs, b.MakeInputRef(rt, i))
	}
	exprs = append(exprs, key)
	names := rel.UniquifyNames(append(rt.FieldNames(), "key"))
	widened := rel.NewProject(t.cluster, input, exprs, rel.ProjectRowType(tf, exprs, names))
	sorted := rel.NewSort(t.cluster, widened, []rel.FieldCollation{{Field: n, Descending: q.Descending()}}, 0, rel.NoFetch)
	return rel.NewProject(t.cluster, sorted, exprs[:n], rt), nil
}

// limit folds Take and Skip into the Sort below when there is one.
func (t *QueryableTranslator) limit(q *linq.Queryable) (rel.Node, error) {
	input, err := t.Translate(q.Source())
	if err != nil {
		return nil, err
	}
	if q.Count() < 0 {
		return nil, &Error{Message: "negative count", Construct: q.String()}
	}

	var collation []rel.FieldCollation
	offset, fetch := int64(0), int64(rel.NoFetch)
	if s, ok := input.(*rel.Sort); ok {
		input, collation, offset, fetch = s.Input, s.Collation, s.Offset, s.Fetch
	}
	if q.Kind() == linq.QueryTake {
		if fetch == rel.NoFetch || q.Count() < fetch {
			fetch = q.Count()
		}
	} else {
		offset += q.Count()
		if fetch != rel.NoFetch {
			fetch = max(fetch-q.Count(), 0)
		}
	}
	return rel.NewSort(t.cluster, input, collation, offset, fetch), nil
}

var setKinds = map[linq.QueryKind]struct {
	kind rel.SetKind
	all  bool
}{
	linq.QueryUnion:     {rel.SetUnion, false},
	linq.QueryConcat:    {rel.SetUnion, true},
	linq.QueryIntersect: {rel.SetIntersect, false},
	linq.QueryExcept:    {rel.SetMinus, false},
}

func (t *QueryableTranslator) setOp(q *linq.Queryable) (rel.Node, error) {
	sk, ok := setKinds[q.Kind()]
	if !ok {
		return nil, &Error{Message: "unsupported query operator " + q.Kind().String(), Construct: q.String()}
	}
	left, err := t.Translate(q.Source())
	if err != nil {
		return nil, err
	}
	right, err := t.Translate(q.Other())
	if err != nil {
		return nil, err
	}
	rt, err := rel.SetOpRowType(t.cluster.TypeFactory(), []*ir.Type{left.RowType(), right.RowType()})
	if err != nil {
		return nil, &Error{Message: "incompatible set operands", Construct: q.String(), Err: err}
	}
	return rel.NewSetOp(t.cluster, sk.kind, []rel.Node{left, right}, sk.all, rt), nil
}
