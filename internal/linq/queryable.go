package linq

import (
	"reflect"
	"strconv"
	"strings"
)

// QueryKind identifies a queryable operator.
type QueryKind int

const (
	QueryFrom QueryKind = iota
	QueryWhere
	QuerySelect
	QueryOrderBy
	QueryTake
	QuerySkip
	QueryUnion
	QueryConcat
	QueryIntersect
	QueryExcept
)

var queryKindNames = [...]string{
	QueryFrom:      "From",
	QueryWhere:     "Where",
	QuerySelect:    "Select",
	QueryOrderBy:   "OrderBy",
	QueryTake:      "Take",
	QuerySkip:      "Skip",
	QueryUnion:     "Union",
	QueryConcat:    "Concat",
	QueryIntersect: "Intersect",
	QueryExcept:    "Except",
}

func (k QueryKind) String() string { return queryKindNames[k] }

// Queryable is an immutable chain of query operators over a named
// collection. Each method returns a new Queryable; the receiver is unchanged.
type Queryable struct {
	kind   QueryKind
	source *Queryable
	other  *Queryable
	names  []string
	lambda *LambdaExpr
	desc   bool
	count  int64
	elem   reflect.Type
}

// From starts a query over the collection at the qualified name. T is the
// element type; its fields map to columns by `col` tag or field name.
func From[T any](names ...string) *Queryable {
	return FromType(reflect.TypeFor[T](), names...)
}

// FromType is From with a runtime element type.
func FromType(elem reflect.Type, names ...string) *Queryable {
	return &Queryable{kind: QueryFrom, names: append([]string(nil), names...), elem: elem}
}

func (q *Queryable) derive(kind QueryKind) *Queryable {
	return &Queryable{kind: kind, source: q, elem: q.elem}
}

// Row returns a fresh parameter typed as the current element type, for use
// in the lambda passed to the next operator.
func (q *Queryable) Row(name string) *ParameterExpr { return Parameter(name, q.elem) }

// Where keeps elements for which pred is true.
func (q *Queryable) Where(pred *LambdaExpr) *Queryable {
	n := q.derive(QueryWhere)
	n.lambda = pred
	return n
}

// Select maps each element through sel. The element type becomes the
// type of sel's body.
func (q *Queryable) Select(sel *LambdaExpr) *Queryable {
	n := q.derive(QuerySelect)
	n.lambda = sel
	n.elem = sel.Body.Type()
	return n
}

// OrderBy sorts by key.
func (q *Queryable) OrderBy(key *LambdaExpr, desc bool) *Queryable {
	n := q.derive(QueryOrderBy)
	n.lambda = key
	n.desc = desc
	return n
}

// Take keeps the first n elements.
func (q *Queryable) Take(n int64) *Queryable {
	t := q.derive(QueryTake)
	t.count = n
	return t
}

// Skip drops the first n elements.
func (q *Queryable) Skip(n int64) *Queryable {
	s := q.derive(QuerySkip)
	s.count = n
	return s
}

func (q *Queryable) setOp(kind QueryKind, o *Queryable) *Queryable {
	n := q.derive(kind)
	n.other = o
	return n
}

// Union returns the distinct elements of both queries.
func (q *Queryable) Union(o *Queryable) *Queryable { return q.setOp(QueryUnion, o) }

// Concat returns all elements of q followed by all elements of o.
func (q *Queryable) Concat(o *Queryable) *Queryable { return q.setOp(QueryConcat, o) }

// Intersect returns the distinct elements present in both queries.
func (q *Queryable) Intersect(o *Queryable) *Queryable { return q.setOp(QueryIntersect, o) }

// Except returns the distinct elements of q not present in o.
func (q *Queryable) Except(o *Queryable) *Queryable { return q.setOp(QueryExcept, o) }

func (q *Queryable) Kind() QueryKind           { return q.kind }
func (q *Queryable) Source() *Queryable        { return q.source }
func (q *Queryable) Other() *Queryable         { return q.other }
func (q *Queryable) Names() []string           { return append([]string(nil), q.names...) }
func (q *Queryable) Lambda() *LambdaExpr       { return q.lambda }
func (q *Queryable) Descending() bool          { return q.desc }
func (q *Queryable) Count() int64              { return q.count }
func (q *Queryable) ElementType() reflect.Type { return q.elem }

func (q *Queryable) String() string {
	var b strings.Builder
	q.write(&b)
	return b.String()
}

func (q *Queryable) write(b *strings.Builder) {
	if q.kind == QueryFrom {
		b.WriteString("From(" + strings.Join(q.names, ".") + ")")
		return
	}
	q.source.write(b)
	b.WriteString("." + q.kind.String() + "(")
	switch q.kind {
	case QueryWhere, QuerySelect:
		b.WriteString(q.lambda.String())
	case QueryOrderBy:
		b.WriteString(q.lambda.String())
		if q.desc {
			b.WriteString(", desc")
		}
	case QueryTake, QuerySkip:
		b.WriteString(strconv.FormatInt(q.count, 10))
	default:
		q.other.write(b)
	}
	b.WriteString(")")
}
