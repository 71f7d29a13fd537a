package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
	"github.com/roach88/quarry/internal/rex"
	"github.com/roach88/quarry/internal/sqlparse"
)

// Item is one column of a SELECT block's output, after * expansion.
type Item struct {
	Expr sqlparse.Expr
	Name string
	Type *ir.Type
}

// SelectScope is what validation learned about one SELECT block.
type SelectScope struct {
	Namespaces []*Namespace
	Items      []Item
	GroupBy    []sqlparse.Expr
	// Aggregates are the distinct aggregate calls of the select list,
	// HAVING and ORDER BY, in order of first appearance.
	Aggregates []*sqlparse.FuncCall
	// Aggregated is true when the block groups, with or without GROUP BY.
	Aggregated bool

	from *scope
}

// RowType is the block's output row type.
func (s *SelectScope) RowType(tf *ir.TypeFactory) *ir.Type {
	names := make([]string, len(s.Items))
	types := make([]*ir.Type, len(s.Items))
	for i, it := range s.Items {
		names[i], types[i] = it.Name, it.Type
	}
	return tf.CreateStructType(names, types)
}

// OrderKey is a resolved ORDER BY item. Ordinal is the 0-based output
// column it sorts on, or -1 when Expr must be computed as a hidden column.
type OrderKey struct {
	Ordinal int
	Expr    sqlparse.Expr
	Desc    bool
}

// Validated is a query plus everything validation resolved in it.
type Validated struct {
	Query   *sqlparse.Query
	RowType *ir.Type

	tables   map[*sqlparse.TableRef]*catalog.TableHandle
	columns  map[*sqlparse.ColumnRef]Binding
	types    map[sqlparse.Expr]*ir.Type
	selects  map[*sqlparse.Select]*SelectScope
	orders   map[*sqlparse.Query][]OrderKey
	rowTypes map[sqlparse.SetExpr]*ir.Type
}

// Table returns the handle a FROM name resolved to.
func (v *Validated) Table(t *sqlparse.TableRef) *catalog.TableHandle { return v.tables[t] }

// Column returns the binding of a column reference.
func (v *Validated) Column(c *sqlparse.ColumnRef) (Binding, bool) {
	b, ok := v.columns[c]
	return b, ok
}

// TypeOf returns the inferred type of an expression, or nil.
func (v *Validated) TypeOf(e sqlparse.Expr) *ir.Type { return v.types[e] }

// Select returns the scope of a SELECT block.
func (v *Validated) Select(s *sqlparse.Select) *SelectScope { return v.selects[s] }

// OrderKeys returns the resolved ORDER BY of q.
func (v *Validated) OrderKeys(q *sqlparse.Query) []OrderKey { return v.orders[q] }

// RowTypeOf returns the output row type of a query body.
func (v *Validated) RowTypeOf(e sqlparse.SetExpr) *ir.Type { return v.rowTypes[e] }

// Validator resolves and type-checks queries against a catalog.
type Validator struct {
	reader *catalog.Reader
	b      *rex.Builder
}

// New creates a validator. Literal types come from b.
func New(reader *catalog.Reader, b *rex.Builder) *Validator {
	return &Validator{reader: reader, b: b}
}

// Validate checks q and returns the resolution facts and its row type.
// Unresolvable table names produce an *Error wrapping catalog.ErrNotFound.
func (v *Validator) Validate(q *sqlparse.Query) (*Validated, *ir.Type, error) {
	st := &state{
		Validator: v,
		tf:        v.b.TypeFactory(),
		out: &Validated{
			Query:    q,
			tables:   map[*sqlparse.TableRef]*catalog.TableHandle{},
			columns:  map[*sqlparse.ColumnRef]Binding{},
			types:    map[sqlparse.Expr]*ir.Type{},
			selects:  map[*sqlparse.Select]*SelectScope{},
			orders:   map[*sqlparse.Query][]OrderKey{},
			rowTypes: map[sqlparse.SetExpr]*ir.Type{},
		},
	}
	rt, err := st.query(q)
	if err != nil {
		return nil, nil, err
	}
	st.out.RowType = rt
	return st.out, rt, nil
}

// state is one validation run.
type state struct {
	*Validator
	tf  *ir.TypeFactory
	out *Validated
}

func (st *state) query(q *sqlparse.Query) (*ir.Type, error) {
	rt, err := st.setExpr(q.Body)
	if err != nil {
		return nil, err
	}
	keys := make([]OrderKey, 0, len(q.OrderBy))
	for _, o := range q.OrderBy {
		k, err := st.orderKey(q, rt, o)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	st.out.orders[q] = keys
	st.out.rowTypes[q] = rt
	return rt, nil
}

func (st *state) setExpr(e sqlparse.SetExpr) (*ir.Type, error) {
	var rt *ir.Type
	var err error
	switch x := e.(type) {
	case *sqlparse.Select:
		rt, err = st.selectBlock(x)
	case *sqlparse.Query:
		rt, err = st.query(x)
	case *sqlparse.SetOp:
		rt, err = st.setOp(x)
	}
	if err != nil {
		return nil, err
	}
	st.out.rowTypes[e] = rt
	return rt, nil
}

func (st *state) setOp(x *sqlparse.SetOp) (*ir.Type, error) {
	left, err := st.setExpr(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := st.setExpr(x.Right)
	if err != nil {
		return nil, err
	}
	if left.FieldCount() != right.FieldCount() {
		return nil, errorf(x.Pos, "Column count mismatch in %s", x.Kind)
	}
	rt, err := rel.SetOpRowType(st.tf, []*ir.Type{left, right})
	if err != nil {
		return nil, &Error{Pos: x.Pos, Message: fmt.Sprintf("Type mismatch in %s: %s", x.Kind, err), Err: err}
	}
	return rt, nil
}

func (st *state) selectBlock(s *sqlparse.Select) (*ir.Type, error) {
	sel := &SelectScope{from: &scope{}}
	st.out.selects[s] = sel
	if s.From != nil {
		if err := st.from(s.From, sel.from); err != nil {
			return nil, err
		}
	}
	sel.Namespaces = sel.from.namespaces

	grouped := len(s.GroupBy) > 0
	base := exprCtx{scope: sel.from, grouped: grouped}

	if s.Where != nil {
		c := base
		c.clause = "WHERE"
		if err := st.condition(c, s.Where); err != nil {
			return nil, err
		}
	}
	for _, g := range s.GroupBy {
		c := base
		c.clause = "GROUP BY"
		if _, err := st.typeOf(c, g); err != nil {
			return nil, err
		}
	}
	sel.GroupBy = s.GroupBy

	items, err := st.expand(s, sel)
	if err != nil {
		return nil, err
	}
	c := base
	c.clause, c.allowAgg = "SELECT", true
	aggregated := grouped || s.Having != nil
	for i := range items {
		t, err := st.typeOf(c, items[i].Expr)
		if err != nil {
			return nil, err
		}
		items[i].Type = t
		aggregated = aggregated || ContainsAggregate(items[i].Expr)
	}
	if s.Having != nil {
		h := base
		h.clause, h.allowAgg = "HAVING", true
		if err := st.condition(h, s.Having); err != nil {
			return nil, err
		}
	}
	sel.Items = items
	sel.Aggregated = aggregated

	if aggregated {
		for _, it := range items {
			if err := st.checkGrouped(sel, it.Expr); err != nil {
				return nil, err
			}
		}
		if s.Having != nil {
			if err := st.checkGrouped(sel, s.Having); err != nil {
				return nil, err
			}
		}
	}
	return sel.RowType(st.tf), nil
}

// expand builds the select list with * and t.* replaced by column
// references, and names every item.
func (st *state) expand(s *sqlparse.Select, sel *SelectScope) ([]Item, error) {
	var items []Item
	for _, it := range s.Items {
		if !it.Star {
			items = append(items, Item{Expr: it.Expr, Name: it.Alias})
			continue
		}
		namespaces := sel.from.namespaces
		if it.Qualifier != "" {
			ns, err := sel.from.namespace(it.Qualifier, it.Pos)
			if err != nil {
				return nil, err
			}
			namespaces = []*Namespace{ns}
		}
		if len(namespaces) == 0 {
			return nil, errorf(it.Pos, "SELECT * requires a FROM clause")
		}
		for _, ns := range namespaces {
			for _, f := range ns.RowType.Fields() {
				ref := &sqlparse.ColumnRef{Pos: it.Pos, Names: append(append([]string(nil), ns.Qualifier...), f.Name)}
				st.out.columns[ref] = Binding{Offset: ns.Offset + f.Index, Type: f.Type, Name: f.Name}
				items = append(items, Item{Expr: ref, Name: f.Name})
			}
		}
	}

	names := make([]string, len(items))
	for i, it := range items {
		switch {
		case it.Name != "":
			names[i] = it.Name
		case isColumn(it.Expr):
			ref := it.Expr.(*sqlparse.ColumnRef)
			names[i] = ref.Names[len(ref.Names)-1]
		default:
			names[i] = "EXPR$" + strconv.Itoa(i)
		}
	}
	for i, n := range rel.UniquifyNames(names) {
		items[i].Name = n
	}
	return items, nil
}

func isColumn(e sqlparse.Expr) bool {
	_, ok := e.(*sqlparse.ColumnRef)
	return ok
}

func (st *state) condition(c exprCtx, e sqlparse.Expr) error {
	t, err := st.typeOf(c, e)
	if err != nil {
		return err
	}
	if n := t.Name(); n != ir.TypeBoolean && n != ir.TypeNull {
		return errorf(e.Position(), "%s clause must be a condition, got %s", c.clause, t)
	}
	return nil
}

// from adds the namespaces of a FROM item to sc. Joins are left-deep, so
// each ON condition sees exactly the namespaces added so far.
func (st *state) from(item sqlparse.FromItem, sc *scope) error {
	switch x := item.(type) {
	case *sqlparse.TableRef:
		h, err := st.reader.Resolve(x.Names)
		if err != nil {
			if catalog.IsNotFound(err) {
				return notFound(x.Pos, strings.Join(x.Names, "."), err)
			}
			return &Error{Pos: x.Pos, Identifier: strings.Join(x.Names, "."), Message: err.Error(), Err: err}
		}
		st.out.tables[x] = h
		qualifier := x.Names
		if x.Alias != "" {
			qualifier = []string{x.Alias}
		}
		return sc.add(&Namespace{Qualifier: qualifier, RowType: h.RowType(), Table: h}, x.Pos)

	case *sqlparse.SubqueryRef:
		rt, err := st.query(x.Query)
		if err != nil {
			return err
		}
		var qualifier []string
		if x.Alias != "" {
			qualifier = []string{x.Alias}
		}
		return sc.add(&Namespace{Qualifier: qualifier, RowType: rt}, x.Pos)

	case *sqlparse.Join:
		if err := st.from(x.Left, sc); err != nil {
			return err
		}
		before := len(sc.namespaces)
		if err := st.from(x.Right, sc); err != nil {
			return err
		}
		if x.On != nil {
			if err := st.condition(exprCtx{scope: sc, clause: "ON"}, x.On); err != nil {
				return err
			}
		}
		if x.Kind == sqlparse.LeftJoin {
			for _, ns := range sc.namespaces[before:] {
				ns.RowType = st.nullable(ns.RowType)
			}
		}
	}
	return nil
}

func (st *state) nullable(rt *ir.Type) *ir.Type {
	fields := rt.Fields()
	names := make([]string, len(fields))
	types := make([]*ir.Type, len(fields))
	for i, f := range fields {
		names[i], types[i] = f.Name, st.tf.WithNullability(f.Type, true)
	}
	return st.tf.CreateStructType(names, types)
}

// checkGrouped verifies e only uses GROUP BY keys outside aggregate
// calls, and records the aggregate calls it contains.
func (st *state) checkGrouped(sel *SelectScope, e sqlparse.Expr) error {
	keys := make(map[string]bool, len(sel.GroupBy))
	for _, g := range sel.GroupBy {
		keys[st.out.Key(g)] = true
	}
	var err error
	sqlparse.Walk(e, func(x sqlparse.Expr) bool {
		if err != nil || keys[st.out.Key(x)] {
			return false
		}
		switch y := x.(type) {
		case *sqlparse.ColumnRef:
			err = &Error{Pos: y.Pos, Identifier: y.String(), Message: "Expression '" + y.String() + "' is not being grouped"}
			return false
		case *sqlparse.FuncCall:
			if _, ok := rel.LookupAggFunc(y.Name); ok {
				st.addAggregate(sel, y)
				return false
			}
		}
		return true
	})
	return err
}

func (st *state) addAggregate(sel *SelectScope, call *sqlparse.FuncCall) {
	key := st.out.Key(call)
	for _, a := range sel.Aggregates {
		if st.out.Key(a) == key {
			return
		}
	}
	sel.Aggregates = append(sel.Aggregates, call)
}

// orderKey resolves one ORDER BY item: an ordinal, an output column name,
// an expression equal to a select item, or (for a plain SELECT body) any
// expression over its FROM clause.
func (st *state) orderKey(q *sqlparse.Query, rt *ir.Type, o sqlparse.OrderItem) (OrderKey, error) {
	key := OrderKey{Ordinal: -1, Desc: o.Desc}

	if lit, ok := o.Expr.(*sqlparse.Literal); ok && lit.Kind == sqlparse.LitInteger {
		n, err := strconv.Atoi(lit.Text)
		if err != nil || n < 1 || n > rt.FieldCount() {
			return key, errorf(lit.Pos, "Ordinal out of range: %s", lit.Text)
		}
		key.Ordinal = n - 1
		return key, nil
	}

	if ref, ok := o.Expr.(*sqlparse.ColumnRef); ok && len(ref.Names) == 1 {
		match := -1
		for i, f := range rt.Fields() {
			if f.Name != ref.Names[0] {
				continue
			}
			if match >= 0 {
				return key, &Error{Pos: ref.Pos, Identifier: f.Name, Message: "Column '" + f.Name + "' is ambiguous"}
			}
			match = i
		}
		if match >= 0 {
			key.Ordinal = match
			return key, nil
		}
	}

	s, ok := q.Body.(*sqlparse.Select)
	if !ok {
		return key, errorf(o.Expr.Position(), "Only output column names or ordinals are allowed in ORDER BY of a set operation")
	}
	sel := st.out.selects[s]
	c := exprCtx{scope: sel.from, clause: "ORDER BY", allowAgg: sel.Aggregated, grouped: len(sel.GroupBy) > 0}
	if _, err := st.typeOf(c, o.Expr); err != nil {
		return key, err
	}
	k := st.out.Key(o.Expr)
	for i, it := range sel.Items {
		if st.out.Key(it.Expr) == k {
			key.Ordinal = i
			return key, nil
		}
	}
	if s.Distinct {
		return key, errorf(o.Expr.Position(), "Expression '%s' is not in the select clause", o.Expr)
	}
	if sel.Aggregated {
		if err := st.checkGrouped(sel, o.Expr); err != nil {
			return key, err
		}
	}
	key.Expr = o.Expr
	return key, nil
}
