package enumerable

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
)

// pullIterator adapts a pull function to ir.RowIterator.
type pullIterator struct {
	pull  func() (ir.Row, bool, error)
	close func() error
	row   ir.Row
	err   error
	done  bool
}

func (it *pullIterator) Next() bool {
	if it.done {
		return false
	}
	row, ok, err := it.pull()
	if err != nil {
		it.err = err
	}
	if err != nil || !ok {
		it.done = true
		it.row = nil
		return false
	}
	it.row = row
	return true
}

func (it *pullIterator) Row() ir.Row { return it.row }
func (it *pullIterator) Err() error  { return it.err }

func (it *pullIterator) Close() error {
	it.done = true
	if it.close != nil {
		c := it.close
		it.close = nil
		return c()
	}
	return nil
}

func materialize(ctx context.Context, dc catalog.DataContext, src source) ([]ir.Row, error) {
	it, err := src(ctx, dc)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var rows []ir.Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	return rows, it.Err()
}

func scanSource(o ScanOp) source {
	names := o.Table.QualifiedName()
	return func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error) {
		access := o.Table.DataAccess()
		if dc != nil && dc.RootSchema() != nil {
			t, err := lookupTable(dc.RootSchema(), names)
			if err != nil {
				return nil, err
			}
			access = t.Access()
		}
		return access.Open(ctx, dc)
	}
}

// lookupTable finds a table in the live schema tree by qualified name.
func lookupTable(root catalog.Schema, names []string) (catalog.Table, error) {
	s := root
	for _, n := range names[:len(names)-1] {
		if s = s.SubSchema(n); s == nil {
			break
		}
	}
	if s != nil {
		if t := s.Table(names[len(names)-1]); t != nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("table %s is not in the data context", strings.Join(names, "."))
}

func valuesSource(o ValuesOp) source {
	rows := make([]ir.Row, len(o.Rows))
	for i, tuple := range o.Rows {
		row := make(ir.Row, len(tuple))
		for j, l := range tuple {
			row[j] = l.Value
		}
		rows[i] = row
	}
	return func(ctx context.Context, _ catalog.DataContext) (ir.RowIterator, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return ir.NewSliceIterator(rows), nil
	}
}

func calcSource(o CalcOp, input source) (source, error) {
	var keep func(ir.Row) (bool, error)
	if o.Program.Condition != nil {
		p, err := Predicate(o.Program.Condition)
		if err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
		keep = p
	}
	projects, err := compileOperands(o.Program.Projects)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}

	return func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error) {
		in, err := input(ctx, dc)
		if err != nil {
			return nil, err
		}
		return &pullIterator{
			close: in.Close,
			pull: func() (ir.Row, bool, error) {
				for in.Next() {
					row := in.Row()
					if keep != nil {
						ok, err := keep(row)
						if err != nil {
							return nil, false, err
						}
						if !ok {
							continue
						}
					}
					out := make(ir.Row, len(projects))
					for i, p := range projects {
						v, err := p(row)
						if err != nil {
							return nil, false, err
						}
						out[i] = v
					}
					return out, true, nil
				}
				return nil, false, in.Err()
			},
		}, nil
	}, nil
}

// keyOf hashes the given fields; ok is false when any of them is NULL.
func keyOf(row ir.Row, fields []int) (key string, ok bool) {
	vals := make(ir.Row, len(fields))
	for i, f := range fields {
		if ir.IsNull(row[f]) {
			return "", false
		}
		vals[i] = row[f]
	}
	return ir.RowKey(vals), true
}

func joinSource(o JoinOp, left, right source) (source, error) {
	residual := make([]func(ir.Row) (bool, error), len(o.Keys.Residual))
	for i, c := range o.Keys.Residual {
		p, err := Predicate(c)
		if err != nil {
			return nil, fmt.Errorf("join condition: %w", err)
		}
		residual[i] = p
	}
	hashed := len(o.Keys.Left) > 0

	return func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error) {
		rightRows, err := materialize(ctx, dc, right)
		if err != nil {
			return nil, err
		}
		var index map[string][]ir.Row
		if hashed {
			index = make(map[string][]ir.Row)
			for _, r := range rightRows {
				if k, ok := keyOf(r, o.Keys.Right); ok {
					index[k] = append(index[k], r)
				}
			}
		}
		in, err := left(ctx, dc)
		if err != nil {
			return nil, err
		}

		var pending []ir.Row
		return &pullIterator{
			close: in.Close,
			pull: func() (ir.Row, bool, error) {
				for len(pending) == 0 {
					if !in.Next() {
						return nil, false, in.Err()
					}
					l := in.Row()
					candidates := rightRows
					if hashed {
						k, ok := keyOf(l, o.Keys.Left)
						candidates = nil
						if ok {
							candidates = index[k]
						}
					}
					for _, r := range candidates {
						joined := append(l.Clone(), r...)
						match := true
						for _, p := range residual {
							ok, err := p(joined)
							if err != nil {
								return nil, false, err
							}
							if !ok {
								match = false
								break
							}
						}
						if match {
							pending = append(pending, joined)
						}
					}
					if len(pending) == 0 && o.Type == rel.LeftJoin {
						padded := l.Clone()
						for range o.RightWidth {
							padded = append(padded, ir.Null{})
						}
						pending = append(pending, padded)
					}
				}
				row := pending[0]
				pending = pending[1:]
				return row, true, nil
			},
		}, nil
	}, nil
}

// accumulator computes one aggregate over one group.
type accumulator interface {
	add(row ir.Row) error
	result() ir.Value
}

func newAccumulator(call rel.AggCall) accumulator {
	var acc accumulator
	switch call.Func {
	case rel.AggCount:
		acc = &countAcc{args: call.Args}
	case rel.AggSum:
		acc = &sumAcc{arg: call.Args[0]}
	default:
		acc = &extremumAcc{arg: call.Args[0], max: call.Func == rel.AggMax}
	}
	if call.Distinct {
		acc = &distinctAcc{inner: acc, args: call.Args, seen: map[string]bool{}}
	}
	return acc
}

type countAcc struct {
	args []int
	n    int64
}

func (a *countAcc) add(row ir.Row) error {
	for _, i := range a.args {
		if ir.IsNull(row[i]) {
			return nil
		}
	}
	a.n++
	return nil
}

func (a *countAcc) result() ir.Value { return ir.Int(a.n) }

type sumAcc struct {
	arg int
	sum ir.Value
}

func (a *sumAcc) add(row ir.Row) error {
	v := row[a.arg]
	if ir.IsNull(v) {
		return nil
	}
	if a.sum == nil {
		a.sum = v
		return nil
	}
	s, err := ir.Arith(ir.OpAdd, a.sum, v)
	if err != nil {
		return fmt.Errorf("SUM: %w", err)
	}
	a.sum = s
	return nil
}

func (a *sumAcc) result() ir.Value {
	if a.sum == nil {
		return ir.Null{}
	}
	return a.sum
}

type extremumAcc struct {
	arg  int
	max  bool
	best ir.Value
}

func (a *extremumAcc) add(row ir.Row) error {
	v := row[a.arg]
	if ir.IsNull(v) {
		return nil
	}
	if a.best == nil {
		a.best = v
		return nil
	}
	cmp, ok := ir.Compare(v, a.best)
	if !ok {
		return fmt.Errorf("cannot compare %s and %s", v, a.best)
	}
	if (a.max && cmp > 0) || (!a.max && cmp < 0) {
		a.best = v
	}
	return nil
}

func (a *extremumAcc) result() ir.Value {
	if a.best == nil {
		return ir.Null{}
	}
	return a.best
}

type distinctAcc struct {
	inner accumulator
	args  []int
	seen  map[string]bool
}

func (a *distinctAcc) add(row ir.Row) error {
	k, ok := keyOf(row, a.args)
	if !ok || a.seen[k] {
		return nil
	}
	a.seen[k] = true
	return a.inner.add(row)
}

func (a *distinctAcc) result() ir.Value { return a.inner.result() }

type group struct {
	keys ir.Row
	accs []accumulator
}

func aggregateSource(o AggregateOp, input source) (source, error) {
	for _, c := range o.Calls {
		if c.Func != rel.AggCount && len(c.Args) != 1 {
			return nil, fmt.Errorf("%s takes one argument, got %d", c.Func, len(c.Args))
		}
	}
	newGroup := func(keys ir.Row) *group {
		g := &group{keys: keys, accs: make([]accumulator, len(o.Calls))}
		for i, c := range o.Calls {
			g.accs[i] = newAccumulator(c)
		}
		return g
	}

	return func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error) {
		in, err := input(ctx, dc)
		if err != nil {
			return nil, err
		}
		defer in.Close()

		var order []*group
		groups := make(map[string]*group)
		for in.Next() {
			row := in.Row()
			keys := make(ir.Row, len(o.GroupSet))
			for i, f := range o.GroupSet {
				keys[i] = row[f]
			}
			k := ir.RowKey(keys)
			g, ok := groups[k]
			if !ok {
				g = newGroup(keys)
				groups[k] = g
				order = append(order, g)
			}
			for _, acc := range g.accs {
				if err := acc.add(row); err != nil {
					return nil, err
				}
			}
		}
		if err := in.Err(); err != nil {
			return nil, err
		}
		if len(order) == 0 && len(o.GroupSet) == 0 {
			order = append(order, newGroup(nil))
		}

		rows := make([]ir.Row, len(order))
		for i, g := range order {
			row := append(ir.Row{}, g.keys...)
			for _, acc := range g.accs {
				row = append(row, acc.result())
			}
			rows[i] = row
		}
		return ir.NewSliceIterator(rows), nil
	}, nil
}

// compareForSort orders NULL after every other value.
func compareForSort(a, b ir.Value) int {
	an, bn := ir.IsNull(a), ir.IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	cmp, _ := ir.Compare(a, b)
	return cmp
}

func sortSource(o SortOp, input source) source {
	return func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error) {
		rows, err := materialize(ctx, dc, input)
		if err != nil {
			return nil, err
		}
		if len(o.Collation) > 0 {
			slices.SortStableFunc(rows, func(a, b ir.Row) int {
				for _, fc := range o.Collation {
					cmp := compareForSort(a[fc.Field], b[fc.Field])
					if fc.Descending {
						cmp = -cmp
					}
					if cmp != 0 {
						return cmp
					}
				}
				return 0
			})
		}
		if o.Offset > 0 {
			rows = rows[min(o.Offset, int64(len(rows))):]
		}
		if o.Fetch != rel.NoFetch && o.Fetch < int64(len(rows)) {
			rows = rows[:o.Fetch]
		}
		return ir.NewSliceIterator(rows), nil
	}
}

func setOpSource(o SetOpOp, ins []source) source {
	if o.Kind == rel.SetUnion {
		return unionSource(o.All, ins)
	}
	return func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error) {
		others := make([]map[string]int, len(ins)-1)
		for i, src := range ins[1:] {
			rows, err := materialize(ctx, dc, src)
			if err != nil {
				return nil, err
			}
			counts := make(map[string]int, len(rows))
			for _, r := range rows {
				counts[ir.RowKey(r)]++
			}
			others[i] = counts
		}

		// remaining tracks, per key, how many more first-input rows may be
		// emitted (INTERSECT) or must be dropped (EXCEPT).
		remaining := make(map[string]int)
		emitted := make(map[string]bool)
		allowance := func(k string) int {
			if n, ok := remaining[k]; ok {
				return n
			}
			n := 0
			if o.Kind == rel.SetIntersect {
				n = others[0][k]
				for _, m := range others[1:] {
					n = min(n, m[k])
				}
			} else {
				for _, m := range others {
					n += m[k]
				}
			}
			remaining[k] = n
			return n
		}

		first, err := ins[0](ctx, dc)
		if err != nil {
			return nil, err
		}
		return &pullIterator{
			close: first.Close,
			pull: func() (ir.Row, bool, error) {
				for first.Next() {
					row := first.Row()
					k := ir.RowKey(row)
					n := allowance(k)
					var keep bool
					switch {
					case o.Kind == rel.SetIntersect && o.All:
						keep = n > 0
						if keep {
							remaining[k] = n - 1
						}
					case o.Kind == rel.SetIntersect:
						keep = n > 0 && !emitted[k]
					case o.All:
						keep = n == 0
						if !keep {
							remaining[k] = n - 1
						}
					default:
						keep = n == 0 && !emitted[k]
					}
					if keep {
						emitted[k] = true
						return row, true, nil
					}
				}
				return nil, false, first.Err()
			},
		}, nil
	}
}

func unionSource(all bool, ins []source) source {
	return func(ctx context.Context, dc catalog.DataContext) (ir.RowIterator, error) {
		seen := make(map[string]bool)
		branch := 0
		var cur ir.RowIterator
		closeCur := func() error {
			if cur == nil {
				return nil
			}
			err := cur.Close()
			cur = nil
			return err
		}
		return &pullIterator{
			close: closeCur,
			pull: func() (ir.Row, bool, error) {
				for {
					if cur == nil {
						if branch == len(ins) {
							return nil, false, nil
						}
						it, err := ins[branch](ctx, dc)
						if err != nil {
							return nil, false, err
						}
						cur = it
						branch++
					}
					for cur.Next() {
						row := cur.Row()
						if !all {
							k := ir.RowKey(row)
							if seen[k] {
								continue
							}
							seen[k] = true
						}
						return row, true, nil
					}
					if err := cur.Err(); err != nil {
						return nil, false, err
					}
					if err := closeCur(); err != nil {
						return nil, false, err
					}
				}
			},
		}, nil
	}
}
