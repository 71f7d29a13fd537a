package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/quarry/internal/ir"
)

// ErrNotFound is the sentinel wrapped by every failed resolution.
var ErrNotFound = errors.New("object not found")

// NotFoundError describes a failed name resolution.
type NotFoundError struct {
	Names  []string
	Reason string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", strings.Join(e.Names, "."), e.Reason)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsNotFound reports whether err is (or wraps) a resolution failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatisticsProvider supplies cardinality estimates.
// Returning ok=false falls back to the table's own Statistic, then to
// DefaultRowCount.
type StatisticsProvider interface {
	RowCount(names []string, t Table) (float64, bool)
}

// StatisticsFunc adapts a function to StatisticsProvider.
type StatisticsFunc func(names []string, t Table) (float64, bool)

func (f StatisticsFunc) RowCount(names []string, t Table) (float64, bool) { return f(names, t) }

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithStatistics installs a statistics provider.
func WithStatistics(p StatisticsProvider) ReaderOption {
	return func(r *Reader) { r.stats = p }
}

// Reader resolves qualified names against a root schema.
// It is scoped to one preparation and is not shared between them.
type Reader struct {
	root  Schema
	tf    *ir.TypeFactory
	stats StatisticsProvider
}

// NewReader creates a reader rooted at root.
func NewReader(root Schema, tf *ir.TypeFactory, opts ...ReaderOption) *Reader {
	r := &Reader{root: root, tf: tf}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RootSchema returns the schema names are resolved against.
func (r *Reader) RootSchema() Schema { return r.root }

// TypeFactory returns the factory row types are lifted through.
func (r *Reader) TypeFactory() *ir.TypeFactory { return r.tf }

// Resolve walks names from the root.
//
// Every name but the last must be a sub-schema. The last name is looked up
// first as a sub-schema and then as a table; a sub-schema is never
// resolvable as a table, so that case reports NotFound. Extra names after a
// table (over-qualification) also report NotFound.
func (r *Reader) Resolve(names []string) (*TableHandle, error) {
	if len(names) == 0 {
		return nil, &NotFoundError{Names: names, Reason: "empty name"}
	}

	schema := r.root
	for i, name := range names {
		if sub := schema.SubSchema(name); sub != nil {
			if i == len(names)-1 {
				return nil, &NotFoundError{Names: names, Reason: "names a schema, not a table"}
			}
			schema = sub
			continue
		}

		table := schema.Table(name)
		if table == nil {
			return nil, &NotFoundError{Names: names, Reason: fmt.Sprintf("no object named %q", name)}
		}
		if i != len(names)-1 {
			return nil, &NotFoundError{Names: names, Reason: fmt.Sprintf("%q is a table and cannot be qualified further", name)}
		}

		rowType, err := table.RowType(r.tf)
		if err != nil {
			return nil, fmt.Errorf("row type of %s: %w", strings.Join(names, "."), err)
		}
		qualified := append([]string(nil), names...)
		return &TableHandle{
			reader:   r,
			names:    qualified,
			rowType:  rowType,
			table:    table,
			rowCount: r.rowCount(qualified, table),
		}, nil
	}
	// unreachable: the loop returns on the last name
	return nil, &NotFoundError{Names: names, Reason: "unresolved"}
}

func (r *Reader) rowCount(names []string, t Table) float64 {
	if r.stats != nil {
		if n, ok := r.stats.RowCount(names, t); ok {
			return n
		}
	}
	if s, ok := t.(Statistic); ok {
		if n, ok := s.RowCount(); ok {
			return n
		}
	}
	return DefaultRowCount
}

// QualifiedTable is one entry of a catalog listing.
type QualifiedTable struct {
	Names   []string
	RowType *ir.Type
}

// Tables lists every table reachable from the root, depth-first in name order.
func (r *Reader) Tables() ([]QualifiedTable, error) {
	var out []QualifiedTable
	var walk func(prefix []string, s Schema) error
	walk = func(prefix []string, s Schema) error {
		for _, name := range s.TableNames() {
			names := append(append([]string(nil), prefix...), name)
			rt, err := s.Table(name).RowType(r.tf)
			if err != nil {
				return fmt.Errorf("row type of %s: %w", strings.Join(names, "."), err)
			}
			out = append(out, QualifiedTable{Names: names, RowType: rt})
		}
		for _, name := range s.SubSchemaNames() {
			if err := walk(append(append([]string(nil), prefix...), name), s.SubSchema(name)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(nil, r.root); err != nil {
		return nil, err
	}
	return out, nil
}
