package catalog

import (
	"strings"

	"github.com/roach88/quarry/internal/ir"
)

// DefaultRowCount is the cardinality assumed when nothing better is known.
const DefaultRowCount = 100

// Monotonicity describes how a column's values evolve over a table.
type Monotonicity int

const (
	NotMonotonic Monotonicity = iota
	Increasing
	Decreasing
)

func (m Monotonicity) String() string {
	switch m {
	case Increasing:
		return "INCREASING"
	case Decreasing:
		return "DECREASING"
	default:
		return "NOT_MONOTONIC"
	}
}

// AccessType describes which operations a table permits.
type AccessType int

const (
	ReadOnly AccessType = iota
	ReadWrite
)

func (a AccessType) String() string {
	if a == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}

// Collation is one sort key of a table's natural ordering.
type Collation struct {
	FieldIndex int
	Descending bool
}

// TableHandle is the planner's view of a resolved table.
type TableHandle struct {
	reader   *Reader
	names    []string
	rowType  *ir.Type
	table    Table
	rowCount float64
}

// NewTableHandle builds a handle directly. Readers normally create handles.
func NewTableHandle(names []string, rowType *ir.Type, table Table, rowCount float64) *TableHandle {
	return &TableHandle{names: append([]string(nil), names...), rowType: rowType, table: table, rowCount: rowCount}
}

// QualifiedName returns a copy of the fully qualified name.
func (h *TableHandle) QualifiedName() []string { return append([]string(nil), h.names...) }

// String returns the dotted qualified name.
func (h *TableHandle) String() string { return strings.Join(h.names, ".") }

// RowType returns the table's struct type.
func (h *TableHandle) RowType() *ir.Type { return h.rowType }

// RowCount returns the cardinality estimate.
func (h *TableHandle) RowCount() float64 { return h.rowCount }

// Collations returns the table's known orderings. None are tracked.
func (h *TableHandle) Collations() []Collation { return []Collation{} }

// Monotonicity reports how a column evolves. Always NotMonotonic.
func (h *TableHandle) Monotonicity(column string) Monotonicity { return NotMonotonic }

// AccessType reports the permitted operations. Always ReadOnly.
func (h *TableHandle) AccessType() AccessType { return ReadOnly }

// Reader returns the reader that resolved the handle; nil for handles built
// with NewTableHandle.
func (h *TableHandle) Reader() *Reader { return h.reader }

// Table returns the underlying catalog table.
func (h *TableHandle) Table() Table { return h.table }

// DataAccess returns the table's data-access expression.
func (h *TableHandle) DataAccess() DataAccess { return h.table.Access() }
