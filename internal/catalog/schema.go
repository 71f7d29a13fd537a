package catalog

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/roach88/quarry/internal/ir"
)

// Schema is a namespace node: zero or more named sub-schemas and tables.
// Lookups return nil when the name does not exist (not an error).
// Implementations MUST be safe for concurrent reads.
type Schema interface {
	Name() string
	SubSchema(name string) Schema
	Table(name string) Table
	SubSchemaNames() []string
	TableNames() []string
}

// Table is a catalog table as the preparation core sees it: an element
// type and an opaque handle describing how to obtain its rows.
type Table interface {
	// RowType lifts the table's element type through the active type system.
	RowType(tf *ir.TypeFactory) (*ir.Type, error)

	// Access describes how to reach the rows at execution time.
	Access() DataAccess
}

// Statistic is implemented by tables that know their cardinality.
type Statistic interface {
	RowCount() (float64, bool)
}

// DataContext is the live runtime environment handed to an executing plan.
type DataContext interface {
	RootSchema() Schema
}

// NewDataContext returns a DataContext over a fixed root schema.
func NewDataContext(root Schema) DataContext { return rootContext{root} }

type rootContext struct{ root Schema }

func (c rootContext) RootSchema() Schema { return c.root }

// DataAccess is the data-access expression of a table.
// Open is called once per enumeration, never at preparation time.
type DataAccess interface {
	Open(ctx context.Context, dc DataContext) (ir.RowIterator, error)
	String() string
}

// MapSchema is an in-memory Schema.
type MapSchema struct {
	name   string
	subs   map[string]Schema
	tables map[string]Table
}

// NewMapSchema creates an empty schema.
func NewMapSchema(name string) *MapSchema {
	return &MapSchema{
		name:   name,
		subs:   make(map[string]Schema),
		tables: make(map[string]Table),
	}
}

// AddSubSchema registers a child schema under name and returns s.
func (s *MapSchema) AddSubSchema(name string, sub Schema) *MapSchema {
	s.subs[name] = sub
	return s
}

// AddTable registers a table under name and returns s.
func (s *MapSchema) AddTable(name string, t Table) *MapSchema {
	s.tables[name] = t
	return s
}

func (s *MapSchema) Name() string { return s.name }

func (s *MapSchema) SubSchema(name string) Schema {
	sub, ok := s.subs[name]
	if !ok {
		return nil
	}
	return sub
}

func (s *MapSchema) Table(name string) Table {
	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	return t
}

func (s *MapSchema) SubSchemaNames() []string { return sortedKeys(s.subs) }

func (s *MapSchema) TableNames() []string { return sortedKeys(s.tables) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MemTable is a table whose rows live in memory.
// Rows may be appended after preparation; each enumeration sees a snapshot
// taken when it opens.
type MemTable struct {
	name     string
	declared *ir.Type
	goType   reflect.Type

	mu   sync.RWMutex
	rows []ir.Row
}

// NewMemTable creates a table with a declared struct row type.
func NewMemTable(name string, rowType *ir.Type, rows ...ir.Row) *MemTable {
	return &MemTable{name: name, declared: rowType, rows: rows}
}

// NewStructTable creates a table from a slice of Go structs. The row type is
// derived from the struct's element type with ir.TypeFactory.CreateTypeFromGo.
func NewStructTable(name string, elems any) (*MemTable, error) {
	v := reflect.ValueOf(elems)
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("NewStructTable %s: want slice of structs, got %T", name, elems)
	}
	elemType := v.Type().Elem()
	if elemType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("NewStructTable %s: want slice of structs, got %T", name, elems)
	}

	t := &MemTable{name: name, goType: elemType}
	for i := 0; i < v.Len(); i++ {
		row, err := structRow(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("NewStructTable %s: row %d: %w", name, i, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// structRow flattens one struct into a row using the same field selection
// rules as CreateTypeFromGo.
func structRow(v reflect.Value) (ir.Row, error) {
	st := v.Type()
	var row ir.Row
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() || sf.Tag.Get("col") == "-" {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				row = append(row, ir.Null{})
				continue
			}
			fv = fv.Elem()
		}
		val, err := ir.FromGo(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		row = append(row, val)
	}
	return row, nil
}

// Name returns the table's name.
func (t *MemTable) Name() string { return t.name }

// RowType implements Table.
func (t *MemTable) RowType(tf *ir.TypeFactory) (*ir.Type, error) {
	if t.declared != nil {
		return t.declared, nil
	}
	return tf.CreateTypeFromGo(t.goType)
}

// Access implements Table.
func (t *MemTable) Access() DataAccess { return memAccess{table: t} }

// Append adds rows to the table.
func (t *MemTable) Append(rows ...ir.Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, rows...)
}

// Len returns the current number of rows.
func (t *MemTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

func (t *MemTable) snapshot() []ir.Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rows := make([]ir.Row, len(t.rows))
	copy(rows, t.rows)
	return rows
}

type memAccess struct {
	table *MemTable
}

func (a memAccess) Open(ctx context.Context, dc DataContext) (ir.RowIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ir.NewSliceIterator(a.table.snapshot()), nil
}

func (a memAccess) String() string { return "mem:" + a.table.name }
