package ir

import "context"

// Row is one tuple of values, positionally aligned with a struct Type.
type Row []Value

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	c := make(Row, len(r))
	copy(c, r)
	return c
}

// RowIterator is a forward-only cursor over rows.
//
// Usage mirrors database/sql.Rows:
//
//	for it.Next() {
//	    row := it.Row()
//	}
//	if err := it.Err(); err != nil { ... }
//	it.Close()
type RowIterator interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Enumerable is a lazily evaluated row sequence. Every call to Enumerator
// starts a fresh pass over the underlying data.
type Enumerable interface {
	Enumerator(ctx context.Context) (RowIterator, error)
}

// EnumerableFunc adapts a function to the Enumerable interface.
type EnumerableFunc func(ctx context.Context) (RowIterator, error)

// Enumerator implements Enumerable.
func (f EnumerableFunc) Enumerator(ctx context.Context) (RowIterator, error) {
	return f(ctx)
}

// SliceIterator iterates over an in-memory slice of rows.
type SliceIterator struct {
	rows []Row
	pos  int
}

// NewSliceIterator creates an iterator positioned before the first row.
func NewSliceIterator(rows []Row) *SliceIterator {
	return &SliceIterator{rows: rows, pos: -1}
}

func (it *SliceIterator) Next() bool {
	if it.pos+1 >= len(it.rows) {
		it.pos = len(it.rows)
		return false
	}
	it.pos++
	return true
}

func (it *SliceIterator) Row() Row {
	if it.pos < 0 || it.pos >= len(it.rows) {
		return nil
	}
	return it.rows[it.pos]
}

func (it *SliceIterator) Err() error { return nil }

func (it *SliceIterator) Close() error { return nil }

// Collect drains an Enumerable into a slice.
func Collect(ctx context.Context, e Enumerable) ([]Row, error) {
	it, err := e.Enumerator(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	rows := []Row{}
	for it.Next() {
		rows = append(rows, it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
