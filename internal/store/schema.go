package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// sqliteTypes maps SQLite spellings onto SQL type names.
var sqliteTypes = map[string]string{
	"":      "ANY",
	"TEXT":  "VARCHAR",
	"INT":   "INTEGER",
	"BOOL":  "BOOLEAN",
	"FLOAT": "DOUBLE",
}

func columnType(decl string) string {
	if alias, ok := sqliteTypes[strings.ToUpper(strings.TrimSpace(decl))]; ok {
		return alias
	}
	return decl
}

// Schema introspects the database and returns its tables as a flat schema
// named name. The listing is a snapshot; rows are read at execution time.
func (s *Store) Schema(ctx context.Context, name string) (catalog.Schema, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	schema := &Schema{name: name, tables: make(map[string]*Table, len(names))}
	for _, n := range names {
		t, err := s.table(ctx, n)
		if err != nil {
			return nil, err
		}
		schema.tables[n] = t
	}
	slog.Debug("store: schema loaded", "schema", name, "tables", len(names))
	return schema, nil
}

// table reads the column declarations of one table.
func (s *Store) table(ctx context.Context, name string) (*Table, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	defer rows.Close()

	t := &Table{db: s.db, name: name}
	for rows.Next() {
		var (
			cid     int
			col     string
			decl    string
			notNull bool
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &col, &decl, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		t.cols = append(t.cols, catalog.ColumnDef{Name: col, Type: columnType(decl), Nullable: !notNull})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	if len(t.cols) == 0 {
		return nil, &catalog.NotFoundError{Names: []string{name}, Reason: "no such table"}
	}
	return t, nil
}

// Schema is a snapshot of a database's tables.
type Schema struct {
	name   string
	tables map[string]*Table
}

func (s *Schema) Name() string                    { return s.name }
func (s *Schema) SubSchema(string) catalog.Schema { return nil }
func (s *Schema) SubSchemaNames() []string        { return nil }

func (s *Schema) Table(name string) catalog.Table {
	if t, ok := s.tables[name]; ok {
		return t
	}
	return nil
}

func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Table is one SQLite table.
type Table struct {
	db   *sql.DB
	name string
	cols []catalog.ColumnDef
}

// Columns returns the column declarations as read from the database.
func (t *Table) Columns() []catalog.ColumnDef {
	return append([]catalog.ColumnDef(nil), t.cols...)
}

// RowType implements catalog.Table.
func (t *Table) RowType(tf *ir.TypeFactory) (*ir.Type, error) {
	rt, err := catalog.RowTypeOf(tf, t.cols)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	return rt, nil
}

// RowCount implements catalog.Statistic with COUNT(*).
func (t *Table) RowCount() (float64, bool) {
	var n int64
	if err := t.db.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(t.name)).Scan(&n); err != nil {
		slog.Warn("store: row count failed", "table", t.name, "error", err)
		return 0, false
	}
	return float64(n), true
}

// Access implements catalog.Table.
func (t *Table) Access() catalog.DataAccess { return access{t} }

type access struct{ t *Table }

func (a access) String() string { return "sqlite:" + a.t.name }

// Open runs the table's SELECT.
func (a access) Open(ctx context.Context, _ catalog.DataContext) (ir.RowIterator, error) {
	rowType, err := a.t.RowType(ir.NewTypeFactory())
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(a.t.cols))
	for i, c := range a.t.cols {
		cols[i] = quoteIdent(c.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), quoteIdent(a.t.name))
	rows, err := a.t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", a.t.name, err)
	}
	return &rowIterator{rows: rows, rowType: rowType}, nil
}

// rowIterator adapts sql.Rows to ir.RowIterator.
type rowIterator struct {
	rows    *sql.Rows
	rowType *ir.Type
	row     ir.Row
	err     error
}

func (it *rowIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	fields := it.rowType.Fields()
	raw := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		it.err = err
		return false
	}
	row := make(ir.Row, len(fields))
	for i, f := range fields {
		v, err := fromSQLite(f.Type, raw[i])
		if err != nil {
			it.err = fmt.Errorf("column %s: %w", f.Name, err)
			return false
		}
		row[i] = v
	}
	it.row = row
	return true
}

func (it *rowIterator) Row() ir.Row { return it.row }

func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *rowIterator) Close() error { return it.rows.Close() }
