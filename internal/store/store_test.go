package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedEmps(t *testing.T, s *Store) {
	t.Helper()
	ctx := t.Context()
	require.NoError(t, s.CreateTable(ctx, "emps", []catalog.ColumnDef{
		{Name: "empid", Type: "INTEGER"},
		{Name: "name", Type: "VARCHAR(20)"},
		{Name: "salary", Type: "DECIMAL(10, 2)"},
		{Name: "active", Type: "BOOLEAN", Nullable: true},
	}))
	require.NoError(t, s.Insert(ctx, "emps", []ir.Row{
		{ir.Int(100), ir.String("Bill"), ir.MustParseDecimal("10000.5"), ir.Bool(true)},
		{ir.Int(200), ir.String("Eric"), ir.Int(8000), ir.Null{}},
	}))
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for range 3 {
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			require.NoError(t, s.DB().QueryRow("PRAGMA "+tt.name).Scan(&got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchema_Introspection(t *testing.T) {
	s := createTestStore(t)
	seedEmps(t, s)
	_, err := s.DB().Exec(`CREATE TABLE notes (body TEXT, n INT, misc)`)
	require.NoError(t, err)

	schema, err := s.Schema(t.Context(), "main")
	require.NoError(t, err)
	assert.Equal(t, "main", schema.Name())
	assert.Equal(t, []string{"emps", "notes"}, schema.TableNames())
	assert.Nil(t, schema.SubSchema("emps"))
	assert.Nil(t, schema.Table("missing"))

	tf := ir.NewTypeFactory()
	rt, err := schema.Table("emps").RowType(tf)
	require.NoError(t, err)
	assert.Equal(t,
		"RecordType(INTEGER NOT NULL empid, VARCHAR(20) NOT NULL name, DECIMAL(10, 2) NOT NULL salary, BOOLEAN active)",
		rt.Digest())

	rt, err = schema.Table("notes").RowType(tf)
	require.NoError(t, err)
	assert.Equal(t, "RecordType(VARCHAR body, INTEGER n, ANY misc)", rt.Digest())
}

func TestTable_ScanIsLazyAndLive(t *testing.T) {
	s := createTestStore(t)
	seedEmps(t, s)
	schema, err := s.Schema(t.Context(), "main")
	require.NoError(t, err)
	access := schema.Table("emps").Access()
	assert.Equal(t, "sqlite:emps", access.String())

	read := func() [][]string {
		it, err := access.Open(t.Context(), catalog.NewDataContext(schema))
		require.NoError(t, err)
		defer it.Close()
		var out [][]string
		for it.Next() {
			var row []string
			for _, v := range it.Row() {
				row = append(row, v.String())
			}
			out = append(out, row)
		}
		require.NoError(t, it.Err())
		return out
	}

	assert.Equal(t, [][]string{
		{"100", "Bill", "10000.50", "TRUE"},
		{"200", "Eric", "8000.00", "NULL"},
	}, read())

	require.NoError(t, s.Insert(t.Context(), "emps", []ir.Row{
		{ir.Int(300), ir.String("Zed"), ir.Int(1), ir.Bool(false)},
	}))
	assert.Len(t, read(), 3)
}

func TestTable_RowCount(t *testing.T) {
	s := createTestStore(t)
	seedEmps(t, s)
	schema, err := s.Schema(t.Context(), "main")
	require.NoError(t, err)

	stat, ok := schema.Table("emps").(catalog.Statistic)
	require.True(t, ok)
	n, ok := stat.RowCount()
	assert.True(t, ok)
	assert.Equal(t, 2.0, n)
}

func TestInsert_Errors(t *testing.T) {
	s := createTestStore(t)
	seedEmps(t, s)
	ctx := t.Context()

	err := s.Insert(ctx, "emps", []ir.Row{{ir.Null{}, ir.String("x"), ir.Int(1), ir.Null{}}})
	assert.ErrorContains(t, err, "NULL in NOT NULL")

	err = s.Insert(ctx, "emps", []ir.Row{{ir.Int(1)}})
	assert.ErrorContains(t, err, "row has 1 values")

	err = s.Insert(ctx, "nope", nil)
	assert.True(t, catalog.IsNotFound(err))

	err = s.CreateTable(ctx, "bad", []catalog.ColumnDef{{Name: "a", Type: "WIDGET"}})
	assert.ErrorContains(t, err, "unknown column type")
}
