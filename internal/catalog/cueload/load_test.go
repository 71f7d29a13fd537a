package cueload

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
)

func TestCompile_NestedSchemas(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		table: T: {
			columns: [{name: "x", type: "INTEGER"}, {name: "y", type: "INTEGER"}]
		}
		schema: hr: {
			table: emps: {
				columns: [
					{name: "empid", type: "INTEGER"},
					{name: "name", type: "VARCHAR(20)", nullable: true},
					{name: "salary", type: "DECIMAL(10, 2)"},
				]
				rows: [
					[100, "Bill", 10000.00],
					[110, null, "11500.5"],
				]
			}
			schema: archive: table: old: {
				columns: [{name: "id", type: "BIGINT"}]
			}
		}
	`)
	require.NoError(t, v.Err())

	tf := ir.NewTypeFactory()
	root, err := Compile(v, tf)
	require.NoError(t, err)

	r := catalog.NewReader(root, tf)

	h, err := r.Resolve([]string{"T"})
	require.NoError(t, err)
	assert.Equal(t, "RecordType(INTEGER NOT NULL x, INTEGER NOT NULL y)", h.RowType().Digest())

	h, err = r.Resolve([]string{"hr", "emps"})
	require.NoError(t, err)
	assert.Equal(t,
		"RecordType(INTEGER NOT NULL empid, VARCHAR(20) name, DECIMAL(10, 2) NOT NULL salary)",
		h.RowType().Digest())

	_, err = r.Resolve([]string{"hr", "archive", "old"})
	require.NoError(t, err)

	emps := root.SubSchema("hr").Table("emps").(*catalog.MemTable)
	assert.Equal(t, 2, emps.Len())
}

func TestCompile_DecimalCellsKeepDigits(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		table: money: {
			columns: [{name: "amount", type: "DECIMAL(20, 1)"}]
			rows: [[12345678901234.5]]
		}
	`)
	require.NoError(t, v.Err())

	root, err := Compile(v, ir.NewTypeFactory())
	require.NoError(t, err)

	dc := staticContext{root}
	it, err := root.Table("money").Access().Open(t.Context(), dc)
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.Next())
	assert.Equal(t, "12345678901234.5", it.Row()[0].String())
}

type staticContext struct{ s catalog.Schema }

func (c staticContext) RootSchema() catalog.Schema { return c.s }

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{
			name:    "missing columns",
			src:     `table: T: {rows: []}`,
			wantMsg: "columns are required",
		},
		{
			name:    "missing column type",
			src:     `table: T: columns: [{name: "x"}]`,
			wantMsg: "type is required",
		},
		{
			name:    "unknown type",
			src:     `table: T: columns: [{name: "x", type: "BLOB"}]`,
			wantMsg: "unknown column type",
		},
		{
			name:    "null in not null column",
			src:     `table: T: {columns: [{name: "x", type: "INTEGER"}], rows: [[null]]}`,
			wantMsg: "NOT NULL",
		},
		{
			name:    "struct cell",
			src:     `table: T: {columns: [{name: "x", type: "INTEGER"}], rows: [[{a: 1}]]}`,
			wantMsg: "unsupported cell kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := Compile(v, ir.NewTypeFactory())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var ce *CompileError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `package catalog

table: T: {
	columns: [{name: "x", type: "INTEGER"}, {name: "y", type: "INTEGER"}]
	rows: [[1, 2], [3, 4]]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.cue"), []byte(src), 0644))

	root, err := LoadDir(dir, ir.NewTypeFactory())
	require.NoError(t, err)
	assert.Equal(t, []string{"T"}, root.TableNames())
}

func TestLoadDir_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "nope"), ir.NewTypeFactory())
		assert.Error(t, err)
	})

	t.Run("no cue files", func(t *testing.T) {
		_, err := LoadDir(t.TempDir(), ir.NewTypeFactory())
		assert.ErrorContains(t, err, "no CUE files")
	})
}
