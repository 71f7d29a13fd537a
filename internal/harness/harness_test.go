package harness

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
)

func loadAll(t *testing.T) []*Scenario {
	t.Helper()
	files, err := FindScenarios(filepath.Join("testdata", "scenarios"), "")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	scenarios := make([]*Scenario, len(files))
	for i, f := range files {
		s, err := LoadScenario(f)
		require.NoError(t, err, f)
		scenarios[i] = s
	}
	return scenarios
}

func TestScenarios(t *testing.T) {
	for _, s := range loadAll(t) {
		t.Run(s.Name, func(t *testing.T) {
			if s.Golden {
				require.NoError(t, RunWithGolden(t, s))
				return
			}
			result, err := Run(t.Context(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunAll_PreservesOrder(t *testing.T) {
	scenarios := loadAll(t)
	results, err := New().RunAll(t.Context(), scenarios, 2)
	require.NoError(t, err)
	require.Len(t, results, len(scenarios))
	for i, r := range results {
		assert.Equal(t, scenarios[i].Name, r.Name)
		assert.True(t, r.Pass, "%s: %v", r.Name, r.Errors)
	}
}

func TestRun_ReportsMismatch(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: mismatch
description: "Expected rows differ from the produced ones"
catalog:
  tables:
    T:
      columns:
        - {name: x, type: INTEGER, nullable: true}
      rows:
        - [1]
        - [null]
sql: SELECT x FROM T
expect:
  columns: [x]
  rows:
    - ["1"]
    - ["2"]
`))
	require.NoError(t, err)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, [][]string{{"1"}, {"NULL"}}, result.Rows)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: rows")
}

func TestRun_ExecutionFailureIsAnOutcome(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: divide_by_zero
description: "Runtime errors surface as EXECUTION_FAILED"
catalog:
  tables:
    T:
      columns:
        - {name: x, type: INTEGER}
      rows:
        - [1]
sql: SELECT x / 0 FROM T
expect:
  error: EXECUTION_FAILED
`))
	require.NoError(t, err)

	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "EXECUTION_FAILED", result.ErrorCode)
}

func TestRun_BadCatalogIsAnError(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			s := &Scenario{
				Name:    "bad_rows",
				Backend: backend,
				Catalog: CatalogDecl{Tables: map[string]TableDecl{
					"T": {
						Columns: []catalog.ColumnDef{{Name: "x", Type: "INTEGER"}},
						Rows:    [][]any{{nil}},
					},
				}},
				SQL: "SELECT x FROM T",
			}
			_, err := Run(t.Context(), s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "scenario bad_rows")
			assert.Contains(t, err.Error(), "NULL in NOT NULL")
		})
	}
}

func TestHarness_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	h := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	s := loadAll(t)[0]

	_, err := h.Run(t.Context(), s)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "scenario completed")
	assert.Contains(t, buf.String(), "scenario="+s.Name)
}
