package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/prepare"
)

func TestSchema_QueriedThroughPipeline(t *testing.T) {
	s := createTestStore(t)
	seedEmps(t, s)
	db, err := s.Schema(t.Context(), "main")
	require.NoError(t, err)
	root := catalog.NewMapSchema("").AddSubSchema("main", db)
	pc := prepare.NewContext(root)

	p := prepare.New(prepare.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	res, err := p.PrepareSQL(t.Context(), pc, "SELECT name, salary * 2 FROM main.emps WHERE active ORDER BY empid")
	require.NoError(t, err)
	assert.Equal(t, "DECIMAL", res.Columns[1].TypeName)

	rows, err := res.Enumerate(t.Context(), pc.DataContext())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bill", rows[0][0].String())
	assert.Equal(t, "20001.00", rows[0][1].String())
}
