package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/prepare"
	"github.com/roach88/quarry/internal/store"
	"github.com/roach88/quarry/internal/testutil"
)

// Harness prepares and executes scenarios with a fixed preparation id and
// a silent logger.
type Harness struct {
	preparer *prepare.Preparer
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the preparer.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness. Logs are discarded unless WithLogger is given.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	h.preparer = prepare.New(
		prepare.WithLogger(h.logger),
		prepare.WithIDGenerator(testutil.NewFixedIDGenerator("")),
	)
	return h
}

// Run executes a scenario with a default harness.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New().Run(ctx, scenario)
}

// Run executes a test scenario and returns the result.
//
// Each scenario gets a fresh catalog; with the sqlite backend that is a new
// in-memory database.
//
// Execution flow:
//  1. Build the declared catalog
//  2. Prepare the query
//  3. Execute it and render every row as text
//  4. Compare the outcome with the expect clause
//
// A prepare or execution failure is an outcome, not an error. The returned
// error reports a scenario that could not be set up.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	root, closeCatalog, err := buildCatalog(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	defer closeCatalog()

	pc := prepare.NewContext(root)
	result := NewResult(scenario.Name)

	res, err := h.preparer.PrepareSQL(ctx, pc, scenario.SQL)
	if err == nil {
		result.Plan = res.Explain()
		for _, c := range res.Columns {
			result.Columns = append(result.Columns, c.Label)
			result.Types = append(result.Types, c.TypeName)
		}
		var rows []ir.Row
		rows, err = res.Enumerate(ctx, pc.DataContext())
		result.Rows = renderRows(rows)
	}
	if err != nil {
		code := prepare.CodeOf(err)
		if code == "" {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.ErrorCode = string(code)
		h.logger.Debug("scenario failed to prepare", "scenario", scenario.Name, "code", code, "error", err)
	}

	for _, msg := range EvaluateExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"rows", len(result.Rows),
	)
	return result, nil
}

// RunAll executes scenarios concurrently, at most parallel at a time
// (unlimited when parallel <= 0). Results are returned in input order.
// Each scenario has its own catalog and preparation.
func (h *Harness) RunAll(ctx context.Context, scenarios []*Scenario, parallel int) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			r, err := h.Run(gctx, s)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func renderRows(rows []ir.Row) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = v.String()
		}
	}
	return out
}

// buildCatalog materializes the scenario's catalog. The returned function
// releases it.
func buildCatalog(ctx context.Context, s *Scenario) (catalog.Schema, func(), error) {
	if s.Backend == BackendSQLite {
		return buildSQLite(ctx, s.Catalog)
	}
	root, err := buildMemory(ir.NewTypeFactory(), "", s.Catalog)
	if err != nil {
		return nil, nil, err
	}
	return root, func() {}, nil
}

func buildMemory(tf *ir.TypeFactory, name string, decl CatalogDecl) (*catalog.MapSchema, error) {
	schema := catalog.NewMapSchema(name)
	for _, tname := range sortedKeys(decl.Tables) {
		t := decl.Tables[tname]
		rows, err := convertRows(t.Rows)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", tname, err)
		}
		mt, err := catalog.NewDeclaredTable(tf, tname, t.Columns, rows)
		if err != nil {
			return nil, err
		}
		schema.AddTable(tname, mt)
	}
	for _, sname := range sortedKeys(decl.Schemas) {
		sub, err := buildMemory(tf, sname, decl.Schemas[sname])
		if err != nil {
			return nil, err
		}
		schema.AddSubSchema(sname, sub)
	}
	return schema, nil
}

func buildSQLite(ctx context.Context, decl CatalogDecl) (catalog.Schema, func(), error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	closeStore := func() { _ = st.Close() }

	for _, tname := range sortedKeys(decl.Tables) {
		t := decl.Tables[tname]
		if err := st.CreateTable(ctx, tname, t.Columns); err != nil {
			closeStore()
			return nil, nil, err
		}
		rows, err := convertRows(t.Rows)
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("table %s: %w", tname, err)
		}
		if err := st.Insert(ctx, tname, rows); err != nil {
			closeStore()
			return nil, nil, err
		}
	}
	root, err := st.Schema(ctx, "")
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return root, closeStore, nil
}

// convertRows converts YAML-decoded values to loosely typed rows; the
// table's column types decide the final representation.
func convertRows(in [][]any) ([]ir.Row, error) {
	rows := make([]ir.Row, len(in))
	for i, r := range in {
		row := make(ir.Row, len(r))
		for j, v := range r {
			val, err := ir.FromGo(v)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %d: %w", i, j, err)
			}
			row[j] = val
		}
		rows[i] = row
	}
	return rows, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
