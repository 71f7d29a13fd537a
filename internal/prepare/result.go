package prepare

import (
	"context"

	"github.com/roach88/quarry/internal/catalog"
	"github.com/roach88/quarry/internal/enumerable"
	"github.com/roach88/quarry/internal/ir"
	"github.com/roach88/quarry/internal/rel"
)

// Parameter is one dynamic parameter of a prepared query.
type Parameter struct {
	Ordinal int
	Type    *ir.Type
}

// ParameterBinder derives the parameter list of a prepared query.
type ParameterBinder interface {
	Parameters(root rel.Node, rowType *ir.Type) []Parameter
}

// NoParameters is the default binder. Every query has no parameters.
type NoParameters struct{}

func (NoParameters) Parameters(rel.Node, *ir.Type) []Parameter { return []Parameter{} }

// Plan is what EXPLAIN shows for a prepared query.
type Plan struct {
	Logical  string
	Physical string
	Source   string

	// Digest identifies the physical plan; equal plans share it.
	Digest string
}

// PreparedResult is a compiled query. It is immutable and may be executed
// any number of times.
type PreparedResult struct {
	// ID correlates the log lines of the preparation.
	ID string

	// SQL is the query text; empty for queryables.
	SQL string

	Parameters []Parameter
	Columns    []ColumnMetaData
	RowType    *ir.Type
	Executable enumerable.Executable

	plan Plan
}

// Explain returns the logical plan, the chosen physical plan and the
// procedure listing.
func (r *PreparedResult) Explain() Plan { return r.plan }

// Execute binds the plan to dc. Rows are produced lazily and each
// enumeration reads the tables again.
func (r *PreparedResult) Execute(dc catalog.DataContext) (ir.Enumerable, error) {
	e, err := r.Executable.Execute(dc)
	if err != nil {
		return nil, r.executionError(err)
	}
	return e, nil
}

// Enumerate executes the plan and collects every row.
func (r *PreparedResult) Enumerate(ctx context.Context, dc catalog.DataContext) ([]ir.Row, error) {
	e, err := r.Execute(dc)
	if err != nil {
		return nil, err
	}
	rows, err := ir.Collect(ctx, e)
	if err != nil {
		return nil, r.executionError(err)
	}
	return rows, nil
}

func (r *PreparedResult) executionError(err error) *Error {
	return &Error{Code: CodeExecution, Message: err.Error(), Query: r.SQL, Err: err}
}
