package harness

import "github.com/roach88/quarry/internal/prepare"

// Result is the outcome of a scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall success: every expectation matched.
	Pass bool `json:"pass"`

	// Columns are the labels of the prepared query's columns.
	Columns []string `json:"columns,omitempty"`

	// Types are the type names of the prepared query's columns.
	Types []string `json:"types,omitempty"`

	// Rows are the produced rows rendered as text.
	Rows [][]string `json:"rows,omitempty"`

	// ErrorCode is the prepare error code, empty when preparation and
	// execution succeeded.
	ErrorCode string `json:"error_code,omitempty"`

	// Plan is the EXPLAIN output of the prepared query.
	Plan prepare.Plan `json:"-"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
