package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // what was compared: columns, types, rows, error
	Expected string     // human-readable expected outcome
	Actual   string     // human-readable actual outcome
	Rows     [][]string // produced rows for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rows) > 0 {
		fmt.Fprintf(&buf, "\nRows produced:\n")
		for i, row := range e.Rows {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, formatRow(row))
		}
	}
	return buf.String()
}

func formatRow(row []string) string {
	return "(" + strings.Join(row, ", ") + ")"
}

// assertError checks the prepare error code. An empty expectation means
// the query must prepare and execute.
func assertError(expected string, result *Result) error {
	if expected == result.ErrorCode {
		return nil
	}
	want, got := expected, result.ErrorCode
	if want == "" {
		want = "success"
	}
	if got == "" {
		got = "success"
	}
	return &AssertionError{Type: "error", Expected: want, Actual: got}
}

// assertColumns checks column labels in order.
func assertColumns(expected []string, result *Result) error {
	if slices.Equal(expected, result.Columns) {
		return nil
	}
	return &AssertionError{
		Type:     "columns",
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", result.Columns),
	}
}

// assertTypes checks column type names in order.
func assertTypes(expected []string, result *Result) error {
	if slices.Equal(expected, result.Types) {
		return nil
	}
	return &AssertionError{
		Type:     "types",
		Expected: fmt.Sprintf("%v", expected),
		Actual:   fmt.Sprintf("%v", result.Types),
	}
}

// assertRows compares rows positionally when ordered, otherwise as a
// multiset.
func assertRows(expected [][]string, ordered bool, result *Result) error {
	want, got := expected, result.Rows
	if !ordered {
		want, got = sortedRows(want), sortedRows(got)
	}

	if len(want) != len(got) {
		return &AssertionError{
			Type:     "rows",
			Expected: fmt.Sprintf("%d rows", len(want)),
			Actual:   fmt.Sprintf("%d rows", len(got)),
			Rows:     result.Rows,
		}
	}
	for i := range want {
		if !slices.Equal(want[i], got[i]) {
			kind := "row"
			if !ordered {
				kind = "row (sorted)"
			}
			return &AssertionError{
				Type:     "rows",
				Expected: fmt.Sprintf("%s %d = %s", kind, i+1, formatRow(want[i])),
				Actual:   fmt.Sprintf("%s %d = %s", kind, i+1, formatRow(got[i])),
				Rows:     result.Rows,
			}
		}
	}
	return nil
}

func sortedRows(rows [][]string) [][]string {
	out := slices.Clone(rows)
	sort.SliceStable(out, func(i, j int) bool {
		return slices.Compare(out[i], out[j]) < 0
	})
	return out
}

// EvaluateExpect checks a result against a scenario's expectations.
// Returns a slice of error messages for failed expectations.
func EvaluateExpect(result *Result, expect Expect) []string {
	var errors []string

	if err := assertError(expect.Error, result); err != nil {
		// Columns and rows are meaningless once the outcome differs.
		return []string{err.Error()}
	}
	if expect.Error != "" {
		return nil
	}

	if len(expect.Columns) > 0 {
		if err := assertColumns(expect.Columns, result); err != nil {
			errors = append(errors, err.Error())
		}
	}
	if len(expect.Types) > 0 {
		if err := assertTypes(expect.Types, result); err != nil {
			errors = append(errors, err.Error())
		}
	}
	if expect.Rows != nil || expect.Columns != nil {
		if err := assertRows(expect.Rows, expect.Ordered, result); err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
