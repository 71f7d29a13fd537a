package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/quarry/internal/prepare"
)

// Snapshot renders the logical and physical plans of a prepared query for
// golden comparison. The procedure listing is left out; it is a debugging
// aid and not stable across rule changes.
func Snapshot(plan prepare.Plan) []byte {
	var b strings.Builder
	b.WriteString("-- logical\n")
	b.WriteString(plan.Logical)
	b.WriteString("-- physical\n")
	b.WriteString(plan.Physical)
	return []byte(b.String())
}

// RunWithGolden executes a scenario, checks its expectations, and compares
// the plan snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the plan doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an already executed result's plan against a
// golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Snapshot(result.Plan))
}
