// Package harness runs query scenarios through the full preparation
// pipeline and checks their outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	backend: memory            # or sqlite
//	catalog:
//	  tables:
//	    T:
//	      columns:
//	        - {name: x, type: INTEGER}
//	        - {name: y, type: VARCHAR(20), nullable: true}
//	      rows:
//	        - [1, "a"]
//	  schemas:
//	    hr:
//	      tables: { ... }
//	sql: SELECT x, y FROM T
//	expect:
//	  columns: [x, y]
//	  types: [INTEGER, VARCHAR]
//	  rows:
//	    - ["1", "a"]
//	  ordered: false
//	golden: true
//
// A scenario expecting failure names the prepare error code instead:
//
//	expect:
//	  error: RESOLUTION_FAILED
//
// # Expectations
//
//   - error: the prepare error code; empty means the query must prepare
//     and execute
//   - columns: column labels, in order
//   - types: column type names, in order
//   - rows: rows rendered with Value.String, NULL as "NULL"; compared as
//     a multiset unless ordered is set
//
// # Golden Files
//
// With golden set, the logical and physical plans are compared against
// testdata/golden/{name}.golden (see Snapshot).
//
// # Determinism
//
// Every scenario gets a fresh catalog (a new in-memory SQLite database for
// the sqlite backend), a fixed preparation id, and a discarding logger, so
// scenarios are independent and may run concurrently (see Harness.RunAll).
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/filter.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
