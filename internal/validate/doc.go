// Package validate checks a parsed query against the catalog and infers its
// result type.
//
// ARCHITECTURE:
//
// Validation never rewrites the syntax tree. It records what it learned in
// a Validated value keyed by tree node:
//
//   - the table handle each FROM name resolved to
//   - the FROM-row offset and type of each column reference
//   - per SELECT block: its namespaces, the expanded select list with
//     output names, GROUP BY keys and aggregate calls
//   - per query: the resolved ORDER BY keys
//
// The converter in package sql2rel walks the same tree and reads these
// facts back instead of resolving names a second time.
//
// Names are case-sensitive. Output columns are named by alias, then by
// the last component of a column reference, then EXPR$n where n is the
// item's position; duplicates get numeric suffixes.
package validate
