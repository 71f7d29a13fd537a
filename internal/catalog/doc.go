// Package catalog exposes a schema tree to the query preparer.
//
// A Reader resolves qualified names like ["hr", "emps"] to a TableHandle
// carrying the table's row type, a cardinality estimate, and the DataAccess
// used to fetch rows at execution time. Handles never touch data: Open is
// only called when a compiled plan is enumerated.
//
// Sub-schemas are preferred over tables at each step of resolution. A name
// that denotes a schema is not a table, and over-qualified names
// ("hr.emps.x") do not resolve.
package catalog
