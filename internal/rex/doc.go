// Package rex holds relational scalar expressions: the row expressions that
// filters, projections and join conditions are built from.
//
// Every node carries its type. Builder infers call types from the operator
// table and keeps numeric literals honest: exact literals (integral or
// decimal) keep every digit, approximate literals are DOUBLE.
package rex
