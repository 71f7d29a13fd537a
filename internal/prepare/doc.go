// Package prepare drives one query through the whole pipeline and packages
// the result.
//
// ARCHITECTURE:
//
// Pipeline (one Preparer call, nothing shared with other calls):
//  1. A catalog.Reader is built over the Context's root schema.
//  2. A planner.Driver is created; its Cluster is where every node of this
//     preparation is built.
//  3. Front end. SQL text is parsed (sqlparse), validated (validate) and
//     lowered (sql2rel). A linq.Queryable is lowered by the queryable
//     translator and its declared element type is the result type.
//  4. The result type is normalized to a struct (MakeStruct).
//  5. The driver flattens and optimizes the root into ENUMERABLE.
//  6. enumerable.Implementor lowers the plan to a Procedure; the configured
//     Compiler turns it into an Executable.
//  7. Column metadata is derived from the struct type and everything is
//     bundled into a PreparedResult.
//
// A failure at any stage stops the pipeline. Later stages never run, so a
// query naming a missing table never reaches the compiler. Every failure
// is an *Error whose Code names the stage.
//
// Contract violations:
// Supplying both SQL text and a queryable, or neither, panics.
//
// Concurrency:
// A Preparer holds configuration only and is safe for concurrent use as
// long as the catalog it reads is.
package prepare
