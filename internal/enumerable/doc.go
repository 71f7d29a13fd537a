// Package enumerable implements the ENUMERABLE convention: physical
// relational nodes, the rules that produce them, and the path from a chosen
// plan to running code.
//
// ARCHITECTURE:
//
// Plan -> Procedure -> Executable:
//  1. Implementor.ImplementRoot walks the physical plan bottom-up and emits
//     one statement per node into a single root block. The block's entry
//     parameter is root0, the DataContext the plan runs against.
//  2. Procedure.Source renders the block for diagnostics. The preparer
//     logs it at debug level before compiling, and every CompileError
//     carries it.
//  3. A Compiler turns the procedure into an Executable. ClosureCompiler
//     compiles every scalar expression once into a Go closure and composes
//     operator closures; nothing is generated or loaded at runtime.
//
// Laziness:
// Executable.Execute only binds the DataContext. Tables are looked up by
// qualified name in the live root schema and opened when the returned
// Enumerable is enumerated, and again on every later enumeration.
//
// NULL semantics:
// Scalar evaluation uses three-valued logic. A filter or join condition
// keeps a row only when it evaluates to TRUE.
package enumerable
