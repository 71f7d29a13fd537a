// Package ir provides the value and type foundation shared by every stage
// of query preparation.
//
// This package contains data definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Value is sealed: Null, Bool, Int, Float, Decimal, String
//   - Exact and approximate numbers stay distinct (Int/Decimal vs Float)
//   - Types are immutable; TypeFactory derives variants
//   - Struct (row) types are the only types exposed as result schemas
package ir
