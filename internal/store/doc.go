// Package store exposes the tables of a SQLite database as a catalog.Schema.
//
// Tables are discovered from sqlite_master and their columns from
// PRAGMA table_info. A column's declared type is parsed with
// catalog.ParseColumnType, so a table created as
//
//	CREATE TABLE emps (empid INTEGER NOT NULL, salary DECIMAL(10, 2))
//
// is seen by the planner with exactly those types. SQLite spellings without
// a SQL counterpart are mapped first (TEXT is VARCHAR, INT is INTEGER, an
// empty declaration is ANY).
//
// # Value Mapping
//
// DECIMAL values are written as text, but SQLite gives DECIMAL columns
// NUMERIC affinity and stores them as INTEGER or REAL; reading quantizes
// them back to the declared scale. Digits beyond float64 precision do not
// survive a round trip. BOOLEAN is stored as 0 or 1. Reading coerces every
// stored value to its column type with catalog.Coerce.
//
// # Laziness
//
// A table's DataAccess runs its SELECT only when the plan is enumerated,
// and again on every enumeration. Rows come back in rowid order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
