// Package queryir is the derived-query representation handed to the row
// execution engine.
//
// The engine derives one query per compiled plan: the from-source of the
// expression query, its joins, and the filters. Every table access lists its
// columns explicitly, so the position of each column in the returned row is
// known when the plan is compiled and shapers can read rows by index.
//
// ARCHITECTURE:
//
//	[expression query] → [Query IR] → [SQL backend] → rows → [shapers]
//
// Row layout: the columns of the left-most Select come first, followed by
// the columns of each joined table in join order.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed using the marker method pattern, so
// backends can switch over them exhaustively:
//
//	switch q := query.(type) {
//	case *Select:
//	case *Join:
//	}
//
// Values in predicates are ir.IRValue (no floats). Bound parameters are
// referenced by name and supplied at execution time.
//
// PORTABLE FRAGMENT:
//
// Validate reports features that only some backends support: outer joins
// and comparisons against NULL. Both are allowed and executed correctly by
// the SQL backend.
package queryir
