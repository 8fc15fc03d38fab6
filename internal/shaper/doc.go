// Package shaper turns positional row buffers into result values.
//
// A shaper is built once per compiled query and invoked once per row:
//
//	row (ValueBuffer) → Shape(qc, row) → value
//
// Shapers never modify the row and keep no state across rows. Per-query
// state (the identity map of materialized entities, parameters, the logger)
// lives in the QueryContext passed to every call.
//
// SOURCES AND ACCESSORS:
//
// An entity shaper is the materializer for exactly one logical source.
// Composite shapers ask IsShaperForSource to find the single child that
// materializes a source, so each source is materialized at most once per
// row.
//
// At compile time SaveAccessorExpression records, in a SourceMapping, how
// downstream consumers can reach a source's value (an accessor expression)
// and its properties (column slots) without re-invoking the shaper tree.
// The mapping is sealed before the first row is shaped and is read-only
// afterwards, so compiled shapers can be shared by concurrent executions.
//
// The Null shaper is the identity: it returns the row unchanged, services
// no source and records no accessor. It lets composing code treat "no
// transformation" like any other shaper.
package shaper
