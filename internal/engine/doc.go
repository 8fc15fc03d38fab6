// Package engine compiles queries over the model into executable plans and
// runs them against the store.
//
// PIPELINE:
//
//	Query ─► optimize projections ─► QueryIR ─► SQL
//	                                   │
//	                                   └─► shaper tree + sealed SourceMapping
//
//	Execute: store rows ─► ProjectionShaper ─► result objects
//
// Compile runs the conditional optimizer over every projection, derives a
// QueryIR select/join over the entity tables (one alias per source, columns
// in property order), compiles it to SQL, and builds the shaper tree that
// turns each row into a result object.
//
// A projection that the optimizer reduced to a plain column read, either
// source.Property on a source that cannot be null or the null-propagating
// form guarded by the source itself, is served straight from its column
// slot. Every other projection is evaluated over the row's materialized
// entities.
//
// PLANS:
//
// Plans are immutable once compiled: the accessor mapping is sealed before
// the first row is shaped, and per-execution state lives in a fresh
// shaper.QueryContext. A plan may therefore be executed concurrently
// (see ExecuteAll). Plans are cached by the hash of the query's canonical
// encoding.
//
// Rows are produced in a deterministic order (ORDER BY over every table's
// key columns), and cancellation is checked before each row.
package engine
