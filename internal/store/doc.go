// Package store is the SQLite row execution engine.
//
// It opens the database, creates entity tables from a model, and streams
// the rows of derived queries as read-only buffers of ir.IRValue.
//
// # Row values
//
// Driver values are converted to the constrained value universe:
//   - INTEGER → ir.IRInt
//   - TEXT, BLOB → ir.IRString
//   - NULL → ir.IRNull
//   - REAL → error (floats are forbidden)
//
// Booleans are stored as INTEGER 0/1; shapers convert them back using the
// property type from the model.
//
// # Cancellation
//
// ForEachRow checks the context before every row. A cancelled query stops
// between rows, never in the middle of one.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - One open connection; SQLite has a single writer
package store
