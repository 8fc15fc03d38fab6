// Package ir provides the constrained value universe shared by every layer
// of shapeq: row buffers, expression constants, materialized entities and
// query results are all IRValues.
//
// This package imports nothing internal. All other internal packages may
// import ir; ir stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - numbers are int64
//   - Null is a first-class value (IRNull), never a Go nil
//   - Canonical JSON (RFC 8785) is the only encoding used for hashing
package ir
