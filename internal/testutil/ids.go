// Package testutil holds deterministic helpers shared by tests.
package testutil

import (
	"fmt"
	"sync/atomic"
)

// FixedIDGenerator generates the same execution id every time.
//
// This makes log output and golden snapshots byte-identical across runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id.
// If id is empty, Generate() returns "test-query-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-query-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements engine.IDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequenceIDGenerator generates "<prefix>-1", "<prefix>-2", ...
//
// Thread-safety: safe for concurrent use; ids are unique but their order
// across goroutines is unspecified.
type SequenceIDGenerator struct {
	prefix string
	n      atomic.Uint64
}

// NewSequenceIDGenerator creates a generator with the given prefix.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
