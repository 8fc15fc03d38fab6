package engine

import (
	"github.com/google/uuid"
)

// IDGenerator generates execution ids for log correlation.
// Implemented by UUIDv7Generator (production) and the generators in
// testutil (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 execution ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// start time in logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
