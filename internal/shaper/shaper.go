package shaper

import (
	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

// ValueBuffer is one result row: raw column values by position.
// Shapers treat it as read-only.
type ValueBuffer []ir.IRValue

// At returns the value at index i, or null when i is out of range.
func (b ValueBuffer) At(i int) ir.IRValue {
	if i < 0 || i >= len(b) || b[i] == nil {
		return ir.Null
	}
	return b[i]
}

// SourceShaper is the part of the shaper contract that does not depend on
// the shaped type.
type SourceShaper interface {
	// IsShaperForSource reports whether this shaper materializes h.
	IsShaperForSource(h source.Handle) bool

	// SaveAccessorExpression records accessors for the sources this shaper
	// materializes. Called once at compile time, before m is sealed.
	SaveAccessorExpression(m *SourceMapping) error

	// AccessorExpression returns the expression through which consumers
	// read h's value, or nil when this shaper does not materialize h.
	AccessorExpression(h source.Handle) expr.Node
}

// Shaper converts a row into a T.
type Shaper[T any] interface {
	SourceShaper
	Shape(qc *QueryContext, row ValueBuffer) (T, error)
}

// NullShaper is the identity shaper.
type NullShaper struct{}

// Null is the identity shaper.
var Null Shaper[ValueBuffer] = NullShaper{}

// Shape returns row unchanged.
func (NullShaper) Shape(_ *QueryContext, row ValueBuffer) (ValueBuffer, error) {
	return row, nil
}

// IsShaperForSource always returns false.
func (NullShaper) IsShaperForSource(source.Handle) bool { return false }

// SaveAccessorExpression records nothing.
func (NullShaper) SaveAccessorExpression(*SourceMapping) error { return nil }

// AccessorExpression always returns nil.
func (NullShaper) AccessorExpression(source.Handle) expr.Node { return nil }
