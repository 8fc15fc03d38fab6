package shaper

import (
	"fmt"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
	"github.com/roach88/shapeq/internal/source"
)

// ValueShaper reads one column slot.
type ValueShaper struct {
	Column Column
}

// Shape returns the slot's value, decoded to the column's property type.
func (s ValueShaper) Shape(_ *QueryContext, row ValueBuffer) (ir.IRValue, error) {
	if s.Column.Index >= len(row) {
		return nil, fmt.Errorf("column %d out of range (row width %d)", s.Column.Index, len(row))
	}
	return decodeColumn(row.At(s.Column.Index), s.Column.Type)
}

// IsShaperForSource always returns false; a column is not a source.
func (ValueShaper) IsShaperForSource(source.Handle) bool { return false }

// SaveAccessorExpression records nothing.
func (ValueShaper) SaveAccessorExpression(*SourceMapping) error { return nil }

// AccessorExpression always returns nil.
func (ValueShaper) AccessorExpression(source.Handle) expr.Node { return nil }

// decodeColumn converts a raw store value to its property type. Booleans
// are stored as integers.
func decodeColumn(v ir.IRValue, typ string) (ir.IRValue, error) {
	if ir.IsNull(v) {
		return ir.Null, nil
	}
	switch typ {
	case model.TypeBool:
		switch b := v.(type) {
		case ir.IRBool:
			return b, nil
		case ir.IRInt:
			return ir.IRBool(b != 0), nil
		}
	case model.TypeInt:
		if i, ok := v.(ir.IRInt); ok {
			return i, nil
		}
	case model.TypeString:
		if s, ok := v.(ir.IRString); ok {
			return s, nil
		}
	case "":
		return v, nil
	}
	return nil, fmt.Errorf("cannot decode %s as %s", ir.KindName(v), typ)
}

// NewValueShaper returns a shaper reading the slot at index, decoded as typ.
func NewValueShaper(index int, typ string) *ValueShaper {
	return &ValueShaper{Column: Column{Index: index, Type: typ}}
}
