package shaper

import (
	"fmt"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
	"github.com/roach88/shapeq/internal/source"
)

// EntityShaper materializes one logical source from a contiguous run of
// columns, one per entity property, starting at Offset.
type EntityShaper struct {
	Source source.Handle
	Name   string
	Entity *model.EntityType
	Offset int
}

// NewEntityShaper returns the materializer for the source h of the given
// entity type, whose columns start at offset.
func NewEntityShaper(h source.Handle, name string, entity *model.EntityType, offset int) *EntityShaper {
	return &EntityShaper{Source: h, Name: name, Entity: entity, Offset: offset}
}

// Width returns the number of columns the entity occupies.
func (s *EntityShaper) Width() int {
	return len(s.Entity.Properties)
}

// Shape builds the entity object. A row whose key columns are all null
// (the unmatched side of a left join) shapes to null.
func (s *EntityShaper) Shape(qc *QueryContext, row ValueBuffer) (ir.IRValue, error) {
	if s.Offset+s.Width() > len(row) {
		return nil, fmt.Errorf("%s: columns %d..%d out of range (row width %d)",
			s.Name, s.Offset, s.Offset+s.Width()-1, len(row))
	}

	keyIdx := s.Entity.KeyIndexes()
	key := make(ir.IRArray, len(keyIdx))
	allNull := true
	for i, idx := range keyIdx {
		key[i] = row.At(s.Offset + idx)
		if !ir.IsNull(key[i]) {
			allNull = false
		}
	}
	if allNull {
		return ir.Null, nil
	}

	obj := make(ir.IRObject, len(s.Entity.Properties))
	for i, p := range s.Entity.Properties {
		v, err := decodeColumn(row.At(s.Offset+i), p.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", s.Name, p.Name, err)
		}
		obj[p.Name] = v
	}

	if qc == nil || qc.Tracker == nil {
		return obj, nil
	}
	return qc.Tracker.Resolve(s.Entity.Name, key, obj)
}

// IsShaperForSource reports whether h is this shaper's source.
func (s *EntityShaper) IsShaperForSource(h source.Handle) bool {
	return s.Source.Same(h)
}

// SaveAccessorExpression records the source accessor and one column per
// property.
func (s *EntityShaper) SaveAccessorExpression(m *SourceMapping) error {
	if err := m.SetAccessor(s.Source, s.AccessorExpression(s.Source)); err != nil {
		return err
	}
	for i, p := range s.Entity.Properties {
		c := Column{Index: s.Offset + i, Type: p.Type}
		if err := m.SetColumn(s.Source, p.Name, c); err != nil {
			return err
		}
	}
	return nil
}

// AccessorExpression returns a reference to the materialized source.
func (s *EntityShaper) AccessorExpression(h source.Handle) expr.Node {
	if !s.IsShaperForSource(h) {
		return nil
	}
	return expr.Ref(s.Source, s.Name)
}
