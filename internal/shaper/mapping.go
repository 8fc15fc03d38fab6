package shaper

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/source"
)

// ErrMappingSealed is returned when a sealed SourceMapping is written to.
var ErrMappingSealed = errors.New("source mapping is sealed")

// Column locates one property of a source in the row.
type Column struct {
	Index int
	Type  string // Model property type; see model.TypeString etc.
}

type columnKey struct {
	source   source.Handle
	property string
}

// SourceMapping is the write-once accessor cache of a compiled query.
//
// It is filled by SaveAccessorExpression while the query compiles, sealed,
// and only read afterwards. Each source and each (source, property) pair
// may be recorded once.
type SourceMapping struct {
	mu        sync.RWMutex
	sealed    bool
	accessors map[source.Handle]expr.Node
	columns   map[columnKey]Column
}

// NewSourceMapping returns an empty, unsealed mapping.
func NewSourceMapping() *SourceMapping {
	return &SourceMapping{
		accessors: make(map[source.Handle]expr.Node),
		columns:   make(map[columnKey]Column),
	}
}

// SetAccessor records the accessor expression for h.
func (m *SourceMapping) SetAccessor(h source.Handle, accessor expr.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return ErrMappingSealed
	}
	if _, dup := m.accessors[h]; dup {
		return fmt.Errorf("accessor for %s already recorded", h)
	}
	m.accessors[h] = accessor
	return nil
}

// SetColumn records the row slot of a source's property.
func (m *SourceMapping) SetColumn(h source.Handle, property string, c Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sealed {
		return ErrMappingSealed
	}
	key := columnKey{source: h, property: property}
	if _, dup := m.columns[key]; dup {
		return fmt.Errorf("column for %s.%s already recorded", h, property)
	}
	m.columns[key] = c
	return nil
}

// Seal makes the mapping read-only. Sealing twice is a no-op.
func (m *SourceMapping) Seal() {
	m.mu.Lock()
	m.sealed = true
	m.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (m *SourceMapping) Sealed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sealed
}

// Accessor returns the accessor expression recorded for h.
func (m *SourceMapping) Accessor(h source.Handle) (expr.Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.accessors[h]
	return n, ok
}

// Column returns the row slot recorded for h's property.
func (m *SourceMapping) Column(h source.Handle, property string) (Column, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.columns[columnKey{source: h, property: property}]
	return c, ok
}
