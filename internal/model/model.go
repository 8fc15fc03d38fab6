// Package model is the metadata layer: entity types, their properties and
// primary keys, and how they map onto store tables.
//
// Models are written in CUE (see Compile) and are immutable once built.
package model

import (
	"fmt"
	"sort"
)

// Property types. Values of these kinds flow through rows as ir.IRString,
// ir.IRInt and ir.IRBool.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
)

// Property is one mapped property of an entity type.
type Property struct {
	Name     string
	Type     string
	Column   string
	Nullable bool
}

// EntityType describes one entity and its table.
type EntityType struct {
	Name       string
	Table      string
	Properties []Property // Declaration order; this is the column order
	Key        []string   // Property names, in key order
}

// Property returns the property with the given name.
func (e *EntityType) Property(name string) (Property, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// IsKey reports whether name is part of the primary key.
func (e *EntityType) IsKey(name string) bool {
	for _, k := range e.Key {
		if k == name {
			return true
		}
	}
	return false
}

// KeyIndexes returns the positions of the key properties in Properties.
func (e *EntityType) KeyIndexes() []int {
	idx := make([]int, 0, len(e.Key))
	for _, k := range e.Key {
		for i, p := range e.Properties {
			if p.Name == k {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

// Model is a set of entity types.
type Model struct {
	entities map[string]*EntityType
}

// New validates entity types and builds a Model.
func New(entities ...EntityType) (*Model, error) {
	m := &Model{entities: make(map[string]*EntityType, len(entities))}
	tables := make(map[string]string, len(entities))

	for i := range entities {
		e := entities[i]
		if err := validateEntity(&e); err != nil {
			return nil, err
		}
		if _, dup := m.entities[e.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", e.Name)
		}
		if other, dup := tables[e.Table]; dup {
			return nil, fmt.Errorf("entities %q and %q both map to table %q", other, e.Name, e.Table)
		}
		tables[e.Table] = e.Name
		m.entities[e.Name] = &e
	}
	return m, nil
}

func validateEntity(e *EntityType) error {
	if e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if e.Table == "" {
		return fmt.Errorf("entity %s: table is required", e.Name)
	}
	if len(e.Properties) == 0 {
		return fmt.Errorf("entity %s: at least one property is required", e.Name)
	}
	if len(e.Key) == 0 {
		return fmt.Errorf("entity %s: a primary key is required", e.Name)
	}

	names := make(map[string]bool, len(e.Properties))
	columns := make(map[string]bool, len(e.Properties))
	for _, p := range e.Properties {
		switch p.Type {
		case TypeString, TypeInt, TypeBool:
		default:
			return fmt.Errorf("entity %s: property %s: unsupported type %q", e.Name, p.Name, p.Type)
		}
		if names[p.Name] {
			return fmt.Errorf("entity %s: duplicate property %s", e.Name, p.Name)
		}
		if columns[p.Column] {
			return fmt.Errorf("entity %s: duplicate column %s", e.Name, p.Column)
		}
		names[p.Name] = true
		columns[p.Column] = true
	}

	for _, k := range e.Key {
		p, ok := e.Property(k)
		if !ok {
			return fmt.Errorf("entity %s: key property %s is not declared", e.Name, k)
		}
		if p.Nullable {
			return fmt.Errorf("entity %s: key property %s cannot be nullable", e.Name, k)
		}
	}
	return nil
}

// Entity returns the entity type with the given name.
func (m *Model) Entity(name string) (*EntityType, bool) {
	e, ok := m.entities[name]
	return e, ok
}

// Entities returns all entity types sorted by name.
func (m *Model) Entities() []*EntityType {
	out := make([]*EntityType, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsPrimaryKey reports whether property is part of entity's primary key.
// Unknown entities have no key.
func (m *Model) IsPrimaryKey(entity, property string) bool {
	e, ok := m.entities[entity]
	return ok && e.IsKey(property)
}
