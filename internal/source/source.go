// Package source tracks the logical data sources of a query: range
// variables, joined entities and other clauses a sub-expression can refer to.
//
// Sources are compared by identity, never by structure. Two clauses that
// both range over "Customer" under the name "c" are still two different
// sources. A Handle is an arena index into the Registry that declared it,
// qualified by a process-unique registry id, so handles from different
// registries never compare equal either.
package source

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Clause describes how a source was introduced into the query.
type Clause string

const (
	// ClauseFrom is the root range variable of a query.
	ClauseFrom Clause = "from"

	// ClauseJoin is an inner-joined source.
	ClauseJoin Clause = "join"

	// ClauseLeftJoin is an outer-joined source; its entity may be null.
	ClauseLeftJoin Clause = "left_join"
)

// Source describes one declared logical source.
type Source struct {
	Name   string // Range variable name (display only)
	Entity string // Entity type name in the model
	Clause Clause
}

// Handle is an opaque, comparable reference to a declared source.
// The zero Handle refers to nothing.
type Handle struct {
	registry uint64
	index    uint32
}

// IsValid reports whether h was issued by a Registry.
func (h Handle) IsValid() bool {
	return h.registry != 0
}

// Same reports whether two handles denote the same originating clause.
func (h Handle) Same(other Handle) bool {
	return h.IsValid() && h == other
}

// String renders the handle for diagnostics, e.g. "src#3.1".
func (h Handle) String() string {
	if !h.IsValid() {
		return "src#invalid"
	}
	return fmt.Sprintf("src#%d.%d", h.registry, h.index)
}

var registryIDs atomic.Uint64

// Registry allocates handles for the sources of one query.
//
// Declare is safe for concurrent use, but in practice a registry is filled
// while a query is being built and only read afterwards.
type Registry struct {
	id uint64

	mu      sync.RWMutex
	sources []Source
}

// NewRegistry creates an empty registry with a process-unique id.
func NewRegistry() *Registry {
	return &Registry{id: registryIDs.Add(1)}
}

// Declare registers a new source and returns its handle.
// Declaring the same name twice yields two distinct handles.
func (r *Registry) Declare(name, entity string, clause Clause) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = append(r.sources, Source{Name: name, Entity: entity, Clause: clause})
	return Handle{registry: r.id, index: uint32(len(r.sources))}
}

// Lookup returns the source a handle refers to.
// Handles from other registries are not found.
func (r *Registry) Lookup(h Handle) (Source, bool) {
	if h.registry != r.id || h.index == 0 {
		return Source{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(h.index) > len(r.sources) {
		return Source{}, false
	}
	return r.sources[h.index-1], true
}

// Handles returns every declared handle in declaration order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]Handle, len(r.sources))
	for i := range r.sources {
		handles[i] = Handle{registry: r.id, index: uint32(i + 1)}
	}
	return handles
}

// Len returns the number of declared sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}
