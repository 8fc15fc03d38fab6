package shaper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/shapeq/internal/ir"
)

// QueryContext carries the per-execution state shapers need.
//
// One QueryContext is created per execution of a compiled query. It is not
// shared between executions, so two executions of the same plan never see
// each other's identity map.
type QueryContext struct {
	ID      string
	Context context.Context
	Logger  *slog.Logger
	Params  map[string]ir.IRValue
	Tracker *Tracker // nil disables identity resolution
}

// ContextOption configures a QueryContext.
type ContextOption func(*QueryContext)

// WithLogger sets the logger used while shaping.
func WithLogger(l *slog.Logger) ContextOption {
	return func(qc *QueryContext) {
		if l != nil {
			qc.Logger = l
		}
	}
}

// WithParams sets the bound parameter values of the execution.
func WithParams(p map[string]ir.IRValue) ContextOption {
	return func(qc *QueryContext) {
		qc.Params = p
	}
}

// WithoutTracking disables identity resolution: every row materializes
// fresh entity objects.
func WithoutTracking() ContextOption {
	return func(qc *QueryContext) {
		qc.Tracker = nil
	}
}

// NewQueryContext creates the context for one execution.
func NewQueryContext(ctx context.Context, id string, opts ...ContextOption) *QueryContext {
	if ctx == nil {
		ctx = context.Background()
	}
	qc := &QueryContext{
		ID:      id,
		Context: ctx,
		Logger:  slog.Default(),
		Tracker: NewTracker(),
	}
	for _, opt := range opts {
		opt(qc)
	}
	qc.Logger = qc.Logger.With("query_id", id)
	return qc
}

// Tracker is the identity map of one execution: an entity with a given
// key is materialized once and the same object is returned for every row
// that carries it.
type Tracker struct {
	mu      sync.Mutex
	objects map[string]ir.IRObject
}

// NewTracker returns an empty identity map.
func NewTracker() *Tracker {
	return &Tracker{objects: make(map[string]ir.IRObject)}
}

// Resolve returns the tracked object for (entity, key), or tracks and
// returns obj if none exists yet.
func (t *Tracker) Resolve(entity string, key ir.IRArray, obj ir.IRObject) (ir.IRObject, error) {
	k, err := identityKey(entity, key)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if tracked, ok := t.objects[k]; ok {
		return tracked, nil
	}
	t.objects[k] = obj
	return obj, nil
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.objects)
}

func identityKey(entity string, key ir.IRArray) (string, error) {
	data, err := ir.MarshalCanonical(key)
	if err != nil {
		return "", fmt.Errorf("identity key for %s: %w", entity, err)
	}
	return entity + "/" + string(data), nil
}
