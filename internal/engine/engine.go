package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
	"github.com/roach88/shapeq/internal/optimize"
	"github.com/roach88/shapeq/internal/queryir"
	"github.com/roach88/shapeq/internal/querysql"
	"github.com/roach88/shapeq/internal/shaper"
	"github.com/roach88/shapeq/internal/store"
)

// Engine compiles and executes queries against one store and model.
//
// Thread-safety model:
//   - Compile(): safe from any goroutine; plans are cached under a mutex
//   - Execute(), Stream(), ExecuteAll(): safe from any goroutine; each
//     execution gets its own shaper.QueryContext
type Engine struct {
	store  *store.Store
	model  *model.Model
	logger *slog.Logger
	ids    IDGenerator

	pkGuards bool // Widen null-check removal to primary-key guards
	tracking bool // Identity resolution within an execution

	mu    sync.Mutex
	plans map[string]*Plan
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the execution id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithPrimaryKeyGuards lets the optimizer treat a null check on a
// primary-key property as a null check on the whole source.
func WithPrimaryKeyGuards() EngineOption {
	return func(e *Engine) {
		e.pkGuards = true
	}
}

// WithoutTracking disables identity resolution: entities with the same key
// in one result are materialized separately.
func WithoutTracking() EngineOption {
	return func(e *Engine) {
		e.tracking = false
	}
}

// New creates an Engine over an opened store and a model.
func New(s *store.Store, m *model.Model, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    s,
		model:    m,
		logger:   slog.Default(),
		ids:      UUIDv7Generator{},
		tracking: true,
		plans:    make(map[string]*Plan),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile validates q and compiles it into a plan, or returns the cached
// plan of an identical query.
func (e *Engine) Compile(q Query) (*Plan, error) {
	c := &compilation{q: q, model: e.model}
	if err := c.resolveSources(); err != nil {
		return nil, err
	}
	if err := c.checkProjections(); err != nil {
		return nil, err
	}

	id, err := ir.Hash(ir.DomainPlan, q.encode())
	if err != nil {
		return nil, invalidQuery("hash query: %v", err)
	}

	e.mu.Lock()
	cached, ok := e.plans[id]
	e.mu.Unlock()
	if ok {
		e.logger.Debug("plan cache hit", "plan_id", id)
		return cached, nil
	}

	plan, err := e.compile(c, id)
	if err != nil {
		var qe *QueryError
		if errors.As(err, &qe) && qe.PlanID == "" {
			qe.PlanID = id
		}
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.plans[id]; ok {
		return existing, nil
	}
	e.plans[id] = plan
	return plan, nil
}

func (e *Engine) compile(c *compilation, id string) (*Plan, error) {
	optOpts := []optimize.Option{optimize.WithLogger(e.logger)}
	if e.pkGuards {
		optOpts = append(optOpts, optimize.WithPrimaryKeyGuards(c.q.Registry, e.model))
	}
	opt := optimize.New(optOpts...)

	projections := make([]expr.Node, len(c.q.Select))
	var rewrites []optimize.Rewrite
	for i, p := range c.q.Select {
		report := opt.OptimizeReport(p.Expr)
		projections[i] = report.Tree
		rewrites = append(rewrites, report.Rewrites...)
	}

	derived, err := c.deriveQuery()
	if err != nil {
		return nil, err
	}
	sql, params, err := compileSQL(derived)
	if err != nil {
		return nil, err
	}

	shape, mapping, err := c.buildShapers(projections)
	if err != nil {
		return nil, invalidQuery("build shapers: %v", err)
	}

	fields := make([]string, len(c.q.Select))
	for i, p := range c.q.Select {
		fields[i] = p.Name
	}

	plan := &Plan{
		ID:       id,
		SQL:      sql,
		Params:   params,
		Columns:  queryir.Width(derived),
		Fields:   fields,
		Rewrites: rewrites,
		shaper:   shape,
		mapping:  mapping,
	}
	e.logger.Debug("plan compiled",
		"plan_id", id,
		"sql", sql,
		"columns", plan.Columns,
		"rewrites", len(rewrites),
	)
	return plan, nil
}

// PlanCount returns the number of cached plans.
func (e *Engine) PlanCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.plans)
}

// Stream executes plan and calls fn with each shaped row, in order.
//
// Cancellation is checked before each row; a cancelled execution returns a
// CANCELLED error and never shapes a partial row. An error from fn stops
// execution and is returned as is.
func (e *Engine) Stream(ctx context.Context, plan *Plan, params map[string]ir.IRValue, fn func(ir.IRValue) error) error {
	if plan == nil {
		return invalidQuery("nil plan")
	}
	args, err := querysql.Resolve(plan.Params, params)
	if err != nil {
		return &QueryError{Code: ErrCodeInvalidQuery, Message: "resolve parameters", PlanID: plan.ID, Err: err}
	}

	ctxOpts := []shaper.ContextOption{shaper.WithLogger(e.logger), shaper.WithParams(params)}
	if !e.tracking {
		ctxOpts = append(ctxOpts, shaper.WithoutTracking())
	}
	qc := shaper.NewQueryContext(ctx, e.ids.Generate(), ctxOpts...)

	var fnErr error
	rows := 0
	err = e.store.ForEachRow(ctx, plan.SQL, args, func(row []ir.IRValue) error {
		v, err := plan.shaper.Shape(qc, shaper.ValueBuffer(row))
		if err != nil {
			return &QueryError{
				Code:    ErrCodeShapeFailed,
				Message: fmt.Sprintf("shape row %d", rows),
				PlanID:  plan.ID,
				Err:     err,
			}
		}
		rows++
		if err := fn(v); err != nil {
			fnErr = err
			return err
		}
		return nil
	})

	switch {
	case err == nil:
	case fnErr != nil && errors.Is(err, fnErr):
		return fnErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		qc.Logger.Info("query cancelled", "plan_id", plan.ID, "rows", rows)
		return &QueryError{Code: ErrCodeCancelled, Message: "execution cancelled", PlanID: plan.ID, Err: err}
	default:
		var qe *QueryError
		if errors.As(err, &qe) {
			return qe
		}
		return &QueryError{Code: ErrCodeInvalidQuery, Message: "execute", PlanID: plan.ID, Err: err}
	}

	qc.Logger.Info("query executed", "plan_id", plan.ID, "rows", rows)
	return nil
}

// Execute runs plan and returns every shaped row.
func (e *Engine) Execute(ctx context.Context, plan *Plan, params map[string]ir.IRValue) ([]ir.IRValue, error) {
	var out []ir.IRValue
	err := e.Stream(ctx, plan, params, func(v ir.IRValue) error {
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Request is one execution in ExecuteAll.
type Request struct {
	Plan   *Plan
	Params map[string]ir.IRValue
}

// ExecuteAll runs independent executions concurrently. Results are in
// request order. The first failure cancels the others.
func (e *Engine) ExecuteAll(ctx context.Context, reqs []Request) ([][]ir.IRValue, error) {
	results := make([][]ir.IRValue, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			rows, err := e.Execute(gctx, r.Plan, r.Params)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
