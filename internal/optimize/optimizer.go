package optimize

import (
	"context"
	"log/slog"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/source"
)

// RewriteKind names the rule that produced a rewrite.
type RewriteKind string

const (
	RewriteCoalesce        RewriteKind = "coalesce"
	RewriteNullPropagation RewriteKind = "null_propagation"
)

// Rewrite records one replaced node.
type Rewrite struct {
	Kind   RewriteKind
	Before expr.Node
	After  expr.Node
}

// Report is the result of OptimizeReport.
type Report struct {
	Tree     expr.Node
	Rewrites []Rewrite
}

// Changed reports whether any rewrite was applied.
func (r Report) Changed() bool {
	return len(r.Rewrites) > 0
}

// KeyResolver reports whether a property is part of an entity's primary key.
// Implemented by *model.Model.
type KeyResolver interface {
	IsPrimaryKey(entity, property string) bool
}

// keyGuards resolves the entity of a source handle for primary-key checks.
// A nil *keyGuards never widens.
type keyGuards struct {
	registry *source.Registry
	keys     KeyResolver
}

func (k *keyGuards) isPrimaryKey(h source.Handle, property string) bool {
	if k == nil {
		return false
	}
	src, ok := k.registry.Lookup(h)
	if !ok || src.Entity == "" {
		return false
	}
	return k.keys.IsPrimaryKey(src.Entity, property)
}

// Optimizer applies the conditional rewrites described in the package doc.
type Optimizer struct {
	logger *slog.Logger
	keys   *keyGuards
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger used for Debug-level rewrite traces.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) {
		o.logger = l
	}
}

// WithPrimaryKeyGuards treats a guard on a primary-key property as a guard
// on the whole source: c.Id == null ? null : c.Name becomes c.Id ?. c.Name.
//
// Off by default. A row whose key is null is a missing row, so the widened
// rule holds for entities loaded from a store, but not for arbitrary
// in-memory objects whose key may be unset.
func WithPrimaryKeyGuards(reg *source.Registry, keys KeyResolver) Option {
	return func(o *Optimizer) {
		if reg == nil || keys == nil {
			o.keys = nil
			return
		}
		o.keys = &keyGuards{registry: reg, keys: keys}
	}
}

// New returns an Optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize returns the rewritten tree. The input is not modified; when
// nothing matches, the same root is returned.
func (o *Optimizer) Optimize(n expr.Node) expr.Node {
	return o.OptimizeReport(n).Tree
}

// OptimizeReport is Optimize plus the list of applied rewrites, innermost
// first.
func (o *Optimizer) OptimizeReport(n expr.Node) Report {
	var rewrites []Rewrite
	tree := expr.Rewrite(n, func(n expr.Node) expr.Node {
		c, ok := n.(*expr.Conditional)
		if !ok {
			return n
		}
		out, kind, ok := o.rewriteConditional(c)
		if !ok {
			return n
		}
		rewrites = append(rewrites, Rewrite{Kind: kind, Before: c, After: out})
		if o.logger.Enabled(context.Background(), slog.LevelDebug) {
			o.logger.Debug("rewrite",
				"kind", kind,
				"before", expr.Format(c),
				"after", expr.Format(out),
			)
		}
		return out
	})
	return Report{Tree: tree, Rewrites: rewrites}
}

func (o *Optimizer) rewriteConditional(c *expr.Conditional) (expr.Node, RewriteKind, bool) {
	if out, ok := MatchCoalesce(c); ok {
		return out, RewriteCoalesce, true
	}

	test, result, ok := NullPropagationCandidate(c)
	if !ok || !canRemoveNullCheck(test, result, o.keys) {
		return nil, "", false
	}
	return expr.NewNullConditional(test, test, result), RewriteNullPropagation, true
}
