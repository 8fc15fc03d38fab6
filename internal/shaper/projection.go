package shaper

import (
	"fmt"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

// Field is one named output of a projection. Exactly one of Column and
// Expr is set: a column field reads its slot directly, an expression field
// is evaluated over the row's materialized sources.
type Field struct {
	Name   string
	Column *ValueShaper
	Expr   expr.Node
}

// ProjectionShaper shapes a row into an object of named fields.
type ProjectionShaper struct {
	Fields []Field
	Env    *BindingShaper // Required when any field is an expression
}

// NewProjectionShaper checks that every field is well formed.
func NewProjectionShaper(env *BindingShaper, fields ...Field) (*ProjectionShaper, error) {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("projection field has no name")
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate projection field %q", f.Name)
		}
		seen[f.Name] = true

		if (f.Column == nil) == (f.Expr == nil) {
			return nil, fmt.Errorf("field %q: exactly one of column or expression required", f.Name)
		}
		if f.Expr != nil && env == nil {
			return nil, fmt.Errorf("field %q: expression field without source bindings", f.Name)
		}
	}
	return &ProjectionShaper{Fields: fields, Env: env}, nil
}

// Shape builds the output object. Sources are materialized at most once
// per row, and only when an expression field needs them.
func (p *ProjectionShaper) Shape(qc *QueryContext, row ValueBuffer) (ir.IRValue, error) {
	out := make(ir.IRObject, len(p.Fields))
	var env expr.Bindings

	for _, f := range p.Fields {
		if f.Column != nil {
			v, err := f.Column.Shape(qc, row)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			out[f.Name] = v
			continue
		}

		if env == nil {
			var err error
			if env, err = p.Env.Shape(qc, row); err != nil {
				return nil, err
			}
		}
		v, err := expr.Eval(f.Expr, env)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

// IsShaperForSource reports whether the projection's bindings
// materialize h.
func (p *ProjectionShaper) IsShaperForSource(h source.Handle) bool {
	return p.Env != nil && p.Env.IsShaperForSource(h)
}

// SaveAccessorExpression records the accessors of the bound sources.
func (p *ProjectionShaper) SaveAccessorExpression(m *SourceMapping) error {
	if p.Env == nil {
		return nil
	}
	return p.Env.SaveAccessorExpression(m)
}

// AccessorExpression delegates to the bindings.
func (p *ProjectionShaper) AccessorExpression(h source.Handle) expr.Node {
	if p.Env == nil {
		return nil
	}
	return p.Env.AccessorExpression(h)
}
