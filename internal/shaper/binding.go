package shaper

import (
	"fmt"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

type binding struct {
	source source.Handle
	shaper Shaper[ir.IRValue]
}

// BindingShaper materializes a set of sources into an evaluation
// environment. Each source is shaped by exactly one child, once per row.
type BindingShaper struct {
	bindings []binding
}

// NewBindingShaper assigns each handle to the single child that
// materializes it.
func NewBindingShaper(handles []source.Handle, children ...Shaper[ir.IRValue]) (*BindingShaper, error) {
	b := &BindingShaper{bindings: make([]binding, 0, len(handles))}
	for _, h := range handles {
		var owner Shaper[ir.IRValue]
		for _, c := range children {
			if !c.IsShaperForSource(h) {
				continue
			}
			if owner != nil {
				return nil, fmt.Errorf("source %s has more than one shaper", h)
			}
			owner = c
		}
		if owner == nil {
			return nil, fmt.Errorf("no shaper for source %s", h)
		}
		b.bindings = append(b.bindings, binding{source: h, shaper: owner})
	}
	return b, nil
}

// Shape materializes every source of the row.
func (b *BindingShaper) Shape(qc *QueryContext, row ValueBuffer) (expr.Bindings, error) {
	env := make(expr.Bindings, len(b.bindings))
	for _, bd := range b.bindings {
		v, err := bd.shaper.Shape(qc, row)
		if err != nil {
			return nil, err
		}
		env[bd.source] = v
	}
	return env, nil
}

// IsShaperForSource reports whether some child materializes h.
func (b *BindingShaper) IsShaperForSource(h source.Handle) bool {
	for _, bd := range b.bindings {
		if bd.source.Same(h) {
			return true
		}
	}
	return false
}

// SaveAccessorExpression lets every child record its accessors.
func (b *BindingShaper) SaveAccessorExpression(m *SourceMapping) error {
	for _, bd := range b.bindings {
		if err := bd.shaper.SaveAccessorExpression(m); err != nil {
			return err
		}
	}
	return nil
}

// AccessorExpression delegates to the child that materializes h.
func (b *BindingShaper) AccessorExpression(h source.Handle) expr.Node {
	for _, bd := range b.bindings {
		if bd.source.Same(h) {
			return bd.shaper.AccessorExpression(h)
		}
	}
	return nil
}
