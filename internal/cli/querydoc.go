package cli

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeq/internal/engine"
	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

// QueryDocument is the YAML form of a query:
//
//	sources:
//	  - {name: o, entity: Order}
//	  - {name: c, entity: Customer, clause: left_join, on: {left: o.CustomerId, property: Id}}
//	where:
//	  - {path: o.Id, param: id}
//	select:
//	  - {name: id, expr: {path: o.Id}}
//	  - {name: customer, expr: {cond: {test: {eq: [{ref: c}, null]}, then: null, else: {path: c.Name}}}}
//	params:
//	  id: 10
//
// The first source is the root and must use the from clause. Every other
// source needs an on condition naming a property of an earlier source.
type QueryDocument struct {
	Sources []QuerySource  `yaml:"sources"`
	Where   []QueryFilter  `yaml:"where"`
	Select  []QueryField   `yaml:"select"`
	Params  map[string]any `yaml:"params"`
}

// QuerySource declares a source and, for joins, its join condition.
type QuerySource struct {
	expr.SourceDecl `yaml:",inline"`
	On              *JoinOn `yaml:"on"`
}

// JoinOn joins a source on Left (a source.Property path) equal to its own
// Property.
type JoinOn struct {
	Left     string `yaml:"left"`
	Property string `yaml:"property"`
}

// QueryFilter compares a source property with a constant or a parameter.
type QueryFilter struct {
	Path  string `yaml:"path"`
	Value any    `yaml:"value"`
	Param string `yaml:"param"`
}

// QueryField is one named projection.
type QueryField struct {
	Name string `yaml:"name"`
	Expr any    `yaml:"expr"`
}

// ParseQueryDocument decodes a query document, declaring its sources in a
// fresh registry. It returns the query and the document's default params.
func ParseQueryDocument(data []byte) (engine.Query, map[string]ir.IRValue, error) {
	var doc QueryDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return engine.Query{}, nil, fmt.Errorf("parse query document: %w", err)
	}
	if len(doc.Sources) == 0 {
		return engine.Query{}, nil, fmt.Errorf("query document has no sources")
	}

	decls := make([]expr.SourceDecl, len(doc.Sources))
	for i, s := range doc.Sources {
		decls[i] = s.SourceDecl
	}
	reg := source.NewRegistry()
	scope, err := expr.DeclareSources(reg, decls)
	if err != nil {
		return engine.Query{}, nil, err
	}

	q := engine.Query{Registry: reg, From: scope[doc.Sources[0].Name]}
	if doc.Sources[0].On != nil {
		return engine.Query{}, nil, fmt.Errorf("sources[0]: the root source has no join condition")
	}
	for i, s := range doc.Sources[1:] {
		if s.On == nil {
			return engine.Query{}, nil, fmt.Errorf("sources[%d]: on is required for a joined source", i+1)
		}
		left, leftProp, err := splitPath(s.On.Left, scope)
		if err != nil {
			return engine.Query{}, nil, fmt.Errorf("sources[%d].on: %w", i+1, err)
		}
		if s.On.Property == "" {
			return engine.Query{}, nil, fmt.Errorf("sources[%d].on: property is required", i+1)
		}
		q.Joins = append(q.Joins, engine.JoinClause{
			Source:       scope[s.Name],
			Property:     s.On.Property,
			Left:         left,
			LeftProperty: leftProp,
		})
	}

	for i, w := range doc.Where {
		h, prop, err := splitPath(w.Path, scope)
		if err != nil {
			return engine.Query{}, nil, fmt.Errorf("where[%d]: %w", i, err)
		}
		f := engine.Filter{Source: h, Property: prop, Param: w.Param}
		if w.Param == "" {
			v, err := ir.FromGo(w.Value)
			if err != nil {
				return engine.Query{}, nil, fmt.Errorf("where[%d]: %w", i, err)
			}
			f.Value = v
		}
		q.Filters = append(q.Filters, f)
	}

	for i, field := range doc.Select {
		if field.Expr == nil {
			return engine.Query{}, nil, fmt.Errorf("select[%d]: expr is required", i)
		}
		n, err := expr.Decode(field.Expr, scope)
		if err != nil {
			return engine.Query{}, nil, fmt.Errorf("select[%d]: %w", i, err)
		}
		q.Select = append(q.Select, engine.Projection{Name: field.Name, Expr: n})
	}

	params := make(map[string]ir.IRValue, len(doc.Params))
	for name, raw := range doc.Params {
		v, err := ir.FromGo(raw)
		if err != nil {
			return engine.Query{}, nil, fmt.Errorf("params.%s: %w", name, err)
		}
		params[name] = v
	}
	return q, params, nil
}

// splitPath resolves "name.Property" against scope.
func splitPath(path string, scope expr.Scope) (source.Handle, string, error) {
	name, prop, ok := strings.Cut(path, ".")
	if !ok || name == "" || prop == "" || strings.Contains(prop, ".") {
		return source.Handle{}, "", fmt.Errorf("path %q: want source.Property", path)
	}
	h, found := scope[name]
	if !found {
		return source.Handle{}, "", fmt.Errorf("path %q: unknown source %q", path, name)
	}
	return h, prop, nil
}

// ParseParam parses a --param flag of the form name=value. The value is
// read as YAML, so 10 is an int, true a bool and anything else a string.
func ParseParam(s string) (string, ir.IRValue, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("param %q: want name=value", s)
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return "", nil, fmt.Errorf("param %q: %w", name, err)
	}
	iv, err := ir.FromGo(v)
	if err != nil {
		return "", nil, fmt.Errorf("param %q: %w", name, err)
	}
	return name, iv, nil
}
