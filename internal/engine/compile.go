package engine

import (
	"fmt"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
	"github.com/roach88/shapeq/internal/optimize"
	"github.com/roach88/shapeq/internal/queryir"
	"github.com/roach88/shapeq/internal/querysql"
	"github.com/roach88/shapeq/internal/shaper"
	"github.com/roach88/shapeq/internal/source"
)

// Plan is a compiled, immutable query.
type Plan struct {
	ID       string             // Content hash of the query
	SQL      string             // Compiled SELECT
	Params   []any              // Positional params; querysql.BoundParam for execution-time values
	Columns  int                // Row width
	Fields   []string           // Output field names, in select order
	Rewrites []optimize.Rewrite // Rewrites applied to the projections

	shaper  *shaper.ProjectionShaper
	mapping *shaper.SourceMapping
}

// Mapping returns the plan's sealed accessor mapping.
func (p *Plan) Mapping() *shaper.SourceMapping {
	return p.mapping
}

// scopeEntry is one validated source of a query.
type scopeEntry struct {
	handle source.Handle
	source source.Source
	entity *model.EntityType
	table  queryir.Table
}

// compilation holds the state of one Compile call.
type compilation struct {
	q      Query
	model  *model.Model
	scope  []scopeEntry
	byHdl  map[source.Handle]int
	planID string
}

func (c *compilation) entry(h source.Handle) (*scopeEntry, bool) {
	i, ok := c.byHdl[h]
	if !ok {
		return nil, false
	}
	return &c.scope[i], true
}

// resolveSources checks every source of the query and assigns aliases and
// tables in row order.
func (c *compilation) resolveSources() error {
	if c.q.Registry == nil {
		return invalidQuery("query has no source registry")
	}

	names := make(map[string]bool)
	c.byHdl = make(map[source.Handle]int)
	for i, h := range c.q.sources() {
		src, ok := c.q.Registry.Lookup(h)
		if !ok {
			return &QueryError{Code: ErrCodeUnknownSource, Message: fmt.Sprintf("source %s is not declared", h)}
		}
		if _, dup := c.byHdl[h]; dup {
			return invalidQuery("source %q appears twice", src.Name)
		}
		if names[src.Name] {
			return invalidQuery("source name %q is not unique", src.Name)
		}
		names[src.Name] = true

		switch {
		case i == 0 && src.Clause != source.ClauseFrom:
			return invalidQuery("root source %q must be a from clause, got %s", src.Name, src.Clause)
		case i > 0 && src.Clause != source.ClauseJoin && src.Clause != source.ClauseLeftJoin:
			return invalidQuery("joined source %q must be a join clause, got %s", src.Name, src.Clause)
		}

		et, ok := c.model.Entity(src.Entity)
		if !ok {
			return &QueryError{
				Code:    ErrCodeUnknownEntity,
				Message: fmt.Sprintf("source %q ranges over unknown entity %q", src.Name, src.Entity),
				Details: map[string]string{"source": src.Name, "entity": src.Entity},
			}
		}

		c.byHdl[h] = len(c.scope)
		c.scope = append(c.scope, scopeEntry{
			handle: h,
			source: src,
			entity: et,
			table:  tableFor(et, fmt.Sprintf("t%d", i)),
		})
	}
	return nil
}

func tableFor(et *model.EntityType, alias string) queryir.Table {
	t := queryir.Table{Name: et.Table, Alias: alias}
	for _, p := range et.Properties {
		t.Columns = append(t.Columns, p.Column)
	}
	for _, k := range et.Key {
		p, _ := et.Property(k)
		t.Key = append(t.Key, p.Column)
	}
	return t
}

// column resolves a source property to its aliased column.
func (c *compilation) column(h source.Handle, property string) (queryir.ColumnRef, error) {
	e, ok := c.entry(h)
	if !ok {
		return queryir.ColumnRef{}, &QueryError{Code: ErrCodeUnknownSource, Message: fmt.Sprintf("source %s is not in scope", h)}
	}
	p, ok := e.entity.Property(property)
	if !ok {
		return queryir.ColumnRef{}, invalidQuery("%s has no property %q", e.entity.Name, property)
	}
	return e.table.Column(p.Column), nil
}

// checkProjections validates the select list: names are unique and every
// source reference is in scope.
func (c *compilation) checkProjections() error {
	if len(c.q.Select) == 0 {
		return invalidQuery("query selects nothing")
	}
	seen := make(map[string]bool)
	for _, p := range c.q.Select {
		if p.Name == "" {
			return invalidQuery("projection has no name")
		}
		if seen[p.Name] {
			return invalidQuery("duplicate projection %q", p.Name)
		}
		seen[p.Name] = true
		if p.Expr == nil {
			return invalidQuery("projection %q has no expression", p.Name)
		}

		var unknown *expr.SourceRef
		expr.Walk(p.Expr, func(n expr.Node) bool {
			if ref, ok := n.(*expr.SourceRef); ok && unknown == nil {
				if _, in := c.byHdl[ref.Source]; !in {
					unknown = ref
				}
			}
			return unknown == nil
		})
		if unknown != nil {
			return &QueryError{
				Code:    ErrCodeUnknownSource,
				Message: fmt.Sprintf("projection %q references source %q that is not in scope", p.Name, unknown.Name),
			}
		}
	}
	return nil
}

// deriveQuery builds the QueryIR select/join chain.
func (c *compilation) deriveQuery() (queryir.Query, error) {
	filters := make(map[source.Handle][]queryir.Predicate)
	for _, f := range c.q.Filters {
		col, err := c.column(f.Source, f.Property)
		if err != nil {
			return nil, err
		}
		var pred queryir.Predicate
		if f.Param != "" {
			pred = queryir.BoundEquals{Column: col, Param: f.Param}
		} else {
			v := f.Value
			if v == nil {
				v = ir.Null
			}
			pred = queryir.Equals{Column: col, Value: v}
		}
		filters[f.Source] = append(filters[f.Source], pred)
	}

	selectFor := func(e *scopeEntry) queryir.Select {
		sel := queryir.Select{From: e.table}
		switch preds := filters[e.handle]; len(preds) {
		case 0:
		case 1:
			sel.Filter = preds[0]
		default:
			sel.Filter = queryir.And{Predicates: preds}
		}
		return sel
	}

	var q queryir.Query = selectFor(&c.scope[0])
	inScope := map[source.Handle]bool{c.scope[0].handle: true}

	for _, j := range c.q.Joins {
		if !inScope[j.Left] {
			return nil, invalidQuery("join on %s: left source is not in scope yet", j.Source)
		}
		left, err := c.column(j.Left, j.LeftProperty)
		if err != nil {
			return nil, err
		}
		right, err := c.column(j.Source, j.Property)
		if err != nil {
			return nil, err
		}

		e, _ := c.entry(j.Source)
		kind := queryir.JoinInner
		if e.source.Clause == source.ClauseLeftJoin {
			kind = queryir.JoinLeft
		}
		q = queryir.Join{
			Left:  q,
			Right: selectFor(e),
			Kind:  kind,
			On:    queryir.ColumnEquals{Left: left, Right: right},
		}
		inScope[j.Source] = true
	}
	return q, nil
}

// buildShapers builds one entity shaper per source, records their
// accessors, and turns each projection into a column read or an evaluated
// expression.
func (c *compilation) buildShapers(projections []expr.Node) (*shaper.ProjectionShaper, *shaper.SourceMapping, error) {
	handles := make([]source.Handle, 0, len(c.scope))
	children := make([]shaper.Shaper[ir.IRValue], 0, len(c.scope))
	offset := 0
	for i := range c.scope {
		e := &c.scope[i]
		s := shaper.NewEntityShaper(e.handle, e.source.Name, e.entity, offset)
		handles = append(handles, e.handle)
		children = append(children, s)
		offset += s.Width()
	}

	env, err := shaper.NewBindingShaper(handles, children...)
	if err != nil {
		return nil, nil, err
	}
	mapping := shaper.NewSourceMapping()
	if err := env.SaveAccessorExpression(mapping); err != nil {
		return nil, nil, err
	}

	fields := make([]shaper.Field, len(projections))
	for i, n := range projections {
		fields[i] = shaper.Field{Name: c.q.Select[i].Name}
		if col, ok := c.directColumn(n, mapping); ok {
			fields[i].Column = &shaper.ValueShaper{Column: col}
		} else {
			fields[i].Expr = n
		}
	}

	p, err := shaper.NewProjectionShaper(env, fields...)
	if err != nil {
		return nil, nil, err
	}
	mapping.Seal()
	return p, mapping, nil
}

// directColumn reports whether n reads exactly one column of a source:
//
//	x.P                     x is never null (from or inner join)
//	x ?. x.P                x may be null; its columns are then null too
func (c *compilation) directColumn(n expr.Node, m *shaper.SourceMapping) (shaper.Column, bool) {
	if nc, ok := n.(*expr.NullConditional); ok {
		guard, ok := expr.StripConvert(nc.Guard).(*expr.SourceRef)
		if !ok {
			return shaper.Column{}, false
		}
		ref, prop, ok := memberOfSource(nc.Result)
		if !ok || !ref.Source.Same(guard.Source) {
			return shaper.Column{}, false
		}
		return materializedColumn(m, ref, prop)
	}

	ref, prop, ok := memberOfSource(n)
	if !ok {
		return shaper.Column{}, false
	}
	e, ok := c.entry(ref.Source)
	if !ok || e.source.Clause == source.ClauseLeftJoin {
		return shaper.Column{}, false
	}
	return materializedColumn(m, ref, prop)
}

// materializedColumn returns the column of ref.prop when the mapping holds
// an accessor for ref's source, meaning a shaper of this plan materializes
// it from the row.
func materializedColumn(m *shaper.SourceMapping, ref *expr.SourceRef, prop string) (shaper.Column, bool) {
	acc, ok := m.Accessor(ref.Source)
	if !ok {
		return shaper.Column{}, false
	}
	if r, isRef := acc.(*expr.SourceRef); !isRef || !r.Source.Same(ref.Source) {
		return shaper.Column{}, false
	}
	return m.Column(ref.Source, prop)
}

// memberOfSource matches ref.P and the property-lookup idiom on a source.
func memberOfSource(n expr.Node) (*expr.SourceRef, string, bool) {
	var recv expr.Node
	var name string
	if m, ok := n.(*expr.MemberAccess); ok {
		recv, name = m.Receiver, m.Name
	} else if r, p, ok := expr.PropertyLookup(n); ok {
		recv, name = r, p
	} else {
		return nil, "", false
	}
	ref, ok := recv.(*expr.SourceRef)
	return ref, name, ok
}

// compileSQL renders the derived query.
func compileSQL(q queryir.Query) (string, []any, error) {
	sql, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return "", nil, invalidQuery("%v", err)
	}
	return sql, params, nil
}
