package engine

import (
	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/source"
)

// Query is a query over the model.
//
//	from <From>
//	[left] join <Joins[i].Source> on <Left>.<LeftProperty> == <Source>.<Property>
//	where <Filters...>
//	select { <Select[i].Name>: <Select[i].Expr>, ... }
//
// Every handle must be declared in Registry. The join kind follows the
// clause the source was declared with.
type Query struct {
	Registry *source.Registry
	From     source.Handle
	Joins    []JoinClause
	Filters  []Filter
	Select   []Projection
}

// JoinClause joins Source to a source already in scope.
type JoinClause struct {
	Source       source.Handle
	Property     string        // Property of Source
	Left         source.Handle // Source already in scope
	LeftProperty string        // Property of Left
}

// Filter restricts a source to rows whose property equals Value, or the
// execution-time parameter Param when set.
//
// A filter on a left-joined source is part of its join condition: rows of
// the other sources are kept and the joined source is null.
type Filter struct {
	Source   source.Handle
	Property string
	Value    ir.IRValue
	Param    string
}

// Projection is one named output of the query.
type Projection struct {
	Name string
	Expr expr.Node
}

// sources returns the query's handles in row order: From, then joins.
func (q Query) sources() []source.Handle {
	hs := make([]source.Handle, 0, 1+len(q.Joins))
	hs = append(hs, q.From)
	for _, j := range q.Joins {
		hs = append(hs, j.Source)
	}
	return hs
}

// encode returns the canonical form of the query used as the plan cache
// key. Sources, including references inside projections, are encoded by
// their registry name, which is unique within a query.
func (q Query) encode() ir.IRValue {
	names := make(map[source.Handle]string)
	srcs := make(ir.IRArray, 0, 1+len(q.Joins))
	for _, h := range q.sources() {
		s, _ := q.Registry.Lookup(h)
		names[h] = s.Name
		srcs = append(srcs, ir.IRObject{
			"name":   ir.IRString(s.Name),
			"entity": ir.IRString(s.Entity),
			"clause": ir.IRString(string(s.Clause)),
		})
	}

	joins := make(ir.IRArray, 0, len(q.Joins))
	for _, j := range q.Joins {
		joins = append(joins, ir.IRObject{
			"source":        ir.IRString(names[j.Source]),
			"property":      ir.IRString(j.Property),
			"left":          ir.IRString(names[j.Left]),
			"left_property": ir.IRString(j.LeftProperty),
		})
	}

	filters := make(ir.IRArray, 0, len(q.Filters))
	for _, f := range q.Filters {
		obj := ir.IRObject{
			"source":   ir.IRString(names[f.Source]),
			"property": ir.IRString(f.Property),
		}
		if f.Param != "" {
			obj["param"] = ir.IRString(f.Param)
		} else {
			v := f.Value
			if v == nil {
				v = ir.Null
			}
			obj["value"] = v
		}
		filters = append(filters, obj)
	}

	sel := make(ir.IRArray, 0, len(q.Select))
	for _, p := range q.Select {
		sel = append(sel, ir.IRObject{
			"name": ir.IRString(p.Name),
			"expr": expr.EncodeSources(p.Expr, names),
		})
	}

	return ir.IRObject{
		"sources": srcs,
		"joins":   joins,
		"filters": filters,
		"select":  sel,
	}
}
