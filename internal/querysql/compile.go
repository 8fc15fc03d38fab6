package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/queryir"
)

// BoundParam is a placeholder in compiled params for a value supplied at
// execution time. Resolve replaces it.
type BoundParam string

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every query ends with ORDER BY over the key columns of each table, so row
// order is deterministic. Values are always passed as parameters, never
// interpolated.
type SQLCompiler struct {
	// BoundValues holds values for BoundEquals parameters known at compile
	// time. Parameters not found here compile to a BoundParam placeholder.
	BoundValues map[string]any
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		BoundValues: make(map[string]any),
	}
}

// Compile converts a query to SQL and its positional parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if q == nil {
		return "", nil, fmt.Errorf("cannot compile nil query")
	}
	if res := queryir.Validate(q); !res.Valid() {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Errors, "; "))
	}

	var columns []string
	for _, t := range queryir.Tables(q) {
		for _, col := range t.Columns {
			columns = append(columns, qualify(t.Alias, col))
		}
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("query selects no columns")
	}

	from, fromParams, where, whereParams, err := c.compileFrom(q)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(from)
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(stableOrderKey(q))

	// Parameters follow SQL text order: every ON condition precedes WHERE.
	params := append(fromParams, whereParams...)
	return b.String(), params, nil
}

// compileFrom returns the FROM clause with its parameters, and the WHERE
// condition of the left-most Select with its parameters.
func (c *SQLCompiler) compileFrom(q queryir.Query) (string, []any, string, []any, error) {
	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Join:
		return c.compileJoin(query)
	case *queryir.Join:
		return c.compileJoin(*query)
	default:
		return "", nil, "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(sel queryir.Select) (string, []any, string, []any, error) {
	from := tableRef(sel.From)
	if sel.Filter == nil {
		return from, nil, "", nil, nil
	}
	where, params, err := c.compilePredicate(sel.Filter)
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return from, nil, where, params, nil
}

// compileJoin appends the joined table. The right side's filter is part of
// the ON condition.
func (c *SQLCompiler) compileJoin(j queryir.Join) (string, []any, string, []any, error) {
	from, fromParams, where, whereParams, err := c.compileFrom(j.Left)
	if err != nil {
		return "", nil, "", nil, err
	}

	var conds []queryir.Predicate
	if j.On != nil {
		conds = append(conds, j.On)
	}
	if j.Right.Filter != nil {
		conds = append(conds, j.Right.Filter)
	}
	on, onParams, err := c.compilePredicate(queryir.And{Predicates: conds})
	if err != nil {
		return "", nil, "", nil, fmt.Errorf("compile join on %s: %w", j.Right.From.Alias, err)
	}

	keyword := "INNER JOIN"
	if j.Kind == queryir.JoinLeft {
		keyword = "LEFT JOIN"
	}

	from = fmt.Sprintf("%s %s %s ON %s", from, keyword, tableRef(j.Right.From), on)
	return from, append(fromParams, onParams...), where, whereParams, nil
}

// stableOrderKey orders by each table's key columns in row order.
// COLLATE BINARY keeps text ordering identical across SQLite builds.
func stableOrderKey(q queryir.Query) string {
	var parts []string
	for _, t := range queryir.Tables(q) {
		keys := t.Key
		if len(keys) == 0 && len(t.Columns) > 0 {
			keys = t.Columns[:1]
		}
		for _, k := range keys {
			parts = append(parts, qualify(t.Alias, k)+" COLLATE BINARY ASC")
		}
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	if p == nil {
		return "1 = 1", nil, nil
	}

	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.BoundEquals:
		return c.compileBoundEquals(pred)
	case *queryir.BoundEquals:
		return c.compileBoundEquals(*pred)
	case queryir.ColumnEquals:
		return fmt.Sprintf("%s = %s", column(pred.Left), column(pred.Right)), nil, nil
	case *queryir.ColumnEquals:
		return c.compilePredicate(*pred)
	case queryir.And:
		return c.compileAnd(pred)
	case *queryir.And:
		return c.compileAnd(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	if ir.IsNull(eq.Value) {
		return column(eq.Column) + " IS NULL", nil, nil
	}
	param, err := ToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return column(eq.Column) + " = ?", []any{param}, nil
}

func (c *SQLCompiler) compileBoundEquals(beq queryir.BoundEquals) (string, []any, error) {
	if val, ok := c.BoundValues[beq.Param]; ok {
		return column(beq.Column) + " = ?", []any{val}, nil
	}
	return column(beq.Column) + " = ?", []any{BoundParam(beq.Param)}, nil
}

func (c *SQLCompiler) compileAnd(and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var params []any
	for _, pred := range and.Predicates {
		sql, p, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, p...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

// Resolve returns params with every BoundParam replaced by its value.
func Resolve(params []any, values map[string]ir.IRValue) ([]any, error) {
	out := make([]any, len(params))
	for i, p := range params {
		name, ok := p.(BoundParam)
		if !ok {
			out[i] = p
			continue
		}
		v, ok := values[string(name)]
		if !ok {
			return nil, fmt.Errorf("missing value for parameter %q", string(name))
		}
		param, err := ToParam(v)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", string(name), err)
		}
		out[i] = param
	}
	return out, nil
}

// ToParam converts an IRValue to a database/sql argument.
// Booleans are stored as 0/1.
func ToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRArray:
		return nil, fmt.Errorf("IRArray cannot be used as SQL parameter directly")
	case ir.IRObject:
		return nil, fmt.Errorf("IRObject cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}

func tableRef(t queryir.Table) string {
	return quote(t.Name) + " AS " + quote(t.Alias)
}

func column(c queryir.ColumnRef) string {
	return qualify(c.Alias, c.Column)
}

func qualify(alias, col string) string {
	return quote(alias) + "." + quote(col)
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
