package queryir

import (
	"fmt"

	"github.com/roach88/shapeq/internal/ir"
)

// ValidationResult contains the portability analysis of a query.
type ValidationResult struct {
	// IsPortable is true when the query uses only features every backend
	// supports: inner joins, non-null comparisons, explicit columns.
	IsPortable bool

	// Warnings lists the non-portable features used. Empty when IsPortable.
	Warnings []string

	// Errors lists structural problems: duplicate aliases, references to
	// aliases not in scope, missing columns. A query with errors must not
	// be executed.
	Errors []string
}

// Valid reports whether the query has no structural errors.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks q's structure and portability. It is a pure function.
func Validate(q Query) ValidationResult {
	v := &validator{
		warnings: []string{},
		aliases:  make(map[string]bool),
	}
	v.validateQuery(q)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
		Errors:     v.errors,
	}
}

type validator struct {
	warnings []string
	errors   []string
	aliases  map[string]bool // aliases in scope so far
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addError("nil query")
		return
	}

	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	case Join:
		v.validateJoin(query)
	case *Join:
		v.validateJoin(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.validateTable(sel.From)
	v.validatePredicate(sel.Filter)
}

func (v *validator) validateTable(t Table) {
	if t.Name == "" {
		v.addError("table name is required")
	}
	if t.Alias == "" {
		v.addError("table %s: alias is required", t.Name)
	} else if v.aliases[t.Alias] {
		v.addError("duplicate alias %s", t.Alias)
	}
	v.aliases[t.Alias] = true

	if len(t.Columns) == 0 {
		v.addWarning("table %s selects no columns", t.Alias)
	}
}

func (v *validator) validateJoin(join Join) {
	v.validateQuery(join.Left)

	switch join.Kind {
	case "", JoinInner:
	case JoinLeft:
		v.addWarning("left join on %s - outer joins are not portable", join.Right.From.Alias)
	default:
		v.addError("unknown join kind %q", join.Kind)
	}

	v.validateSelect(join.Right)
	if join.On == nil {
		v.addWarning("join on %s has no condition (cross join)", join.Right.From.Alias)
	}
	v.validatePredicate(join.On)
}

func (v *validator) validatePredicate(p Predicate) {
	if p == nil {
		return
	}

	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case BoundEquals:
		v.validateColumn(pred.Column)
		if pred.Param == "" {
			v.addError("bound parameter name is required")
		}
	case *BoundEquals:
		v.validatePredicate(*pred)
	case ColumnEquals:
		v.validateColumn(pred.Left)
		v.validateColumn(pred.Right)
	case *ColumnEquals:
		v.validatePredicate(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.validateColumn(eq.Column)
	if ir.IsNull(eq.Value) {
		v.addWarning("column %s.%s compared to NULL - not portable", eq.Column.Alias, eq.Column.Column)
	}
}

func (v *validator) validateColumn(c ColumnRef) {
	if !v.aliases[c.Alias] {
		v.addError("column %s.%s references an alias not in scope", c.Alias, c.Column)
	}
	if c.Column == "" {
		v.addError("column name is required (alias %s)", c.Alias)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
