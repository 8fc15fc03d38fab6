package queryir

import "github.com/roach88/shapeq/internal/ir"

// Query is a derived query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate is a filter or join condition.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Table is one aliased table access.
type Table struct {
	Name    string   // Table name
	Alias   string   // Alias used to qualify columns, unique per query
	Columns []string // Selected columns, in row order
	Key     []string // Key columns, for deterministic ordering
}

// Column returns a reference to one of t's columns.
func (t Table) Column(name string) ColumnRef {
	return ColumnRef{Alias: t.Alias, Column: name}
}

// Select reads rows from one table.
//
//	SELECT <columns> FROM <table> AS <alias> WHERE <filter>
type Select struct {
	From   Table
	Filter Predicate // nil = no filter
}

func (Select) queryNode() {}

// JoinKind selects inner or left outer join semantics.
type JoinKind string

const (
	JoinInner JoinKind = "inner"
	JoinLeft  JoinKind = "left"
)

// Join appends Right's table to the rows of Left.
//
//	<left> [LEFT] JOIN <right.table> ON <on> AND <right.filter>
//
// Right's filter belongs to the join condition, so a left join keeps left
// rows whose right side is filtered out; their right columns are NULL.
type Join struct {
	Left  Query    // Select or Join
	Right Select   // Joined table
	Kind  JoinKind // "" means inner
	On    Predicate
}

func (Join) queryNode() {}

// ColumnRef is an alias-qualified column.
type ColumnRef struct {
	Alias  string
	Column string
}

// Equals compares a column to a literal.
//
//	<column> = <value>
//
// An IRNull value compiles to IS NULL.
type Equals struct {
	Column ColumnRef
	Value  ir.IRValue
}

func (Equals) predicateNode() {}

// BoundEquals compares a column to a named parameter supplied at execution
// time.
type BoundEquals struct {
	Column ColumnRef
	Param  string
}

func (BoundEquals) predicateNode() {}

// ColumnEquals compares two columns, typically a join condition.
type ColumnEquals struct {
	Left  ColumnRef
	Right ColumnRef
}

func (ColumnEquals) predicateNode() {}

// And is a conjunction; an empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Tables returns the tables of q in row order.
func Tables(q Query) []Table {
	switch q := q.(type) {
	case Select:
		return []Table{q.From}
	case *Select:
		return []Table{q.From}
	case Join:
		return append(Tables(q.Left), q.Right.From)
	case *Join:
		return append(Tables(q.Left), q.Right.From)
	default:
		return nil
	}
}

// Width returns the number of columns in each row produced by q.
func Width(q Query) int {
	n := 0
	for _, t := range Tables(q) {
		n += len(t.Columns)
	}
	return n
}
