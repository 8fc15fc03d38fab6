package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeq/internal/ir"
)

var (
	customers = Table{Name: "customers", Alias: "t0", Columns: []string{"id", "name"}, Key: []string{"id"}}
	orders    = Table{Name: "orders", Alias: "t1", Columns: []string{"id", "customer_id", "total"}, Key: []string{"id"}}
)

func TestValidate_PortableSelect(t *testing.T) {
	q := Select{
		From:   customers,
		Filter: Equals{Column: customers.Column("name"), Value: ir.IRString("Ada")},
	}

	result := Validate(q)

	assert.True(t, result.IsPortable)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidate_PointerTypes(t *testing.T) {
	q := &Join{
		Left:  &Select{From: customers},
		Right: Select{From: orders},
		On:    &ColumnEquals{Left: orders.Column("customer_id"), Right: customers.Column("id")},
	}

	result := Validate(q)

	assert.True(t, result.IsPortable)
	assert.True(t, result.Valid(), "%v", result.Errors)
}

func TestValidate_LeftJoinIsNotPortable(t *testing.T) {
	q := Join{
		Left:  Select{From: customers},
		Right: Select{From: orders},
		Kind:  JoinLeft,
		On:    ColumnEquals{Left: orders.Column("customer_id"), Right: customers.Column("id")},
	}

	result := Validate(q)

	assert.False(t, result.IsPortable)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "left join on t1")
}

func TestValidate_NullComparison(t *testing.T) {
	q := Select{
		From: customers,
		Filter: And{Predicates: []Predicate{
			BoundEquals{Column: customers.Column("id"), Param: "id"},
			Equals{Column: customers.Column("name"), Value: ir.Null},
		}},
	}

	result := Validate(q)

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "compared to NULL")
}

func TestValidate_StructuralErrors(t *testing.T) {
	dup := orders
	dup.Alias = "t0"

	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"nil", nil, "nil query"},
		{"duplicate alias", Join{Left: Select{From: customers}, Right: Select{From: dup}, On: And{}}, "duplicate alias t0"},
		{"alias out of scope", Select{From: customers, Filter: Equals{Column: orders.Column("id"), Value: ir.IRInt(1)}}, "not in scope"},
		{"missing param", Select{From: customers, Filter: BoundEquals{Column: customers.Column("id")}}, "parameter name is required"},
		{"unknown join kind", Join{Left: Select{From: customers}, Right: Select{From: orders}, Kind: "cross", On: And{}}, "unknown join kind"},
		{"no table name", Select{From: Table{Alias: "t9", Columns: []string{"x"}}}, "table name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.q)
			require.False(t, result.Valid())
			assert.Contains(t, result.Errors[0], tt.want)
		})
	}
}

func TestTablesAndWidth(t *testing.T) {
	third := Table{Name: "notes", Alias: "t2", Columns: []string{"id"}}
	q := Join{
		Left:  Join{Left: Select{From: customers}, Right: Select{From: orders}},
		Right: Select{From: third},
	}

	tables := Tables(q)
	require.Len(t, tables, 3)
	assert.Equal(t, []string{"t0", "t1", "t2"}, []string{tables[0].Alias, tables[1].Alias, tables[2].Alias})
	assert.Equal(t, 6, Width(q))
}
