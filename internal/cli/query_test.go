package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeq/internal/ir"
)

const ordersDoc = `sources:
  - {name: o, entity: Order}
  - {name: c, entity: Customer, clause: left_join, on: {left: o.CustomerId, property: Id}}
select:
  - {name: id, expr: {path: o.Id}}
  - name: customer
    expr:
      cond:
        test: {eq: [{ref: c}, null]}
        then: null
        else: {path: c.Name}
`

func TestQueryText(t *testing.T) {
	db := seedShop(t)
	doc := writeFile(t, t.TempDir(), "orders.yaml", ordersDoc)

	out, _, err := execute(t, "query", doc, "--model", shopModel, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, `{"customer":"Ada","id":10}
{"customer":"Grace","id":12}
{"customer":null,"id":13}
✓ 3 row(s)
`, out)
}

func TestQueryJSON(t *testing.T) {
	db := seedShop(t)
	doc := writeFile(t, t.TempDir(), "orders.yaml", ordersDoc)

	out, _, err := execute(t, "--format", "json", "query", doc, "--model", shopModel, "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		PlanID string `json:"plan_id"`
		Data   struct {
			SQL      string            `json:"sql"`
			Fields   []string          `json:"fields"`
			Rewrites []RewriteOutput   `json:"rewrites"`
			Rows     []json.RawMessage `json:"rows"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.PlanID)
	assert.Contains(t, resp.Data.SQL, "LEFT JOIN")
	assert.Equal(t, []string{"id", "customer"}, resp.Data.Fields)
	require.Len(t, resp.Data.Rewrites, 1)
	assert.Equal(t, "c ?. c.Name", resp.Data.Rewrites[0].After)
	require.Len(t, resp.Data.Rows, 3)
	assert.JSONEq(t, `{"id": 13, "customer": null}`, string(resp.Data.Rows[2]))
}

func TestQueryParams(t *testing.T) {
	db := seedShop(t)
	doc := writeFile(t, t.TempDir(), "one.yaml", ordersDoc+`where:
  - {path: o.Id, param: id}
params:
  id: 10
`)

	out, _, err := execute(t, "query", doc, "--model", shopModel, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `{"customer":"Ada","id":10}`)
	assert.Contains(t, out, "✓ 1 row(s)")

	out, _, err = execute(t, "query", doc, "--model", shopModel, "--db", db, "--param", "id=12")
	require.NoError(t, err)
	assert.Contains(t, out, `{"customer":"Grace","id":12}`)
	assert.Contains(t, out, "✓ 1 row(s)")
}

const vipDoc = `sources:
  - {name: c, entity: Customer}
where:
  - {path: c.Vip, value: true}
select:
  - {name: name, expr: {path: c.Name}}
`

func TestQueryMultipleDocuments(t *testing.T) {
	db := seedShop(t)
	dir := t.TempDir()
	orders := writeFile(t, dir, "orders.yaml", ordersDoc)
	vips := writeFile(t, dir, "vips.yaml", vipDoc)

	out, _, err := execute(t, "query", orders, vips, "--model", shopModel, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, orders+`:
{"customer":"Ada","id":10}
{"customer":"Grace","id":12}
{"customer":null,"id":13}
✓ 3 row(s)
`+vips+`:
{"name":"Grace"}
✓ 1 row(s)
`, out)

	out, _, err = execute(t, "--format", "json", "query", orders, vips, "--model", shopModel, "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []QueryOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, orders, resp.Data[0].Document)
	assert.Equal(t, vips, resp.Data[1].Document)
	assert.NotEqual(t, resp.Data[0].PlanID, resp.Data[1].PlanID)
	assert.Equal(t, []string{"name"}, resp.Data[1].Fields)
}

func TestQueryMultipleDocumentsFailure(t *testing.T) {
	db := seedShop(t)
	dir := t.TempDir()
	orders := writeFile(t, dir, "orders.yaml", ordersDoc)
	member := writeFile(t, dir, "member.yaml", `sources:
  - {name: o, entity: Order}
  - {name: c, entity: Customer, clause: left_join, on: {left: o.CustomerId, property: Id}}
select:
  - {name: name, expr: {path: c.Name}}
`)

	out, _, err := execute(t, "--format", "json", "query", orders, member, "--model", shopModel, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeShapeFailed, resp.Error.Code)
}

func TestQueryErrors(t *testing.T) {
	db := seedShop(t)
	dir := t.TempDir()
	orders := writeFile(t, dir, "orders.yaml", ordersDoc)
	unknownEntity := writeFile(t, dir, "entity.yaml", `sources:
  - {name: o, entity: Invoice}
select:
  - {name: id, expr: {path: o.Id}}
`)
	missingParam := writeFile(t, dir, "param.yaml", ordersDoc+`where:
  - {path: o.Id, param: id}
`)
	nullMember := writeFile(t, dir, "member.yaml", `sources:
  - {name: o, entity: Order}
  - {name: c, entity: Customer, clause: left_join, on: {left: o.CustomerId, property: Id}}
select:
  - {name: name, expr: {path: c.Name}}
`)

	tests := []struct {
		name string
		args []string
		exit int
		code string
	}{
		{"missing_document", []string{"query", filepath.Join(dir, "nope.yaml"), "--model", shopModel, "--db", db}, ExitCommandError, ErrCodeNotFound},
		{"missing_db", []string{"query", orders, "--model", shopModel, "--db", filepath.Join(dir, "nope.db")}, ExitCommandError, ErrCodeNotFound},
		{"bad_param_flag", []string{"query", orders, "--model", shopModel, "--db", db, "--param", "id"}, ExitCommandError, ErrCodeQueryDocument},
		{"unknown_entity", []string{"query", unknownEntity, "--model", shopModel, "--db", db}, ExitCommandError, ErrCodeUnknownEntity},
		{"missing_param", []string{"query", missingParam, "--model", shopModel, "--db", db}, ExitCommandError, ErrCodeInvalidQuery},
		{"shape_failure", []string{"query", nullMember, "--model", shopModel, "--db", db}, ExitFailure, ErrCodeShapeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestParseQueryDocument(t *testing.T) {
	q, params, err := ParseQueryDocument([]byte(ordersDoc + `where:
  - {path: c.Vip, value: true}
  - {path: o.Id, param: id}
params: {id: 10}
`))
	require.NoError(t, err)

	src, ok := q.Registry.Lookup(q.From)
	require.True(t, ok)
	assert.Equal(t, "o", src.Name)
	require.Len(t, q.Joins, 1)
	assert.Equal(t, "Id", q.Joins[0].Property)
	assert.Equal(t, "CustomerId", q.Joins[0].LeftProperty)
	assert.True(t, q.Joins[0].Left.Same(q.From))

	require.Len(t, q.Filters, 2)
	assert.Equal(t, ir.IRBool(true), q.Filters[0].Value)
	assert.Equal(t, "id", q.Filters[1].Param)
	assert.Nil(t, q.Filters[1].Value)

	require.Len(t, q.Select, 2)
	assert.Equal(t, "customer", q.Select[1].Name)
	assert.Equal(t, map[string]ir.IRValue{"id": ir.IRInt(10)}, params)
}

func TestParseQueryDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no_sources", `select: []`, "no sources"},
		{"root_with_on", `sources: [{name: o, entity: Order, on: {left: o.Id, property: Id}}]`, "root source has no join condition"},
		{"join_without_on", `sources: [{name: o, entity: Order}, {name: c, entity: Customer, clause: join}]`, "on is required"},
		{"bad_path", `sources: [{name: o, entity: Order}, {name: c, entity: Customer, clause: join, on: {left: CustomerId, property: Id}}]`, "want source.Property"},
		{"unknown_source", `sources: [{name: o, entity: Order}]
where: [{path: x.Id, value: 1}]`, `unknown source "x"`},
		{"join_without_property", `sources: [{name: o, entity: Order}, {name: c, entity: Customer, clause: join, on: {left: o.CustomerId}}]`, "property is required"},
		{"select_without_expr", `sources: [{name: o, entity: Order}]
select: [{name: id}]`, "expr is required"},
		{"duplicate_source", `sources: [{name: o, entity: Order}, {name: o, entity: Order, clause: join, on: {left: o.Id, property: Id}}]`, "duplicate source name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseQueryDocument([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseParam(t *testing.T) {
	tests := []struct {
		in   string
		name string
		want ir.IRValue
	}{
		{"id=10", "id", ir.IRInt(10)},
		{"vip=true", "vip", ir.IRBool(true)},
		{"name=Ada", "name", ir.IRString("Ada")},
		{"note=", "note", ir.IRNull{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, v, err := ParseParam(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.want, v)
		})
	}

	_, _, err := ParseParam("=1")
	assert.Error(t, err)
}
