package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopSeed = `Customer:
  - {Id: 1, Name: Ada, Email: ada@example.com, Vip: false}
  - {Id: 2, Name: Grace, Vip: true}
Order:
  - {Id: 10, CustomerId: 1, Total: 100, Note: gift}
  - {Id: 12, CustomerId: 2, Total: 70}
  - {Id: 13, Total: 5}
`

// seedShop creates a database with the shop schema and fixture rows.
func seedShop(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "shop.db")
	seed := writeFile(t, dir, "seed.yaml", shopSeed)

	_, _, err := execute(t, "schema", "--model", shopModel, "--db", db, "--seed", seed)
	require.NoError(t, err)
	return db
}

func TestSchemaText(t *testing.T) {
	out, _, err := execute(t, "schema", "--model", shopModel)
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "customers" (`)
	assert.Contains(t, out, `"is_vip" INTEGER NOT NULL`)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "orders" (`)
	assert.NotContains(t, out, "Applied schema")
}

func TestSchemaApplyAndSeed(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shop.db")
	seed := writeFile(t, dir, "seed.yaml", shopSeed)

	out, _, err := execute(t, "schema", "--model", shopModel, "--db", db, "--seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Applied schema for 2 entity(ies) to "+db)
	assert.Contains(t, out, "  seeded Customer: 2 row(s)\n  seeded Order: 3 row(s)\n")

	// Applying the same model again is a no-op.
	_, _, err = execute(t, "schema", "--model", shopModel, "--db", db)
	require.NoError(t, err)
}

func TestSchemaJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "schema", "--model", shopModel)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   SchemaResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Entities, 2)
	assert.Equal(t, EntitySummary{Name: "Customer", Table: "customers", Key: []string{"Id"}, Properties: 4}, resp.Data.Entities[0])
	assert.Empty(t, resp.Data.AppliedTo)
}

func TestSchemaDrift(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "drift.db")

	v1 := t.TempDir()
	writeFile(t, v1, "m.cue", "package m\n\nentity: Tag: {key: [\"Id\"], properties: {Id: int}}\n")
	_, _, err := execute(t, "schema", "--model", v1, "--db", db)
	require.NoError(t, err)

	v2 := t.TempDir()
	writeFile(t, v2, "m.cue", "package m\n\nentity: Tag: {key: [\"Id\"], properties: {Id: int, Label: string}}\n")
	out, _, err := execute(t, "--format", "json", "schema", "--model", v2, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSchemaDrift, resp.Error.Code)
}

func TestSchemaErrors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shop.db")
	badSeed := writeFile(t, dir, "bad.yaml", "Invoice:\n  - {Id: 1}\n")
	float := t.TempDir()
	writeFile(t, float, "m.cue", "package m\n\nentity: A: {key: [\"Id\"], properties: {Id: int, Price: float}}\n")

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"seed_without_db", []string{"schema", "--model", shopModel, "--seed", badSeed}, ErrCodeGeneric},
		{"unknown_seed_entity", []string{"schema", "--model", shopModel, "--db", db, "--seed", badSeed}, ErrCodeDatabase},
		{"bad_model", []string{"schema", "--model", float}, ErrCodeInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestSchemaRequiresModel(t *testing.T) {
	_, _, err := execute(t, "schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "model" not set`)
}
