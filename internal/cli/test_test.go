package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

const passingScenario = `name: member_guard
description: guarded member access
sources:
  - {name: x, entity: Customer, clause: left_join}
expr:
  cond:
    test: {eq: [{ref: x}, null]}
    then: null
    else: {path: x.Name}
expect:
  tree: "x ?. x.Name"
  rewrites: [null_propagation]
evaluations:
  - bindings: {x: {Id: 1, Name: Ada}}
    result: Ada
`

const failingScenario = `name: wrong_expectation
description: expects a rewrite that cannot happen
sources:
  - {name: x, entity: Customer}
  - {name: y, entity: Customer}
expr:
  cond:
    test: {eq: [{ref: x}, null]}
    then: null
    else: {path: y.Name}
expect:
  tree: "x ?. y.Name"
  rewrites: [null_propagation]
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandUpdateRequiresGolden(t *testing.T) {
	_, _, err := execute(t, "test", t.TempDir(), "--update")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, _, err := execute(t, "test", harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ null_propagation_member\n")
	assert.Contains(t, out, "✓ primary_key_guard\n")
	assert.Contains(t, out, "Test Summary: 7 passed, 0 failed, 7 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", harnessScenarios, "--filter", "b_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "null_propagation_member", resp.Data.Scenarios[0].Name)
	assert.Equal(t, "x ?. x.Name", resp.Data.Scenarios[0].Optimized)

	_, _, err = execute(t, "test", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", passingScenario)
	writeFile(t, dir, "b.yaml", failingScenario)
	writeFile(t, dir, "c.yaml", "name: broken\n")

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ member_guard\n")
	assert.Contains(t, out, "✗ wrong_expectation\n")
	assert.Contains(t, out, `  optimized tree: got "x == null ? null : y.Name", want "x ?. y.Name"`)
	assert.Contains(t, out, "✗ c.yaml\n  failed to load scenario:")
	assert.Contains(t, out, "Test Summary: 1 passed, 2 failed, 3 total")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", failingScenario)

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
}

func TestTestCommandGoldenUpdate(t *testing.T) {
	dir := t.TempDir()
	golden := filepath.Join(t.TempDir(), "golden")
	writeFile(t, dir, "a.yaml", passingScenario)

	// Missing golden files fail until they are written.
	out, _, err := execute(t, "test", dir, "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, out, "golden file missing")

	_, _, err = execute(t, "test", dir, "--golden", golden, "--update")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(golden, "member_guard.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"optimized":"x ?. x.Name"`)
	assert.Contains(t, string(data), `"scenario_name":"member_guard"`)

	_, _, err = execute(t, "test", dir, "--golden", golden)
	require.NoError(t, err)

	// Golden files are compared by value; indentation does not matter.
	var pretty bytes.Buffer
	require.NoError(t, json.Indent(&pretty, data, "", "  "))
	require.NoError(t, os.WriteFile(filepath.Join(golden, "member_guard.golden"), pretty.Bytes(), 0o644))
	_, _, err = execute(t, "test", dir, "--golden", golden)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "member_guard.golden"), []byte("{}"), 0o644))
	out, _, err = execute(t, "test", dir, "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, out, "golden file mismatch")

	require.NoError(t, os.WriteFile(filepath.Join(golden, "member_guard.golden"), []byte("{"), 0o644))
	out, _, err = execute(t, "test", dir, "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, out, "is not valid JSON")
}
