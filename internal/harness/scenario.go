package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/optimize"
)

// Scenario defines one optimization scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is a directory of CUE entity definitions, relative to the
	// scenario file. Required when PrimaryKeyGuards is set.
	Model string `yaml:"model,omitempty"`

	// PrimaryKeyGuards enables primary-key guard widening in the optimizer.
	PrimaryKeyGuards bool `yaml:"primary_key_guards,omitempty"`

	// Sources declares the logical sources the expression refers to.
	Sources []expr.SourceDecl `yaml:"sources"`

	// Expr is the input tree in the expr YAML encoding.
	Expr any `yaml:"expr"`

	// Expect holds the expected optimizer output.
	Expect Expectation `yaml:"expect"`

	// Evaluations are bindings under which both trees are evaluated.
	Evaluations []Evaluation `yaml:"evaluations,omitempty"`

	baseDir string
}

// Expectation specifies the expected optimizer output.
type Expectation struct {
	// Tree is the rendered optimized tree. Empty skips the check.
	Tree string `yaml:"tree,omitempty"`

	// Rewrites lists the expected rewrite kinds in application order.
	Rewrites []string `yaml:"rewrites"`
}

// Evaluation binds sources to values and states the expected outcome.
type Evaluation struct {
	// Bindings maps source names to values. Unlisted sources are unbound.
	Bindings map[string]any `yaml:"bindings"`

	// Result is the expected value; omitted means null.
	Result any `yaml:"result,omitempty"`

	// Error is the expected failure kind, e.g. "null_reference".
	Error string `yaml:"error,omitempty"`
}

// ModelDir returns the model directory resolved against the scenario file.
func (s *Scenario) ModelDir() string {
	if s.Model == "" || filepath.IsAbs(s.Model) {
		return s.Model
	}
	return filepath.Join(s.baseDir, s.Model)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.baseDir = filepath.Dir(path)

	if scenario.Model != "" {
		if _, err := os.Stat(scenario.ModelDir()); err != nil {
			return nil, fmt.Errorf("invalid scenario: model directory: %w", err)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. A relative model path resolves
// against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "evaluation:" vs "evaluations:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	names := make(map[string]string)
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if prev, dup := names[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", filepath.Base(p), s.Name, prev)
		}
		names[s.Name] = filepath.Base(p)
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

var rewriteKinds = map[string]bool{
	string(optimize.RewriteCoalesce):        true,
	string(optimize.RewriteNullPropagation): true,
}

var errorKinds = map[string]bool{
	"null_reference": true,
	"unbound_source": true,
	"unknown_member": true,
	"invalid_cast":   true,
	"not_boolean":    true,
	"not_evaluable":  true,
	"type_mismatch":  true,
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Expr == nil {
		return fmt.Errorf("expr is required")
	}

	if s.PrimaryKeyGuards && s.Model == "" {
		return fmt.Errorf("primary_key_guards requires model")
	}

	for i, kind := range s.Expect.Rewrites {
		if !rewriteKinds[kind] {
			return fmt.Errorf("expect.rewrites[%d]: unknown rewrite kind %q", i, kind)
		}
	}

	for i, ev := range s.Evaluations {
		if ev.Error != "" && !errorKinds[ev.Error] {
			return fmt.Errorf("evaluations[%d]: unknown error kind %q", i, ev.Error)
		}
		if ev.Error != "" && ev.Result != nil {
			return fmt.Errorf("evaluations[%d]: result and error are mutually exclusive", i)
		}
	}

	return nil
}
