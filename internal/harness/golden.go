package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/shapeq/internal/ir"
)

// Snapshot captures a scenario run for golden comparison.
// It is serialized as canonical JSON for deterministic comparison.
type Snapshot struct {
	ScenarioName string
	Result       *Result
}

// Canonical converts the snapshot to an IRObject for canonical JSON.
func (s *Snapshot) Canonical() ir.IRObject {
	rewrites := make(ir.IRArray, len(s.Result.Rewrites))
	for i, rw := range s.Result.Rewrites {
		rewrites[i] = ir.IRObject{
			"kind":   ir.IRString(rw.Kind),
			"before": ir.IRString(rw.Before),
			"after":  ir.IRString(rw.After),
		}
	}

	evals := make(ir.IRArray, len(s.Result.Evaluations))
	for i, ev := range s.Result.Evaluations {
		entry := ir.IRObject{"bindings": ev.Bindings}
		if ev.Outcome.Error != "" {
			entry["error"] = ir.IRString(ev.Outcome.Error)
		} else {
			v := ev.Outcome.Value
			if v == nil {
				v = ir.Null
			}
			entry["result"] = v
		}
		evals[i] = entry
	}

	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"original":      ir.IRString(s.Result.Original),
		"optimized":     ir.IRString(s.Result.Optimized),
		"rewrites":      rewrites,
		"evaluations":   evals,
	}
}

// Marshal returns the snapshot as canonical JSON, the golden file format.
func (s *Snapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.Canonical())
}

// RunWithGolden executes a scenario and compares the run against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{ScenarioName: scenarioName, Result: result}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
