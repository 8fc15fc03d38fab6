package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
	"github.com/roach88/shapeq/internal/optimize"
	"github.com/roach88/shapeq/internal/source"
)

// Run executes a scenario and returns the result.
//
// Scenario expectations that do not hold are reported in Result.Errors.
// The returned error is reserved for scenarios that cannot run at all
// (undecodable expression, unloadable model, bad bindings).
func Run(scenario *Scenario) (*Result, error) {
	reg := source.NewRegistry()
	scope, err := expr.DeclareSources(reg, scenario.Sources)
	if err != nil {
		return nil, fmt.Errorf("declare sources: %w", err)
	}
	tree, err := expr.Decode(scenario.Expr, scope)
	if err != nil {
		return nil, fmt.Errorf("decode expr: %w", err)
	}

	opts := []optimize.Option{optimize.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	if scenario.PrimaryKeyGuards {
		m, err := model.LoadDir(scenario.ModelDir())
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		opts = append(opts, optimize.WithPrimaryKeyGuards(reg, m))
	}
	opt := optimize.New(opts...)
	report := opt.OptimizeReport(tree)

	result := NewResult()
	result.Original = expr.Format(tree)
	result.Optimized = expr.Format(report.Tree)

	kinds := make([]string, len(report.Rewrites))
	for i, rw := range report.Rewrites {
		kinds[i] = string(rw.Kind)
		result.Rewrites = append(result.Rewrites, RewriteTrace{
			Kind:   string(rw.Kind),
			Before: expr.Format(rw.Before),
			After:  expr.Format(rw.After),
		})
	}

	if want := scenario.Expect.Tree; want != "" && want != result.Optimized {
		result.AddError(fmt.Sprintf("optimized tree: got %q, want %q", result.Optimized, want))
	}
	if !equalKinds(kinds, scenario.Expect.Rewrites) {
		result.AddError(fmt.Sprintf("rewrites: got [%s], want [%s]",
			strings.Join(kinds, ", "), strings.Join(scenario.Expect.Rewrites, ", ")))
	}
	if again := opt.OptimizeReport(report.Tree); again.Changed() {
		result.AddError(fmt.Sprintf("optimization is not idempotent: %q becomes %q",
			result.Optimized, expr.Format(again.Tree)))
	}

	for i, ev := range scenario.Evaluations {
		env, bound, err := bindings(ev.Bindings, scope)
		if err != nil {
			return nil, fmt.Errorf("evaluations[%d]: %w", i, err)
		}

		before := evaluate(tree, env)
		after := evaluate(report.Tree, env)
		result.Evaluations = append(result.Evaluations, EvalTrace{Bindings: bound, Outcome: after})

		if !before.Same(after) {
			result.AddError(fmt.Sprintf("evaluations[%d]: optimized tree gives %s, original gives %s", i, after, before))
		}
		want, err := expected(ev)
		if err != nil {
			return nil, fmt.Errorf("evaluations[%d]: %w", i, err)
		}
		if !want.Same(after) {
			result.AddError(fmt.Sprintf("evaluations[%d]: got %s, want %s", i, after, want))
		}
	}

	return result, nil
}

func equalKinds(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// bindings resolves source names and converts values. It also returns the
// bindings by name, for the trace.
func bindings(raw map[string]any, scope expr.Scope) (expr.Bindings, ir.IRObject, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make(expr.Bindings, len(raw))
	bound := make(ir.IRObject, len(raw))
	for _, name := range names {
		h, ok := scope[name]
		if !ok {
			return nil, nil, fmt.Errorf("binding for undeclared source %q", name)
		}
		v, err := ir.FromGo(raw[name])
		if err != nil {
			return nil, nil, fmt.Errorf("binding %q: %w", name, err)
		}
		env[h] = v
		bound[name] = v
	}
	return env, bound, nil
}

func expected(ev Evaluation) (Outcome, error) {
	if ev.Error != "" {
		return Outcome{Error: ev.Error}, nil
	}
	v, err := ir.FromGo(ev.Result)
	if err != nil {
		return Outcome{}, fmt.Errorf("result: %w", err)
	}
	return Outcome{Value: v}, nil
}

var evalErrorKinds = []struct {
	err  error
	kind string
}{
	{expr.ErrNullReference, "null_reference"},
	{expr.ErrUnboundSource, "unbound_source"},
	{expr.ErrUnknownMember, "unknown_member"},
	{expr.ErrInvalidCast, "invalid_cast"},
	{expr.ErrNotBoolean, "not_boolean"},
	{expr.ErrNotEvaluable, "not_evaluable"},
	{expr.ErrTypeMismatch, "type_mismatch"},
}

func evaluate(n expr.Node, env expr.Env) Outcome {
	v, err := expr.Eval(n, env)
	if err == nil {
		return Outcome{Value: v}
	}
	for _, k := range evalErrorKinds {
		if errors.Is(err, k.err) {
			return Outcome{Error: k.kind}
		}
	}
	return Outcome{Error: "error"}
}
