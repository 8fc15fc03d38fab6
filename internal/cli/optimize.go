package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/optimize"
	"github.com/roach88/shapeq/internal/source"
)

// OptimizeOptions holds flags for the optimize command.
type OptimizeOptions struct {
	*RootOptions
	ModelDir         string
	PrimaryKeyGuards bool
	Bindings         string // YAML/JSON object of source name to value
}

// OptimizeResult is the output of the optimize command.
type OptimizeResult struct {
	Original  string          `json:"original"`
	Optimized string          `json:"optimized"`
	Changed   bool            `json:"changed"`
	Rewrites  []RewriteOutput `json:"rewrites"`
	Eval      *EvalOutput     `json:"eval,omitempty"`
}

// RewriteOutput is one applied rewrite.
type RewriteOutput struct {
	Kind   string `json:"kind"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// EvalOutput is the optimized tree evaluated against --bindings.
type EvalOutput struct {
	Result ir.IRValue `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OptimizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "optimize <expr.yaml>",
		Short: "Rewrite null guards in an expression document",
		Long: `Optimize an expression document and print the rewritten tree.

The document declares its sources and the expression:

  sources:
    - {name: c, entity: Customer, clause: left_join}
  expr:
    cond: {test: {eq: [{ref: c}, null]}, then: null, else: {path: c.Name}}

With --primary-key-guards, null checks on a source's primary key are
treated like checks on the source itself. This needs --model.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ModelDir, "model", "", "CUE model directory")
	cmd.Flags().BoolVar(&opts.PrimaryKeyGuards, "primary-key-guards", false, "treat primary key null checks as source null checks")
	cmd.Flags().StringVar(&opts.Bindings, "bindings", "", "evaluate the optimized tree with these source values (YAML or JSON object)")

	return cmd
}

func runOptimize(opts *OptimizeOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("reading expression document: %v", err), nil)
	}

	reg := source.NewRegistry()
	tree, scope, err := expr.ParseDocument(data, reg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeExpression, err.Error(), map[string]string{"file": path})
	}

	optOpts := []optimize.Option{optimize.WithLogger(opts.Logger(cmd.ErrOrStderr()))}
	if opts.PrimaryKeyGuards {
		if opts.ModelDir == "" {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--primary-key-guards requires --model", nil)
		}
		loaded, loadErr := LoadModel(opts.ModelDir)
		if loadErr != nil {
			return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		formatter.VerboseLog("Loaded model from %s (%d file(s))", loaded.Dir, loaded.FileCount)
		optOpts = append(optOpts, optimize.WithPrimaryKeyGuards(reg, loaded.Model))
	}

	report := optimize.New(optOpts...).OptimizeReport(tree)
	result := OptimizeResult{
		Original:  expr.Format(tree),
		Optimized: expr.Format(report.Tree),
		Changed:   report.Changed(),
		Rewrites:  make([]RewriteOutput, 0, len(report.Rewrites)),
	}
	for _, rw := range report.Rewrites {
		result.Rewrites = append(result.Rewrites, RewriteOutput{
			Kind:   string(rw.Kind),
			Before: expr.Format(rw.Before),
			After:  expr.Format(rw.After),
		})
	}

	if opts.Bindings != "" {
		env, err := parseBindings(opts.Bindings, scope)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeExpression, err.Error(), nil)
		}
		out := &EvalOutput{}
		if v, err := expr.Eval(report.Tree, env); err != nil {
			out.Error = err.Error()
		} else {
			out.Result = v
		}
		result.Eval = out
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputOptimizeText(formatter, result)
}

// parseBindings decodes a source-name keyed object into evaluation bindings.
// Declared sources missing from raw are bound to null.
func parseBindings(raw string, scope expr.Scope) (expr.Bindings, error) {
	var values map[string]any
	if err := yaml.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("parse bindings: %w", err)
	}
	env := make(expr.Bindings, len(scope))
	for _, h := range scope {
		env[h] = ir.IRNull{}
	}
	for name, v := range values {
		h, ok := scope[name]
		if !ok {
			return nil, fmt.Errorf("binding for undeclared source %q", name)
		}
		iv, err := ir.FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", name, err)
		}
		env[h] = iv
	}
	return env, nil
}

func outputOptimizeText(f *OutputFormatter, r OptimizeResult) error {
	w := f.Writer
	fmt.Fprintf(w, "original:  %s\n", r.Original)
	fmt.Fprintf(w, "optimized: %s\n", r.Optimized)
	if !r.Changed {
		fmt.Fprintln(w, "no rewrites")
	} else {
		fmt.Fprintf(w, "rewrites (%d):\n", len(r.Rewrites))
		for _, rw := range r.Rewrites {
			fmt.Fprintf(w, "  %s: %s → %s\n", rw.Kind, rw.Before, rw.After)
		}
	}
	if r.Eval != nil {
		if r.Eval.Error != "" {
			fmt.Fprintf(w, "eval error: %s\n", r.Eval.Error)
		} else {
			data, err := ir.MarshalCanonical(r.Eval.Result)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "eval: %s\n", data)
		}
	}
	return nil
}
