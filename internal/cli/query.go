package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/shapeq/internal/engine"
	"github.com/roach88/shapeq/internal/expr"
	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	ModelDir         string
	DB               string
	Params           []string // name=value
	PrimaryKeyGuards bool
	Timeout          time.Duration
}

// QueryOutput is the JSON output of the query command. Document and PlanID
// are set only when several documents run together.
type QueryOutput struct {
	Document string          `json:"document,omitempty"`
	PlanID   string          `json:"plan_id,omitempty"`
	SQL      string          `json:"sql"`
	Fields   []string        `json:"fields"`
	Rewrites []RewriteOutput `json:"rewrites"`
	Rows     []ir.IRValue    `json:"rows"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query.yaml>...",
		Short: "Compile and run query documents against a database",
		Long: `Compile query documents into SQL, run them against --db and print one
shaped value per row.

Projections are optimized before compilation. Parameters referenced by
where clauses come from each document's params and from --param flags,
which take precedence.

Several documents are compiled first and then executed concurrently; the
first failure cancels the rest.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ModelDir, "model", "", "CUE model directory (required)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database (required)")
	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "query parameter as name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.PrimaryKeyGuards, "primary-key-guards", false, "treat primary key null checks as source null checks")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "cancel the query after this duration (0 = no limit)")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

type queryDocument struct {
	path   string
	query  engine.Query
	params map[string]ir.IRValue
}

func runQuery(opts *QueryOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	overrides := make(map[string]ir.IRValue, len(opts.Params))
	for _, p := range opts.Params {
		name, v, err := ParseParam(p)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeQueryDocument, err.Error(), nil)
		}
		overrides[name] = v
	}

	docs := make([]queryDocument, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("reading query document: %v", err), nil)
		}
		q, params, err := ParseQueryDocument(data)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeQueryDocument, err.Error(), map[string]string{"file": path})
		}
		for name, v := range overrides {
			params[name] = v
		}
		docs = append(docs, queryDocument{path: path, query: q, params: params})
	}

	loaded, loadErr := LoadModel(opts.ModelDir)
	if loadErr != nil {
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, positionDetails(loadErr))
	}

	if _, err := os.Stat(opts.DB); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.DB), nil)
	}
	s, err := store.Open(opts.DB)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, err.Error(), nil)
	}
	defer s.Close()

	engOpts := []engine.EngineOption{engine.WithLogger(opts.Logger(cmd.ErrOrStderr()))}
	if opts.PrimaryKeyGuards {
		engOpts = append(engOpts, engine.WithPrimaryKeyGuards())
	}
	eng := engine.New(s, loaded.Model, engOpts...)

	plans := make([]*engine.Plan, len(docs))
	for i, d := range docs {
		plan, err := eng.Compile(d.query)
		if err != nil {
			return formatter.Fail(ExitCommandError, MapQueryErrorCode(err), err.Error(), queryErrorDetails(err))
		}
		formatter.VerboseLog("Plan %s: %s", plan.ID, plan.SQL)
		plans[i] = plan
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if len(docs) == 1 {
		return streamQuery(ctx, formatter, eng, plans[0], docs[0].params)
	}
	return executeQueries(ctx, formatter, eng, docs, plans)
}

// streamQuery prints the rows of a single plan as they are shaped.
func streamQuery(ctx context.Context, formatter *OutputFormatter, eng *engine.Engine, plan *engine.Plan, params map[string]ir.IRValue) error {
	out := newQueryOutput(plan)
	rows := 0
	err := eng.Stream(ctx, plan, params, func(row ir.IRValue) error {
		rows++
		if formatter.Format == "json" {
			out.Rows = append(out.Rows, row)
			return nil
		}
		return printRow(formatter, row)
	})
	if err != nil {
		return executionFailure(formatter, err)
	}

	if formatter.Format == "json" {
		return json.NewEncoder(formatter.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   out,
			PlanID: plan.ID,
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d row(s)\n", rows)
	return nil
}

// executeQueries runs every plan through ExecuteAll and prints the results
// in document order.
func executeQueries(ctx context.Context, formatter *OutputFormatter, eng *engine.Engine, docs []queryDocument, plans []*engine.Plan) error {
	reqs := make([]engine.Request, len(plans))
	for i, plan := range plans {
		reqs[i] = engine.Request{Plan: plan, Params: docs[i].params}
	}
	results, err := eng.ExecuteAll(ctx, reqs)
	if err != nil {
		return executionFailure(formatter, err)
	}

	if formatter.Format == "json" {
		outs := make([]QueryOutput, len(plans))
		for i, plan := range plans {
			outs[i] = newQueryOutput(plan)
			outs[i].Document = docs[i].path
			outs[i].PlanID = plan.ID
			outs[i].Rows = append(outs[i].Rows, results[i]...)
		}
		return formatter.Success(outs)
	}

	for i, rows := range results {
		fmt.Fprintf(formatter.Writer, "%s:\n", docs[i].path)
		for _, row := range rows {
			if err := printRow(formatter, row); err != nil {
				return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
			}
		}
		fmt.Fprintf(formatter.Writer, "✓ %d row(s)\n", len(rows))
	}
	return nil
}

func newQueryOutput(plan *engine.Plan) QueryOutput {
	out := QueryOutput{
		SQL:      plan.SQL,
		Fields:   plan.Fields,
		Rewrites: make([]RewriteOutput, 0, len(plan.Rewrites)),
		Rows:     []ir.IRValue{},
	}
	for _, rw := range plan.Rewrites {
		out.Rewrites = append(out.Rewrites, RewriteOutput{
			Kind:   string(rw.Kind),
			Before: expr.Format(rw.Before),
			After:  expr.Format(rw.After),
		})
	}
	return out
}

func printRow(formatter *OutputFormatter, row ir.IRValue) error {
	line, err := ir.MarshalCanonical(row)
	if err != nil {
		return err
	}
	fmt.Fprintln(formatter.Writer, string(line))
	return nil
}

// executionFailure reports a failed execution. Invalid queries (a missing
// parameter, say) are the caller's fault; anything else is a runtime failure.
func executionFailure(formatter *OutputFormatter, err error) error {
	code := ExitFailure
	if engine.IsInvalidQueryError(err) {
		code = ExitCommandError
	}
	return formatter.Fail(code, MapQueryErrorCode(err), err.Error(), queryErrorDetails(err))
}

// queryErrorDetails exposes a QueryError's plan and details for JSON output.
func queryErrorDetails(err error) any {
	var qe *engine.QueryError
	if !errors.As(err, &qe) {
		return nil
	}
	details := make(map[string]string, len(qe.Details)+1)
	for k, v := range qe.Details {
		details[k] = v
	}
	if qe.PlanID != "" {
		details["plan_id"] = qe.PlanID
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
