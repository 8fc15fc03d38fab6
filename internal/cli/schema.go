package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
	"github.com/roach88/shapeq/internal/store"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	ModelDir string
	DB       string
	Seed     string // YAML file of entity name to rows
}

// SchemaResult is the output of the schema command.
type SchemaResult struct {
	Entities  []EntitySummary `json:"entities"`
	DDL       string          `json:"ddl"`
	AppliedTo string          `json:"applied_to,omitempty"`
	Seeded    map[string]int  `json:"seeded,omitempty"`
}

// EntitySummary describes one compiled entity.
type EntitySummary struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	Key        []string `json:"key"`
	Properties int      `json:"properties"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the SQL schema of a model, optionally applying it",
		Long: `Compile the CUE model and print one CREATE TABLE per entity.

With --db the schema is applied to the SQLite database. A table whose
entity definition changed since it was created is reported as drift.
--seed inserts rows from a YAML file keyed by entity name:

  Customer:
    - {Id: 1, Name: Ada, Email: ada@example.com, Vip: false}`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ModelDir, "model", "", "CUE model directory (required)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database to apply the schema to")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "YAML file of rows to insert (requires --db)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runSchema(opts *SchemaOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, loadErr := LoadModel(opts.ModelDir)
	if loadErr != nil {
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, positionDetails(loadErr))
	}
	formatter.VerboseLog("Loaded model from %s (%d file(s))", loaded.Dir, loaded.FileCount)

	m := loaded.Model
	result := SchemaResult{DDL: m.DDL()}
	for _, e := range m.Entities() {
		result.Entities = append(result.Entities, EntitySummary{
			Name:       e.Name,
			Table:      e.Table,
			Key:        e.Key,
			Properties: len(e.Properties),
		})
	}

	if opts.Seed != "" && opts.DB == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--seed requires --db", nil)
	}

	if opts.DB != "" {
		seeded, err := applySchema(cmd.Context(), opts, m)
		if err != nil {
			code := ErrCodeDatabase
			if errors.Is(err, store.ErrSchemaDrift) {
				code = ErrCodeSchemaDrift
			}
			return formatter.Fail(ExitCommandError, code, err.Error(), nil)
		}
		result.AppliedTo = opts.DB
		result.Seeded = seeded
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputSchemaText(formatter, result)
}

func applySchema(ctx context.Context, opts *SchemaOptions, m *model.Model) (map[string]int, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := store.Open(opts.DB)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.ApplySchema(ctx, m); err != nil {
		return nil, err
	}
	if opts.Seed == "" {
		return nil, nil
	}

	rows, err := readSeed(opts.Seed)
	if err != nil {
		return nil, err
	}
	seeded := make(map[string]int, len(rows))
	for name, objs := range rows {
		e, ok := m.Entity(name)
		if !ok {
			return nil, fmt.Errorf("seed: unknown entity %q", name)
		}
		if err := s.InsertAll(ctx, e, objs); err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		seeded[name] = len(objs)
	}
	return seeded, nil
}

func readSeed(path string) (map[string][]ir.IRObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var raw map[string][]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	out := make(map[string][]ir.IRObject, len(raw))
	for name, rows := range raw {
		objs := make([]ir.IRObject, len(rows))
		for i, row := range rows {
			v, err := ir.FromGo(row)
			if err != nil {
				return nil, fmt.Errorf("seed %s[%d]: %w", name, i, err)
			}
			objs[i] = v.(ir.IRObject)
		}
		out[name] = objs
	}
	return out, nil
}

func outputSchemaText(f *OutputFormatter, r SchemaResult) error {
	w := f.Writer
	fmt.Fprint(w, r.DDL)
	if r.AppliedTo == "" {
		return nil
	}
	fmt.Fprintf(w, "\n✓ Applied schema for %d entity(ies) to %s\n", len(r.Entities), r.AppliedTo)

	names := make([]string, 0, len(r.Seeded))
	for name := range r.Seeded {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  seeded %s: %d row(s)\n", name, r.Seeded[name])
	}
	return nil
}

// positionDetails returns the CUE position of a load error for JSON output.
func positionDetails(e *LoadError) any {
	if !e.Pos.IsValid() {
		return nil
	}
	return map[string]any{
		"file":   e.Pos.Filename(),
		"line":   e.Pos.Line(),
		"column": e.Pos.Column(),
	}
}
