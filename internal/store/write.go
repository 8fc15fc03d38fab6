package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Insert writes one entity row. obj is keyed by property name; missing
// properties are written as NULL.
func (s *Store) Insert(ctx context.Context, e *model.EntityType, obj ir.IRObject) error {
	return insertRow(ctx, s.db, e, obj)
}

// InsertAll writes many rows of one entity in a single transaction.
func (s *Store) InsertAll(ctx context.Context, e *model.EntityType, objs []ir.IRObject) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	for i, obj := range objs {
		if err := insertRow(ctx, tx, e, obj); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func insertRow(ctx context.Context, ex execer, e *model.EntityType, obj ir.IRObject) error {
	for name := range obj {
		if _, ok := e.Property(name); !ok {
			return fmt.Errorf("insert %s: unknown property %s", e.Name, name)
		}
	}

	cols := make([]string, len(e.Properties))
	marks := make([]string, len(e.Properties))
	args := make([]any, len(e.Properties))
	for i, p := range e.Properties {
		arg, err := toColumn(p, obj[p.Name])
		if err != nil {
			return fmt.Errorf("insert %s: %w", e.Name, err)
		}
		cols[i] = model.QuoteIdent(p.Column)
		marks[i] = "?"
		args[i] = arg
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		model.QuoteIdent(e.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", e.Name, err)
	}
	return nil
}
