package store

import (
	"context"
	"fmt"

	"github.com/roach88/shapeq/internal/ir"
)

// ForEachRow runs query and calls fn once per row, in result order.
//
// The row slice is reused between calls; fn must not retain it or modify
// it. The context is checked before each row: when it is done, ForEachRow
// stops and returns ctx.Err() without reading further rows.
func (s *Store) ForEachRow(ctx context.Context, query string, args []any, fn func(row []ir.IRValue) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("columns: %w", err)
	}

	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	row := make([]ir.IRValue, len(cols))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !rows.Next() {
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		for i, v := range raw {
			val, err := fromDriver(v)
			if err != nil {
				return fmt.Errorf("column %d (%s): %w", i, cols[i], err)
			}
			row[i] = val
		}
		if err := fn(row); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}
