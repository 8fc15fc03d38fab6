package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/shapeq/internal/ir"
	"github.com/roach88/shapeq/internal/model"
)

// ErrSchemaDrift is returned by ApplySchema when an entity's table was
// created from a different definition.
var ErrSchemaDrift = errors.New("schema drift")

// ApplySchema creates a table for every entity in m, in one transaction.
// Tables created earlier from the same definition are left alone.
func (s *Store) ApplySchema(ctx context.Context, m *model.Model) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range m.Entities() {
		ddl := e.DDL()
		hash, err := ir.Hash(ir.DomainSchema, ir.IRString(ddl))
		if err != nil {
			return fmt.Errorf("hash %s schema: %w", e.Name, err)
		}

		var existing string
		err = tx.QueryRowContext(ctx,
			"SELECT ddl_hash FROM shapeq_entities WHERE entity = ?", e.Name,
		).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read schema for %s: %w", e.Name, err)
		case existing == hash:
			continue
		default:
			return fmt.Errorf("%w: entity %s changed since its table was created", ErrSchemaDrift, e.Name)
		}

		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table for %s: %w", e.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO shapeq_entities (entity, table_name, ddl_hash) VALUES (?, ?, ?)",
			e.Name, e.Table, hash,
		); err != nil {
			return fmt.Errorf("record schema for %s: %w", e.Name, err)
		}
	}

	return tx.Commit()
}
