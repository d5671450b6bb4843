package migrations

import (
	"context"
	"fmt"

	"viraltrade/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded postgres schema.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	migs, err := loadMigrations(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range migs {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}
	return nil
}
