package data

import (
	"context"
	"database/sql"

	"github.com/gitgauge/gitgauge/internal/migrate"
)

// RunMigrations applies all embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
