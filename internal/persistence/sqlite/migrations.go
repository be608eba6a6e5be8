package sqlite

import (
	"context"
	"embed"
	"log/slog"

	"github.com/example/personal-calendar/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate brings the schema of the pool's database up to date.
func (cp *ConnectionPool) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := migration.NewManager(
		migration.NewFileScanner(migrationFS, "migrations"),
		migration.NewSQLiteExecutor(cp.db),
		logger,
	)
	return manager.RunMigrations(ctx)
}
