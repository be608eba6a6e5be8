package testfixtures

import (
	"context"
	"log/slog"
	"testing"

	"github.com/example/personal-calendar/internal/persistence/sqlite"
)

// SQLiteHarness provides a migrated in-memory SQLite database for
// integration-style persistence tests.
type SQLiteHarness struct {
	Pool   *sqlite.ConnectionPool
	Events *sqlite.EventRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a private in-memory database. Callers
// may invoke Close, but the helper also registers a cleanup with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	ctx := context.Background()
	pool, err := sqlite.Open(ctx, sqlite.InMemoryConfig())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := pool.Migrate(ctx, slog.New(slog.DiscardHandler)); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:   pool,
		Events: sqlite.NewEventRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
