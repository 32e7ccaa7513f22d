package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/WilliamHangXu/EasyOH/internal/persistence/sqlite"
)

// SQLiteHarness wraps a migrated Store backed by a temporary database file.
type SQLiteHarness struct {
	*sqlite.Store
}

// NewSQLiteHarness opens and migrates a fresh database under tb.TempDir. The
// store is closed through tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "easyoh.db")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(ctx, "file:"+path+"?_pragma=foreign_keys(1)", logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	tb.Cleanup(func() { _ = store.Close() })
	return &SQLiteHarness{Store: store}
}
