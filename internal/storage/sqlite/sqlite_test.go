package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/goodtune/sessiontracker/internal/storage/storagetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openTestStore(t)
	})
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = second.Close() }()

	version, err := second.schemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("expected schema version %d, got %d", len(migrations), version)
	}
}

func TestOpenSessionStoresNullEnd(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session := storage.Session{UserID: "user-a", StartTime: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)}
	if err := store.Sessions().Create(ctx, &session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	var isNull bool
	err := store.db.QueryRowContext(ctx, `SELECT end_time IS NULL FROM sessions WHERE id = ?`, session.ID).Scan(&isNull)
	if err != nil {
		t.Fatalf("query end_time: %v", err)
	}
	if !isNull {
		t.Fatal("expected NULL end_time for open session")
	}
}
