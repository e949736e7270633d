package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/goodtune/sessiontracker/internal/storage/bolt"
)

// countingStore wraps a UserStore and counts Exists calls.
type countingStore struct {
	storage.UserStore
	lookups int
}

func (s *countingStore) Exists(ctx context.Context, id string) (bool, error) {
	s.lookups++
	return s.UserStore.Exists(ctx, id)
}

func setupChecker(t *testing.T, cfg Config) (*Checker, *countingStore) {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	counting := &countingStore{UserStore: store.Users()}
	return NewChecker(counting, cfg, zerolog.Nop()), counting
}

func TestUserExists_CachesPositiveResults(t *testing.T) {
	checker, store := setupChecker(t, Config{CacheSize: 8, CacheTTL: time.Minute})
	ctx := context.Background()

	if err := checker.Create(ctx, &storage.User{ID: "alice"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	for i := 0; i < 3; i++ {
		exists, err := checker.UserExists(ctx, "alice")
		if err != nil {
			t.Fatalf("user exists: %v", err)
		}
		if !exists {
			t.Fatal("expected alice to exist")
		}
	}

	if store.lookups != 1 {
		t.Errorf("expected 1 store lookup, got %d", store.lookups)
	}
}

func TestUserExists_DoesNotCacheMisses(t *testing.T) {
	checker, store := setupChecker(t, Config{CacheSize: 8, CacheTTL: time.Minute})
	ctx := context.Background()

	exists, err := checker.UserExists(ctx, "bob")
	if err != nil {
		t.Fatalf("user exists: %v", err)
	}
	if exists {
		t.Fatal("expected bob not to exist")
	}

	if err := checker.Create(ctx, &storage.User{ID: "bob"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	exists, err = checker.UserExists(ctx, "bob")
	if err != nil {
		t.Fatalf("user exists: %v", err)
	}
	if !exists {
		t.Fatal("expected bob to exist after creation")
	}
	if store.lookups != 2 {
		t.Errorf("expected 2 store lookups, got %d", store.lookups)
	}
}

func TestDeleteEvictsCache(t *testing.T) {
	checker, _ := setupChecker(t, Config{CacheSize: 8, CacheTTL: time.Minute})
	ctx := context.Background()

	if err := checker.Create(ctx, &storage.User{ID: "carol"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if exists, _ := checker.UserExists(ctx, "carol"); !exists {
		t.Fatal("expected carol to exist")
	}

	if err := checker.Delete(ctx, "carol"); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	exists, err := checker.UserExists(ctx, "carol")
	if err != nil {
		t.Fatalf("user exists: %v", err)
	}
	if exists {
		t.Error("expected carol to be gone after delete")
	}

	if err := checker.Delete(ctx, "carol"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestCacheDisabled(t *testing.T) {
	checker, store := setupChecker(t, Config{})
	ctx := context.Background()

	if err := checker.Create(ctx, &storage.User{ID: "dave"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := checker.UserExists(ctx, "dave"); err != nil {
			t.Fatalf("user exists: %v", err)
		}
	}
	if store.lookups != 2 {
		t.Errorf("expected every lookup to reach the store, got %d", store.lookups)
	}
}

func TestCreateValidation(t *testing.T) {
	checker, _ := setupChecker(t, Config{})
	ctx := context.Background()

	if err := checker.Create(ctx, &storage.User{ID: "erin", Age: -1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for negative age, got %v", err)
	}

	if err := checker.Create(ctx, &storage.User{ID: " erin "}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := checker.Create(ctx, &storage.User{ID: "erin"}); !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists for duplicate, got %v", err)
	}

	if _, err := checker.Get(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
