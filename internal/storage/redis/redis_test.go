package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/goodtune/sessiontracker/internal/config"
	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/goodtune/sessiontracker/internal/storage/storagetest"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays 0
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
		KeyPrefix:    "test",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		store, _ := setupTestStore(t)
		return store
	})
}

func TestOpen_InvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{
		Host:         "localhost:6379",
		DialTimeout:  "soon",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	})
	if err == nil {
		t.Fatal("Expected error for invalid dial_timeout")
	}
}

func TestSessionStore_KeyLayout(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	session := storage.Session{UserID: "user-1", StartTime: start}
	if err := store.Sessions().Create(ctx, &session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sessionKey := "test:session:" + session.ID
	if !mr.Exists(sessionKey) {
		t.Fatalf("Expected hash %s to exist", sessionKey)
	}
	if got := mr.HGet(sessionKey, "end_time"); got != "" {
		t.Errorf("Expected empty end_time for open session, got %q", got)
	}
	if got := mr.HGet(sessionKey, "revision"); got != "1" {
		t.Errorf("Expected revision 1, got %q", got)
	}

	for _, index := range []string{"test:sessions", "test:sessions:user:user-1"} {
		score, err := mr.ZScore(index, session.ID)
		if err != nil {
			t.Fatalf("Expected %s in %s: %v", session.ID, index, err)
		}
		if int64(score) != start.UnixMilli() {
			t.Errorf("Expected score %d in %s, got %v", start.UnixMilli(), index, score)
		}
	}

	if _, err := store.Sessions().DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	for _, key := range []string{sessionKey, "test:sessions", "test:sessions:user:user-1"} {
		if mr.Exists(key) {
			t.Errorf("Expected %s to be removed by DeleteAll", key)
		}
	}
}

func TestSessionStore_CreateDuplicateID(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first := storage.Session{ID: "fixed", UserID: "user-1", StartTime: time.Now()}
	if err := store.Sessions().Create(ctx, &first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	second := storage.Session{ID: "fixed", UserID: "user-2", StartTime: time.Now()}
	if err := store.Sessions().Create(ctx, &second); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate ID, got %v", err)
	}
}

func TestParseSession_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data map[string]string
	}{
		{
			name: "bad start time",
			data: map[string]string{"id": "s", "start_time": "yesterday", "revision": "1"},
		},
		{
			name: "bad pauses",
			data: map[string]string{"id": "s", "start_time": "2024-03-10T10:00:00Z", "pauses": "{", "revision": "1"},
		},
		{
			name: "bad revision",
			data: map[string]string{"id": "s", "start_time": "2024-03-10T10:00:00Z", "revision": "one"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseSession(tt.data); err == nil {
				t.Error("Expected parse error")
			}
		})
	}

	if _, err := parseSession(map[string]string{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty hash, got %v", err)
	}
}

func TestSessionStore_CorruptRecordFailsList(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	good := storage.Session{UserID: "user-1", StartTime: start}
	if err := store.Sessions().Create(ctx, &good); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mr.HSet("test:session:broken", "id", "broken", "user_id", "user-1", "start_time", "yesterday", "revision", "1")
	if _, err := mr.ZAdd("test:sessions", float64(start.Add(time.Hour).UnixMilli()), "broken"); err != nil {
		t.Fatalf("ZAdd failed: %v", err)
	}
	if _, err := mr.ZAdd("test:sessions:user:user-1", float64(start.Add(time.Hour).UnixMilli()), "broken"); err != nil {
		t.Fatalf("ZAdd failed: %v", err)
	}

	if _, err := store.Sessions().List(ctx); err == nil {
		t.Error("Expected List to fail on a corrupt session")
	}
	if _, err := store.Sessions().ListWithinRange(ctx, "user-1", start, start.Add(24*time.Hour)); err == nil {
		t.Error("Expected ListWithinRange to fail on a corrupt session")
	}
}

func TestSessionStore_IndexWithoutHashIsSkipped(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	good := storage.Session{UserID: "user-1", StartTime: start}
	if err := store.Sessions().Create(ctx, &good); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := mr.ZAdd("test:sessions", float64(start.UnixMilli()), "gone"); err != nil {
		t.Fatalf("ZAdd failed: %v", err)
	}

	sessions, err := store.Sessions().List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != good.ID {
		t.Errorf("Expected only %s, got %+v", good.ID, sessions)
	}
}
