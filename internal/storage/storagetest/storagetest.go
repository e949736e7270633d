// Package storagetest holds behavior checks shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goodtune/sessiontracker/internal/storage"
)

// Factory opens a fresh, empty store for one test.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

// Run exercises the storage.Store contract against the backend built by open.
func Run(t *testing.T, open Factory) {
	t.Run("SessionCreateGet", func(t *testing.T) { testSessionCreateGet(t, open(t)) })
	t.Run("SessionGetMissing", func(t *testing.T) { testSessionGetMissing(t, open(t)) })
	t.Run("SessionListOrder", func(t *testing.T) { testSessionListOrder(t, open(t)) })
	t.Run("SessionListByUser", func(t *testing.T) { testSessionListByUser(t, open(t)) })
	t.Run("SessionListWithinRange", func(t *testing.T) { testSessionListWithinRange(t, open(t)) })
	t.Run("SessionLastByUser", func(t *testing.T) { testSessionLastByUser(t, open(t)) })
	t.Run("SessionUpdate", func(t *testing.T) { testSessionUpdate(t, open(t)) })
	t.Run("SessionUpdateConflict", func(t *testing.T) { testSessionUpdateConflict(t, open(t)) })
	t.Run("SessionUpdateMissing", func(t *testing.T) { testSessionUpdateMissing(t, open(t)) })
	t.Run("SessionUpdateMovesUser", func(t *testing.T) { testSessionUpdateMovesUser(t, open(t)) })
	t.Run("SessionDelete", func(t *testing.T) { testSessionDelete(t, open(t)) })
	t.Run("SessionDeleteAll", func(t *testing.T) { testSessionDeleteAll(t, open(t)) })
	t.Run("SessionDistantYears", func(t *testing.T) { testSessionDistantYears(t, open(t)) })
	t.Run("SessionTimeOutOfRange", func(t *testing.T) { testSessionTimeOutOfRange(t, open(t)) })
	t.Run("UserLifecycle", func(t *testing.T) { testUserLifecycle(t, open(t)) })
}

func mustCreate(t *testing.T, store storage.SessionStore, session storage.Session) storage.Session {
	t.Helper()

	if err := store.Create(context.Background(), &session); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return session
}

func ids(sessions []storage.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

// sameSession compares the fields a caller controls plus the revision.
func sameSession(t *testing.T, want, got storage.Session) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(storage.Session{}, "CreatedAt", "UpdatedAt"),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func testSessionCreateGet(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	session := mustCreate(t, store, storage.Session{
		UserID:    "user-1",
		StartTime: base,
		EndTime:   base.Add(2 * time.Hour),
		Pauses: []storage.Pause{
			{Start: base.Add(30 * time.Minute), End: base.Add(time.Hour)},
		},
		EyeState: "tired",
		Notes:    "late shift",
	})

	if session.ID == "" {
		t.Fatal("Expected Create to assign an ID")
	}
	if session.Revision != 1 {
		t.Errorf("Expected revision 1, got %d", session.Revision)
	}
	if session.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	sameSession(t, session, *got)
}

func testSessionGetMissing(t *testing.T, st storage.Store) {
	_, err := st.Sessions().Get(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testSessionListOrder(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	late := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base.Add(3 * time.Hour)})
	early := mustCreate(t, store, storage.Session{UserID: "user-2", StartTime: base})
	middle := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base.Add(time.Hour)})

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	want := []string{early.ID, middle.ID, late.ID}
	if diff := cmp.Diff(want, ids(sessions)); diff != "" {
		t.Errorf("List order mismatch (-want +got):\n%s", diff)
	}

	// An open session keeps its zero end time through storage.
	for _, s := range sessions {
		if !s.EndTime.IsZero() {
			t.Errorf("Expected open session %s, got end %v", s.ID, s.EndTime)
		}
	}
}

func testSessionListByUser(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	a := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base.Add(time.Hour)})
	mustCreate(t, store, storage.Session{UserID: "user-2", StartTime: base})
	b := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})

	sessions, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}

	if diff := cmp.Diff([]string{b.ID, a.ID}, ids(sessions)); diff != "" {
		t.Errorf("ListByUser mismatch (-want +got):\n%s", diff)
	}

	empty, err := store.ListByUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no sessions for unknown user, got %d", len(empty))
	}
}

func testSessionListWithinRange(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	next := day.Add(24 * time.Hour)

	atStart := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: day})
	inside := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: day.Add(10 * time.Hour)})
	lastMilli := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: next.Add(-time.Millisecond)})
	mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: next})
	mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: day.Add(-time.Millisecond)})
	other := mustCreate(t, store, storage.Session{UserID: "user-2", StartTime: day.Add(time.Hour)})

	sessions, err := store.ListWithinRange(ctx, "user-1", day, next)
	if err != nil {
		t.Fatalf("ListWithinRange failed: %v", err)
	}

	want := []string{atStart.ID, inside.ID, lastMilli.ID}
	if diff := cmp.Diff(want, ids(sessions)); diff != "" {
		t.Errorf("ListWithinRange mismatch (-want +got):\n%s", diff)
	}

	all, err := store.ListWithinRange(ctx, "", day, next)
	if err != nil {
		t.Fatalf("ListWithinRange failed: %v", err)
	}

	want = []string{atStart.ID, other.ID, inside.ID, lastMilli.ID}
	if diff := cmp.Diff(want, ids(all)); diff != "" {
		t.Errorf("ListWithinRange for all users mismatch (-want +got):\n%s", diff)
	}
}

func testSessionLastByUser(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	if _, err := store.LastByUser(ctx, "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before any session, got %v", err)
	}

	mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})
	last := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base.Add(5 * time.Hour)})
	mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base.Add(time.Hour)})
	mustCreate(t, store, storage.Session{UserID: "user-2", StartTime: base.Add(9 * time.Hour)})

	got, err := store.LastByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("LastByUser failed: %v", err)
	}
	if got.ID != last.ID {
		t.Errorf("Expected last session %s, got %s", last.ID, got.ID)
	}
}

func testSessionUpdate(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	session := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})

	session.EndTime = base.Add(90 * time.Minute)
	session.Pauses = append(session.Pauses, storage.Pause{Start: base.Add(time.Minute), End: base.Add(2 * time.Minute)})
	session.Notes = "done"

	if err := store.Update(ctx, &session); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if session.Revision != 2 {
		t.Errorf("Expected revision 2 after update, got %d", session.Revision)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	sameSession(t, session, *got)

	// Revision 0 writes unconditionally.
	blind := *got
	blind.Revision = 0
	blind.EyeState = "rested"
	if err := store.Update(ctx, &blind); err != nil {
		t.Fatalf("unconditional Update failed: %v", err)
	}
	if blind.Revision != 3 {
		t.Errorf("Expected revision 3 after unconditional update, got %d", blind.Revision)
	}
}

func testSessionUpdateConflict(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	session := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})

	first := session
	second := session

	first.Notes = "first writer"
	if err := store.Update(ctx, &first); err != nil {
		t.Fatalf("first Update failed: %v", err)
	}

	second.Notes = "second writer"
	if err := store.Update(ctx, &second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("Expected ErrConflict for stale revision, got %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Notes != "first writer" {
		t.Errorf("Expected first writer to win, got notes %q", got.Notes)
	}
}

func testSessionUpdateMissing(t *testing.T, st storage.Store) {
	session := storage.Session{ID: "missing", UserID: "user-1", StartTime: base}

	err := st.Sessions().Update(context.Background(), &session)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func testSessionUpdateMovesUser(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	session := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})
	session.UserID = "user-2"
	if err := store.Update(ctx, &session); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	old, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(old) != 0 {
		t.Errorf("Expected session to leave user-1, got %v", ids(old))
	}

	moved, err := store.ListByUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if diff := cmp.Diff([]string{session.ID}, ids(moved)); diff != "" {
		t.Errorf("ListByUser mismatch (-want +got):\n%s", diff)
	}
}

func testSessionDelete(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	session := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})

	if err := store.Delete(ctx, session.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, session.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, session.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}

	remaining, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected user index to be empty, got %v", ids(remaining))
	}
}

func testSessionDeleteAll(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	for i := 0; i < 3; i++ {
		mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base.Add(time.Duration(i) * time.Hour)})
	}

	n, err := store.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 deleted sessions, got %d", n)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected no sessions after DeleteAll, got %d", len(sessions))
	}

	n, err = store.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll on empty store failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 deleted sessions on empty store, got %d", n)
	}
}

// testSessionDistantYears stores instants outside the int64 nanosecond range
// (1678-2262) and expects them back unchanged and correctly ordered.
func testSessionDistantYears(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	earlyStart := time.Date(1600, 1, 1, 10, 0, 0, 0, time.UTC)
	lateStart := time.Date(2300, 1, 1, 10, 0, 0, 123456789, time.UTC)

	late := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: lateStart, EndTime: lateStart.Add(time.Hour)})
	early := mustCreate(t, store, storage.Session{
		UserID:    "user-1",
		StartTime: earlyStart,
		EndTime:   earlyStart.Add(2 * time.Hour),
		Pauses:    []storage.Pause{{Start: earlyStart.Add(time.Minute), End: earlyStart.Add(2 * time.Minute)}},
	})
	middle := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})

	for _, want := range []storage.Session{early, late} {
		got, err := store.Get(ctx, want.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		sameSession(t, want, *got)
	}

	sessions, err := store.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if diff := cmp.Diff([]string{early.ID, middle.ID, late.ID}, ids(sessions)); diff != "" {
		t.Errorf("ListByUser order mismatch (-want +got):\n%s", diff)
	}

	last, err := store.LastByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("LastByUser failed: %v", err)
	}
	if last.ID != late.ID {
		t.Errorf("Expected last session %s, got %s", late.ID, last.ID)
	}

	lateDay := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	inDay, err := store.ListWithinRange(ctx, "user-1", lateDay, lateDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListWithinRange failed: %v", err)
	}
	if diff := cmp.Diff([]string{late.ID}, ids(inDay)); diff != "" {
		t.Errorf("ListWithinRange for 2300-01-01 mismatch (-want +got):\n%s", diff)
	}

	earlyDay := time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
	inDay, err = store.ListWithinRange(ctx, "", earlyDay, earlyDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListWithinRange failed: %v", err)
	}
	if diff := cmp.Diff([]string{early.ID}, ids(inDay)); diff != "" {
		t.Errorf("ListWithinRange for 1600-01-01 mismatch (-want +got):\n%s", diff)
	}
}

func testSessionTimeOutOfRange(t *testing.T, st storage.Store) {
	ctx := context.Background()
	store := st.Sessions()

	tooLate := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)

	bad := storage.Session{UserID: "user-1", StartTime: tooLate}
	if err := store.Create(ctx, &bad); !errors.Is(err, storage.ErrInvalidTime) {
		t.Fatalf("Expected ErrInvalidTime on Create, got %v", err)
	}

	session := mustCreate(t, store, storage.Session{UserID: "user-1", StartTime: base})
	update := session
	update.EndTime = tooLate
	if err := store.Update(ctx, &update); !errors.Is(err, storage.ErrInvalidTime) {
		t.Fatalf("Expected ErrInvalidTime on Update, got %v", err)
	}

	got, err := store.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	sameSession(t, session, *got)

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]string{session.ID}, ids(sessions)); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func testUserLifecycle(t *testing.T, st storage.Store) {
	ctx := context.Background()
	users := st.Users()

	exists, err := users.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected alice not to exist yet")
	}

	alice := storage.User{ID: "alice", Email: "alice@example.com", Age: 34}
	if err := users.Create(ctx, &alice); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if alice.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}

	if err := users.Create(ctx, &storage.User{ID: "alice"}); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("Expected ErrConflict for duplicate user, got %v", err)
	}

	generated := storage.User{Email: "bob@example.com"}
	if err := users.Create(ctx, &generated); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if generated.ID == "" {
		t.Error("Expected Create to assign an ID")
	}

	got, err := users.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Email != alice.Email || got.Age != alice.Age {
		t.Errorf("Expected %+v, got %+v", alice, got)
	}

	list, err := users.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("Expected 2 users, got %d", len(list))
	}

	exists, err = users.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Expected alice to exist")
	}

	if err := users.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := users.Get(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := users.Delete(ctx, "alice"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}
