package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrConflict is returned when an update carries a stale revision.
var ErrConflict = errors.New("storage: revision conflict")

// ErrInvalidTime is returned for timestamps outside years 0000-9999.
var ErrInvalidTime = errors.New("storage: time out of range")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
	Users() UserStore
}

// SessionStore manages tracked sessions.
//
// List methods return sessions ordered by start time, oldest first.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	// ListWithinRange returns sessions whose start time is in [start, end).
	// An empty userID matches every user.
	ListWithinRange(ctx context.Context, userID string, start, end time.Time) ([]Session, error)
	LastByUser(ctx context.Context, userID string) (*Session, error)
	// Create assigns ID, Revision and timestamps on the passed session.
	Create(ctx context.Context, session *Session) error
	// Update replaces the mutable fields of an existing session. A non-zero
	// Revision must match the stored one or ErrConflict is returned. On
	// success Revision and UpdatedAt are refreshed on the passed session.
	Update(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
}

// UserStore manages the users sessions belong to.
type UserStore interface {
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}
