package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Session is the persisted form of a tracked session. A zero EndTime
// marks a session that has not been ended yet.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Pauses    []Pause   `json:"pauses"`
	EyeState  string    `json:"eye_state"`
	Notes     string    `json:"notes"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pause is one pause interval inside a session.
type Pause struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// User is the owner of sessions.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// PrepareCreate fills in the identity and bookkeeping fields of a session
// about to be inserted.
func PrepareCreate(session *Session, now time.Time) {
	if session.ID == "" {
		session.ID = NewID()
	}
	session.Revision = 1
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.Pauses == nil {
		session.Pauses = []Pause{}
	}
}

// SortByStart orders sessions by start time, then ID for stable output.
func SortByStart(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].StartTime.Equal(sessions[j].StartTime) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
}

// InRange reports whether t lies in [start, end).
func InRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

var (
	minTime = time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// CheckTimes rejects sessions with a timestamp no backend can store
// faithfully.
func CheckTimes(session *Session) error {
	check := func(field string, t time.Time) error {
		if t.Before(minTime) || t.After(maxTime) {
			return fmt.Errorf("%s %s: %w", field, t.Format(time.RFC3339), ErrInvalidTime)
		}
		return nil
	}

	if err := check("start_time", session.StartTime); err != nil {
		return err
	}
	if err := check("end_time", session.EndTime); err != nil {
		return err
	}
	for _, p := range session.Pauses {
		if err := check("pause start", p.Start); err != nil {
			return err
		}
		if err := check("pause end", p.End); err != nil {
			return err
		}
	}
	return nil
}
