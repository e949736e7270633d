// Package session holds the session entity, its duration arithmetic, the
// aggregate metrics over a user's history and the service that drives the
// session lifecycle against a storage backend.
package session

import (
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
)

// Pause is one interval excluded from a session's net duration.
type Pause struct {
	Start time.Time
	End   time.Time
}

// Duration returns the absolute length of the pause.
func (p Pause) Duration() time.Duration {
	return absDuration(p.End.Sub(p.Start))
}

// Session is one tracked interval of user activity. A zero EndTime means the
// session is still open.
type Session struct {
	ID        string
	UserID    string
	StartTime time.Time
	EndTime   time.Time
	Pauses    []Pause
	EyeState  string
	Notes     string
	Revision  int64
}

// Option configures optional fields in New.
type Option func(*Session)

// WithID sets the session ID.
func WithID(id string) Option {
	return func(s *Session) { s.ID = id }
}

// WithPauses sets the pause list.
func WithPauses(pauses ...Pause) Option {
	return func(s *Session) { s.Pauses = append([]Pause(nil), pauses...) }
}

// WithEyeState sets the eye state note.
func WithEyeState(state string) Option {
	return func(s *Session) { s.EyeState = state }
}

// WithNotes sets the free-form notes.
func WithNotes(notes string) Option {
	return func(s *Session) { s.Notes = notes }
}

// New builds a session. Timestamps are normalized to UTC; their ordering is
// not validated.
func New(userID string, start, end time.Time, opts ...Option) *Session {
	s := &Session{
		UserID:    userID,
		StartTime: utc(start),
		EndTime:   utc(end),
		Pauses:    []Pause{},
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.Pauses {
		s.Pauses[i] = Pause{Start: utc(s.Pauses[i].Start), End: utc(s.Pauses[i].End)}
	}
	return s
}

// Open reports whether the session has no end time yet.
func (s *Session) Open() bool {
	return s.EndTime.IsZero()
}

// PauseDuration returns the summed duration of all pauses.
func (s *Session) PauseDuration() time.Duration {
	var total time.Duration
	for _, p := range s.Pauses {
		total += p.Duration()
	}
	return total
}

// NetDuration returns |EndTime - StartTime| minus the pause total. The result
// is not clamped, so pauses outside the session span can make it negative.
// ok is false for open sessions.
func (s *Session) NetDuration() (d time.Duration, ok bool) {
	if s.Open() {
		return 0, false
	}
	return absDuration(s.EndTime.Sub(s.StartTime)) - s.PauseDuration(), true
}

// AddPause appends a pause. It does not persist the session.
func (s *Session) AddPause(start, end time.Time) {
	s.Pauses = append(s.Pauses, Pause{Start: utc(start), End: utc(end)})
}

// FromRecord rebuilds a session from its stored form.
func FromRecord(r storage.Session) *Session {
	pauses := make([]Pause, len(r.Pauses))
	for i, p := range r.Pauses {
		pauses[i] = Pause{Start: utc(p.Start), End: utc(p.End)}
	}
	return &Session{
		ID:        r.ID,
		UserID:    r.UserID,
		StartTime: utc(r.StartTime),
		EndTime:   utc(r.EndTime),
		Pauses:    pauses,
		EyeState:  r.EyeState,
		Notes:     r.Notes,
		Revision:  r.Revision,
	}
}

// Record converts the session to its stored form.
func (s *Session) Record() storage.Session {
	pauses := make([]storage.Pause, len(s.Pauses))
	for i, p := range s.Pauses {
		pauses[i] = storage.Pause{Start: p.Start, End: p.End}
	}
	return storage.Session{
		ID:        s.ID,
		UserID:    s.UserID,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Pauses:    pauses,
		EyeState:  s.EyeState,
		Notes:     s.Notes,
		Revision:  s.Revision,
	}
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
