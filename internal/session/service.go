package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/sessiontracker/internal/metrics"
	"github.com/goodtune/sessiontracker/internal/storage"
)

// DefaultDailyBudget caps a user's active time per UTC day.
const DefaultDailyBudget = 15 * time.Hour

// UserChecker reports whether a user exists.
type UserChecker interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Config holds service policy.
type Config struct {
	// DailyBudget is the per-day active time used to derive the end time of
	// a started session. Zero means DefaultDailyBudget.
	DailyBudget time.Duration

	// RequireEndTime rejects EndSession calls without an end time instead of
	// falling back to the session's start time.
	RequireEndTime bool

	// ClampBudget keeps the remaining budget from going below zero, so a
	// started session never ends before it begins.
	ClampBudget bool

	Clock Clock
}

// Service manages the session lifecycle and computes metrics.
type Service struct {
	store  storage.SessionStore
	users  UserChecker
	config Config
	logger zerolog.Logger
}

// NewService creates a session service
func NewService(store storage.SessionStore, users UserChecker, config Config, logger zerolog.Logger) *Service {
	if config.DailyBudget == 0 {
		config.DailyBudget = DefaultDailyBudget
	}
	if config.Clock == nil {
		config.Clock = RealClock{}
	}

	return &Service{
		store:  store,
		users:  users,
		config: config,
		logger: logger.With().Str("component", "sessions").Logger(),
	}
}

// AddSession stores a fully specified session.
func (s *Service) AddSession(ctx context.Context, session *Session) (*Session, error) {
	if err := validate(session); err != nil {
		return nil, err
	}

	record := session.Record()
	record.ID = ""
	if err := s.store.Create(ctx, &record); err != nil {
		observe("add", err)
		return nil, s.storeError("create session", err)
	}
	observe("add", nil)

	s.logger.Debug().Str("session_id", record.ID).Str("user_id", record.UserID).Msg("Session added")
	return FromRecord(record), nil
}

// UpdateSession replaces the stored session with the same ID. The owner of a
// session cannot change; an empty UserID keeps the stored one. A non-zero
// Revision must match the stored revision.
func (s *Service) UpdateSession(ctx context.Context, session *Session) (*Session, error) {
	existing, err := s.load(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	if session.UserID == "" {
		session.UserID = existing.UserID
	}
	if session.UserID != existing.UserID {
		return nil, fmt.Errorf("%w: user of session %s cannot change", ErrInvalidSession, session.ID)
	}
	if err := validate(session); err != nil {
		return nil, err
	}

	updated, err := s.write(ctx, "update", session)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("session_id", updated.ID).Int64("revision", updated.Revision).Msg("Session updated")
	return updated, nil
}

// Sessions returns every session ordered by start time.
func (s *Service) Sessions(ctx context.Context) ([]*Session, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return fromRecords(records), nil
}

// SessionsByUser returns the sessions of one user ordered by start time.
func (s *Service) SessionsByUser(ctx context.Context, userID string) ([]*Session, error) {
	records, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for user %s: %w", userID, err)
	}
	return fromRecords(records), nil
}

// LastSession returns the most recently started session of a user.
func (s *Service) LastSession(ctx context.Context, userID string) (*Session, error) {
	record, err := s.store.LastByUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("last session for user %s: %w", userID, err)
	}
	return FromRecord(*record), nil
}

// Session returns one session by ID.
func (s *Service) Session(ctx context.Context, id string) (*Session, error) {
	return s.load(ctx, id)
}

// DeleteSession removes one session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		observe("delete", err)
		return s.storeError("delete session", err)
	}
	observe("delete", nil)

	s.logger.Debug().Str("session_id", id).Msg("Session deleted")
	return nil
}

// DeleteAllSessions removes every session and returns how many were removed.
func (s *Service) DeleteAllSessions(ctx context.Context) (int, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		observe("delete_all", err)
		return 0, fmt.Errorf("delete all sessions: %w", err)
	}
	observe("delete_all", nil)

	s.logger.Info().Int("count", n).Msg("All sessions deleted")
	return n, nil
}

// StartSession creates a session for userID beginning at start, or now when
// start is zero. Its end time is derived from the daily budget: the net
// duration of the user's other sessions starting on the same UTC day is
// subtracted from the budget and the remainder added to start.
func (s *Service) StartSession(ctx context.Context, userID string, start time.Time) (*Session, error) {
	exists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user %s: %w", userID, err)
	}
	if !exists {
		observe("start", ErrUserNotFound)
		return nil, ErrUserNotFound
	}

	if start.IsZero() {
		start = s.config.Clock.Now()
	}
	start = start.UTC()

	dayStart := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	today, err := s.store.ListWithinRange(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", dayStart.Format("2006-01-02"), err)
	}

	var used time.Duration
	for _, record := range today {
		if d, ok := FromRecord(record).NetDuration(); ok {
			used += d
		}
	}

	remaining := s.config.DailyBudget - used
	if remaining <= 0 {
		metrics.BudgetExhausted.Inc()
		if s.config.ClampBudget {
			remaining = 0
		}
	}

	session := New(userID, start, start.Add(remaining))
	record := session.Record()
	if err := s.store.Create(ctx, &record); err != nil {
		observe("start", err)
		return nil, fmt.Errorf("create session: %w", err)
	}
	observe("start", nil)

	s.logger.Info().
		Str("session_id", record.ID).
		Str("user_id", userID).
		Time("start", start).
		Dur("used_today", used).
		Dur("remaining", remaining).
		Msg("Session started")

	return FromRecord(record), nil
}

// EndSession sets the end time of a session. A nil end falls back to the
// session's start time unless the service requires an explicit end.
func (s *Service) EndSession(ctx context.Context, id string, end *time.Time) (*Session, error) {
	if end == nil && s.config.RequireEndTime {
		return nil, ErrEndTimeRequired
	}

	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if end == nil {
		session.EndTime = session.StartTime
	} else {
		session.EndTime = end.UTC()
	}

	updated, err := s.write(ctx, "end", session)
	if err != nil {
		return nil, err
	}

	net, _ := updated.NetDuration()
	metrics.SessionNetDuration.Observe(net.Seconds())

	s.logger.Info().Str("session_id", id).Time("end", updated.EndTime).Dur("net", net).Msg("Session ended")
	return updated, nil
}

// AddPause appends a pause interval to a session.
func (s *Service) AddPause(ctx context.Context, id string, start, end time.Time) (*Session, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	session.AddPause(start, end)

	updated, err := s.write(ctx, "pause", session)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("session_id", id).Int("pauses", len(updated.Pauses)).Msg("Pause added")
	return updated, nil
}

// Metrics computes the aggregate metrics of a user's sessions.
func (s *Service) Metrics(ctx context.Context, userID string) (Metrics, error) {
	sessions, err := s.SessionsByUser(ctx, userID)
	if err != nil {
		return Metrics{}, err
	}
	return Compute(userID, sessions), nil
}

func (s *Service) load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("get session", err)
	}
	return FromRecord(*record), nil
}

// write persists session guarded by its revision.
func (s *Service) write(ctx context.Context, op string, session *Session) (*Session, error) {
	record := session.Record()
	if err := s.store.Update(ctx, &record); err != nil {
		observe(op, err)
		return nil, s.storeError("update session", err)
	}
	observe(op, nil)
	return FromRecord(record), nil
}

func (s *Service) storeError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, storage.ErrConflict):
		metrics.RevisionConflicts.Inc()
		return ErrConflict
	case errors.Is(err, storage.ErrInvalidTime):
		return fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func validate(session *Session) error {
	if session.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidSession)
	}
	if session.StartTime.IsZero() {
		return fmt.Errorf("%w: start time is required", ErrInvalidSession)
	}
	return nil
}

func fromRecords(records []storage.Session) []*Session {
	sessions := make([]*Session, len(records))
	for i, r := range records {
		sessions[i] = FromRecord(r)
	}
	return sessions
}

func observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound), errors.Is(err, storage.ErrNotFound):
		result = "not_found"
	case errors.Is(err, storage.ErrConflict):
		result = "conflict"
	default:
		result = "error"
	}
	metrics.SessionOperations.WithLabelValues(op, result).Inc()
}
