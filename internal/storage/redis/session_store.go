package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
	keys   keys
}

// Get retrieves a session by ID
func (s *sessionStore) Get(ctx context.Context, id string) (*storage.Session, error) {
	data, err := s.client.HGetAll(ctx, s.keys.session(id)).Result()
	if err != nil {
		return nil, err
	}

	return parseSession(data)
}

// List returns every session ordered by start time
func (s *sessionStore) List(ctx context.Context) ([]storage.Session, error) {
	ids, err := s.client.ZRange(ctx, s.keys.sessions(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	return s.fetch(ctx, ids)
}

// ListByUser returns the sessions of one user ordered by start time
func (s *sessionStore) ListByUser(ctx context.Context, userID string) ([]storage.Session, error) {
	ids, err := s.client.ZRange(ctx, s.keys.userSessions(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	return s.fetch(ctx, ids)
}

// ListWithinRange returns sessions starting in [start, end)
func (s *sessionStore) ListWithinRange(ctx context.Context, userID string, start, end time.Time) ([]storage.Session, error) {
	index := s.keys.sessions()
	if userID != "" {
		index = s.keys.userSessions(userID)
	}

	// Scores are truncated to milliseconds, so the query is inclusive on both
	// ends and the exact bounds are applied after loading.
	ids, err := s.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{
		Min: strconv.FormatInt(score(start), 10),
		Max: strconv.FormatInt(score(end), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	sessions, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := sessions[:0]
	for _, session := range sessions {
		if storage.InRange(session.StartTime, start, end) {
			filtered = append(filtered, session)
		}
	}

	return filtered, nil
}

// LastByUser returns the session of a user with the latest start time
func (s *sessionStore) LastByUser(ctx context.Context, userID string) (*storage.Session, error) {
	sessions, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(sessions) == 0 {
		return nil, storage.ErrNotFound
	}

	last := sessions[len(sessions)-1]
	return &last, nil
}

// Create inserts a new session
func (s *sessionStore) Create(ctx context.Context, session *storage.Session) error {
	if err := storage.CheckTimes(session); err != nil {
		return err
	}
	storage.PrepareCreate(session, time.Now().UTC())

	pauses, err := encodePauses(session.Pauses)
	if err != nil {
		return err
	}

	keys := []string{
		s.keys.session(session.ID),
		s.keys.sessions(),
		s.keys.userSessions(session.UserID),
	}
	args := []interface{}{
		session.ID,
		session.UserID,
		formatTime(session.StartTime),
		formatTime(session.EndTime),
		pauses,
		session.EyeState,
		session.Notes,
		session.Revision,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
		score(session.StartTime),
	}

	result, err := createSession.Run(ctx, s.client, keys, args...).Text()
	if err != nil {
		return err
	}
	if result == "EXISTS" {
		return fmt.Errorf("session %s already exists: %w", session.ID, storage.ErrConflict)
	}

	return nil
}

// Update replaces the mutable fields of a session, honoring its revision
func (s *sessionStore) Update(ctx context.Context, session *storage.Session) error {
	if err := storage.CheckTimes(session); err != nil {
		return err
	}

	pauses, err := encodePauses(session.Pauses)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	keys := []string{
		s.keys.session(session.ID),
		s.keys.sessions(),
	}
	args := []interface{}{
		s.keys.prefix,
		session.ID,
		session.Revision,
		session.UserID,
		formatTime(session.StartTime),
		formatTime(session.EndTime),
		pauses,
		session.EyeState,
		session.Notes,
		formatTime(now),
		score(session.StartTime),
	}

	result, err := updateSession.Run(ctx, s.client, keys, args...).StringSlice()
	if err != nil {
		return err
	}
	if len(result) == 0 {
		return errors.New("update session: empty script result")
	}

	switch result[0] {
	case "NOT_FOUND":
		return storage.ErrNotFound
	case "CONFLICT":
		return storage.ErrConflict
	}

	if len(result) < 2 {
		return errors.New("update session: missing revision in script result")
	}

	revision, err := strconv.ParseInt(result[1], 10, 64)
	if err != nil {
		return fmt.Errorf("failed to parse revision: %w", err)
	}

	session.Revision = revision
	session.UpdatedAt = now
	return nil
}

// Delete removes a session by ID
func (s *sessionStore) Delete(ctx context.Context, id string) error {
	keys := []string{s.keys.session(id), s.keys.sessions()}

	removed, err := deleteSession.Run(ctx, s.client, keys, s.keys.prefix, id).Int()
	if err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeleteAll removes every session and returns how many were deleted
func (s *sessionStore) DeleteAll(ctx context.Context) (int, error) {
	return deleteAllSessions.Run(ctx, s.client, []string{s.keys.sessions()}, s.keys.prefix).Int()
}

// fetch loads the session hashes for ids with a single pipeline
func (s *sessionStore) fetch(ctx context.Context, ids []string) ([]storage.Session, error) {
	if len(ids) == 0 {
		return []storage.Session{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))

	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keys.session(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	sessions := make([]storage.Session, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", ids[i], err)
		}
		// deleted between the index read and the pipeline
		if len(data) == 0 {
			continue
		}

		session, err := parseSession(data)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", ids[i], err)
		}

		sessions = append(sessions, *session)
	}

	storage.SortByStart(sessions)
	return sessions, nil
}
