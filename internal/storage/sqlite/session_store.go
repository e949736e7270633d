package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
)

const sessionColumns = `id, user_id, start_time, end_time, pauses, eye_state, notes, revision, created_at, updated_at`

type sessionStore struct {
	db *sql.DB
}

func (s *sessionStore) Get(ctx context.Context, id string) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) List(ctx context.Context) ([]storage.Session, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY start_time, id`)
}

func (s *sessionStore) ListByUser(ctx context.Context, userID string) ([]storage.Session, error) {
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY start_time, id`, userID)
}

func (s *sessionStore) ListWithinRange(ctx context.Context, userID string, start, end time.Time) ([]storage.Session, error) {
	if userID == "" {
		return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions
			WHERE start_time >= ? AND start_time < ?
			ORDER BY start_time, id`, formatTime(start), formatTime(end))
	}
	return s.query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND start_time >= ? AND start_time < ?
		ORDER BY start_time, id`, userID, formatTime(start), formatTime(end))
}

func (s *sessionStore) LastByUser(ctx context.Context, userID string) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? ORDER BY start_time DESC, id DESC LIMIT 1`, userID)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *sessionStore) Create(ctx context.Context, session *storage.Session) error {
	if err := storage.CheckTimes(session); err != nil {
		return err
	}
	storage.PrepareCreate(session, time.Now().UTC())

	pauses, err := json.Marshal(session.Pauses)
	if err != nil {
		return fmt.Errorf("marshal pauses: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, session.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("session %s already exists: %w", session.ID, storage.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		formatTime(session.StartTime),
		nullableTime(session.EndTime),
		string(pauses),
		session.EyeState,
		session.Notes,
		session.Revision,
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return tx.Commit()
}

// Update applies the write only when the stored revision still matches.
func (s *sessionStore) Update(ctx context.Context, session *storage.Session) error {
	if err := storage.CheckTimes(session); err != nil {
		return err
	}

	pauses := session.Pauses
	if pauses == nil {
		pauses = []storage.Pause{}
	}
	encoded, err := json.Marshal(pauses)
	if err != nil {
		return fmt.Errorf("marshal pauses: %w", err)
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var revision int64
	err = tx.QueryRowContext(ctx, `UPDATE sessions SET
			user_id = ?, start_time = ?, end_time = ?, pauses = ?, eye_state = ?, notes = ?,
			revision = revision + 1, updated_at = ?
		WHERE id = ? AND (? = 0 OR revision = ?)
		RETURNING revision`,
		session.UserID,
		formatTime(session.StartTime),
		nullableTime(session.EndTime),
		string(encoded),
		session.EyeState,
		session.Notes,
		formatTime(now),
		session.ID,
		session.Revision,
		session.Revision,
	).Scan(&revision)

	if errors.Is(err, sql.ErrNoRows) {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, session.ID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	session.Revision = revision
	session.UpdatedAt = now
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *sessionStore) DeleteAll(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *sessionStore) query(ctx context.Context, query string, args ...any) ([]storage.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	sessions := make([]storage.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*storage.Session, error) {
	var (
		session   storage.Session
		start     string
		end       sql.NullString
		pauses    string
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&session.ID,
		&session.UserID,
		&start,
		&end,
		&pauses,
		&session.EyeState,
		&session.Notes,
		&session.Revision,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if session.StartTime, err = parseTime(start); err != nil {
		return nil, err
	}
	if end.Valid {
		if session.EndTime, err = parseTime(end.String); err != nil {
			return nil, err
		}
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	session.Pauses = []storage.Pause{}
	if pauses != "" {
		if err := json.Unmarshal([]byte(pauses), &session.Pauses); err != nil {
			return nil, fmt.Errorf("unmarshal pauses: %w", err)
		}
	}

	return &session, nil
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}
