package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
)

type userStore struct {
	db *sql.DB
}

func (s *userStore) Get(ctx context.Context, id string) (*storage.User, error) {
	var (
		user      storage.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, email, age, created_at FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.Email, &user.Age, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userStore) List(ctx context.Context) ([]storage.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, email, age, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := make([]storage.User, 0)
	for rows.Next() {
		var (
			user      storage.User
			createdAt string
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.Age, &createdAt); err != nil {
			return nil, err
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		user.CreatedAt = t
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *userStore) Create(ctx context.Context, user *storage.User) error {
	if user.ID == "" {
		user.ID = storage.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, age, created_at)
		VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		user.ID, user.Email, user.Age, formatTime(user.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s already exists: %w", user.ID, storage.ErrConflict)
	}
	return nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
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

func (s *userStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
