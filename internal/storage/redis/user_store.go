package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/redis/go-redis/v9"
)

type userStore struct {
	client *redis.Client
	keys   keys
}

// Get retrieves a user by ID
func (s *userStore) Get(ctx context.Context, id string) (*storage.User, error) {
	data, err := s.client.HGetAll(ctx, s.keys.user(id)).Result()
	if err != nil {
		return nil, err
	}

	return parseUser(data)
}

// List returns all users ordered by ID
func (s *userStore) List(ctx context.Context) ([]storage.User, error) {
	ids, err := s.client.SMembers(ctx, s.keys.users()).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []storage.User{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))

	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keys.user(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	users := make([]storage.User, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("load user %s: %w", ids[i], err)
		}
		if len(data) == 0 {
			continue
		}

		user, err := parseUser(data)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", ids[i], err)
		}

		users = append(users, *user)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Create inserts a new user
func (s *userStore) Create(ctx context.Context, user *storage.User) error {
	if user.ID == "" {
		user.ID = storage.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	keys := []string{s.keys.user(user.ID), s.keys.users()}
	args := []interface{}{
		user.ID,
		user.Email,
		user.Age,
		formatTime(user.CreatedAt),
	}

	result, err := createUser.Run(ctx, s.client, keys, args...).Text()
	if err != nil {
		return err
	}
	if result == "EXISTS" {
		return fmt.Errorf("user %s already exists: %w", user.ID, storage.ErrConflict)
	}

	return nil
}

// Delete removes a user by ID
func (s *userStore) Delete(ctx context.Context, id string) error {
	keys := []string{s.keys.user(id), s.keys.users()}

	removed, err := deleteUser.Run(ctx, s.client, keys, id).Int()
	if err != nil {
		return err
	}
	if removed == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Exists reports whether a user record is present
func (s *userStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keys.user(id)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}
