// Package users manages the user records sessions belong to and answers
// existence checks for the session service.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/goodtune/sessiontracker/internal/metrics"
	"github.com/goodtune/sessiontracker/internal/storage"
)

var (
	// ErrNotFound is returned when no user has the requested ID.
	ErrNotFound = errors.New("user not found")

	// ErrExists is returned when creating a user whose ID is taken.
	ErrExists = errors.New("user already exists")

	// ErrInvalid is returned for user records that fail validation.
	ErrInvalid = errors.New("invalid user")
)

// Config holds checker configuration
type Config struct {
	// CacheSize bounds the number of cached positive lookups. Zero disables caching.
	CacheSize int
	CacheTTL  time.Duration
}

// Checker answers user existence checks and manages user records. Only
// positive lookups are cached, so a user created after a miss is seen
// immediately.
type Checker struct {
	store  storage.UserStore
	cache  *expirable.LRU[string, struct{}]
	logger zerolog.Logger
}

// NewChecker creates a user checker over store
func NewChecker(store storage.UserStore, config Config, logger zerolog.Logger) *Checker {
	c := &Checker{
		store:  store,
		logger: logger.With().Str("component", "users").Logger(),
	}

	if config.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, struct{}](config.CacheSize, nil, config.CacheTTL)
	}

	c.logger.Debug().
		Int("cache_size", config.CacheSize).
		Dur("cache_ttl", config.CacheTTL).
		Msg("User checker initialized")

	return c
}

// UserExists reports whether a user with id exists.
func (c *Checker) UserExists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	if c.cache != nil {
		if _, ok := c.cache.Get(id); ok {
			metrics.UserCacheHits.Inc()
			return true, nil
		}
		metrics.UserCacheMisses.Inc()
	}

	exists, err := c.store.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("lookup user %s: %w", id, err)
	}

	if exists && c.cache != nil {
		c.cache.Add(id, struct{}{})
	}

	return exists, nil
}

// Create stores a new user. An empty ID is assigned by the store.
func (c *Checker) Create(ctx context.Context, user *storage.User) error {
	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.TrimSpace(user.Email)
	if user.Age < 0 {
		return fmt.Errorf("%w: age must not be negative", ErrInvalid)
	}

	if err := c.store.Create(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return ErrExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	c.logger.Info().Str("user_id", user.ID).Msg("User created")
	return nil
}

// Get returns one user.
func (c *Checker) Get(ctx context.Context, id string) (*storage.User, error) {
	user, err := c.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

// List returns all users.
func (c *Checker) List(ctx context.Context) ([]storage.User, error) {
	users, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Delete removes a user and forgets any cached lookup for it. Sessions of
// the user are kept.
func (c *Checker) Delete(ctx context.Context, id string) error {
	if c.cache != nil {
		c.cache.Remove(id)
	}

	if err := c.store.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user %s: %w", id, err)
	}

	c.logger.Info().Str("user_id", id).Msg("User deleted")
	return nil
}
