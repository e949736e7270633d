package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/sessiontracker/internal/config"
	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "sessiontracker"

// Store implements the storage.Store interface using Redis
type Store struct {
	client       *redis.Client
	sessionStore *sessionStore
	userStore    *userStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	k := keys{prefix: prefix}

	return &Store{
		client:       client,
		sessionStore: &sessionStore{client: client, keys: k},
		userStore:    &userStore{client: client, keys: k},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Sessions returns the SessionStore implementation
func (s *Store) Sessions() storage.SessionStore {
	return s.sessionStore
}

// Users returns the UserStore implementation
func (s *Store) Users() storage.UserStore {
	return s.userStore
}

// keys builds every Redis key used by the store.
type keys struct {
	prefix string
}

func (k keys) session(id string) string {
	return fmt.Sprintf("%s:session:%s", k.prefix, id)
}

// sessions is the sorted set of all session IDs scored by start time.
func (k keys) sessions() string {
	return k.prefix + ":sessions"
}

func (k keys) userSessions(userID string) string {
	return fmt.Sprintf("%s:sessions:user:%s", k.prefix, userID)
}

func (k keys) user(id string) string {
	return fmt.Sprintf("%s:user:%s", k.prefix, id)
}

func (k keys) users() string {
	return k.prefix + ":users"
}
