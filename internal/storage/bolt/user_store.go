package bolt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
	"go.etcd.io/bbolt"
)

type userStore struct {
	db *bbolt.DB
}

func (s *userStore) Get(ctx context.Context, id string) (*storage.User, error) {
	return getBucketValue[storage.User](ctx, s.db, bucketUsers, id)
}

func (s *userStore) List(ctx context.Context) ([]storage.User, error) {
	users, err := listBucket[storage.User](ctx, s.db, bucketUsers)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *userStore) Create(ctx context.Context, user *storage.User) error {
	if user.ID == "" {
		user.ID = storage.NewID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	data, err := marshal(user)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsers))
		if b == nil {
			return fmt.Errorf("users bucket missing")
		}
		if b.Get([]byte(user.ID)) != nil {
			return fmt.Errorf("user %s already exists: %w", user.ID, storage.ErrConflict)
		}
		return b.Put([]byte(user.ID), data)
	})
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	return deleteBucketValue(ctx, s.db, bucketUsers, id)
}

func (s *userStore) Exists(ctx context.Context, id string) (bool, error) {
	exists := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketUsers))
		if b == nil {
			return nil
		}
		exists = b.Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}
