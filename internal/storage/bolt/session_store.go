package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) Get(ctx context.Context, id string) (*storage.Session, error) {
	return getBucketValue[storage.Session](ctx, s.db, bucketSessions, id)
}

func (s *sessionStore) List(ctx context.Context) ([]storage.Session, error) {
	sessions, err := listBucket[storage.Session](ctx, s.db, bucketSessions)
	if err != nil {
		return nil, err
	}
	storage.SortByStart(sessions)
	return sessions, nil
}

func (s *sessionStore) ListByUser(ctx context.Context, userID string) ([]storage.Session, error) {
	return s.scanUser(ctx, userID, nil, nil)
}

func (s *sessionStore) ListWithinRange(ctx context.Context, userID string, start, end time.Time) ([]storage.Session, error) {
	if userID != "" {
		return s.scanUser(ctx, userID, timeKey(start), timeKey(end))
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]storage.Session, 0)
	for _, session := range all {
		if storage.InRange(session.StartTime, start, end) {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (s *sessionStore) LastByUser(ctx context.Context, userID string) (*storage.Session, error) {
	var last *storage.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		index := userIndexBucket(tx, userID)
		if index == nil {
			return storage.ErrNotFound
		}
		_, id := index.Cursor().Last()
		if id == nil {
			return storage.ErrNotFound
		}
		session, err := loadSession(tx, string(id))
		if err != nil {
			return err
		}
		last = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return last, nil
}

func (s *sessionStore) Create(ctx context.Context, session *storage.Session) error {
	if err := storage.CheckTimes(session); err != nil {
		return err
	}
	storage.PrepareCreate(session, time.Now().UTC())

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return fmt.Errorf("sessions bucket missing")
		}
		if b.Get([]byte(session.ID)) != nil {
			return fmt.Errorf("session %s already exists: %w", session.ID, storage.ErrConflict)
		}
		return putSession(tx, b, session)
	})
}

// Update performs the revision check and the write inside one transaction.
func (s *sessionStore) Update(ctx context.Context, session *storage.Session) error {
	if err := storage.CheckTimes(session); err != nil {
		return err
	}

	updated := *session
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return fmt.Errorf("sessions bucket missing")
		}

		current, err := loadSession(tx, session.ID)
		if err != nil {
			return err
		}
		if session.Revision != 0 && session.Revision != current.Revision {
			return storage.ErrConflict
		}

		if err := removeIndex(tx, current); err != nil {
			return err
		}

		updated.CreatedAt = current.CreatedAt
		updated.Revision = current.Revision + 1
		updated.UpdatedAt = time.Now().UTC()
		if updated.Pauses == nil {
			updated.Pauses = []storage.Pause{}
		}
		return putSession(tx, b, &updated)
	})
	if err != nil {
		return err
	}

	session.Revision = updated.Revision
	session.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		current, err := loadSession(tx, id)
		if err != nil {
			return err
		}
		if err := removeIndex(tx, current); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketSessions)).Delete([]byte(id))
	})
}

func (s *sessionStore) DeleteAll(ctx context.Context) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketSessions))
		if b == nil {
			return nil
		}
		deleted = b.Stats().KeyN

		if err := tx.DeleteBucket([]byte(bucketSessions)); err != nil {
			return fmt.Errorf("delete bucket %s: %w", bucketSessions, err)
		}
		if _, err := tx.CreateBucket([]byte(bucketSessions)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketSessions, err)
		}

		root := tx.Bucket([]byte(bucketIndexes))
		if err := root.DeleteBucket([]byte(bucketIndexUser)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("delete user indexes: %w", err)
		}
		_, err := root.CreateBucket([]byte(bucketIndexUser))
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// scanUser walks a user's index between the optional from (inclusive) and
// to (exclusive) time keys.
func (s *sessionStore) scanUser(ctx context.Context, userID string, from, to []byte) ([]storage.Session, error) {
	sessions := make([]storage.Session, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		index := userIndexBucket(tx, userID)
		if index == nil {
			return nil
		}

		c := index.Cursor()
		var k, v []byte
		if from != nil {
			k, v = c.Seek(from)
		} else {
			k, v = c.First()
		}

		for ; k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if to != nil && bytes.Compare(k[:timeKeyLen], to) >= 0 {
				break
			}
			session, err := loadSession(tx, string(v))
			if err != nil {
				return err
			}
			sessions = append(sessions, *session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func loadSession(tx *bbolt.Tx, id string) (*storage.Session, error) {
	b := tx.Bucket([]byte(bucketSessions))
	if b == nil {
		return nil, storage.ErrNotFound
	}
	value := b.Get([]byte(id))
	if value == nil {
		return nil, storage.ErrNotFound
	}
	var session storage.Session
	if err := unmarshal(value, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func putSession(tx *bbolt.Tx, b *bbolt.Bucket, session *storage.Session) error {
	data, err := marshal(session)
	if err != nil {
		return err
	}
	if err := b.Put([]byte(session.ID), data); err != nil {
		return err
	}

	index, err := ensureIndexBucket(tx, bucketIndexUser, session.UserID)
	if err != nil {
		return fmt.Errorf("user index: %w", err)
	}
	return index.Put(indexKey(session.StartTime, session.ID), []byte(session.ID))
}

func removeIndex(tx *bbolt.Tx, session *storage.Session) error {
	index := userIndexBucket(tx, session.UserID)
	if index == nil {
		return nil
	}
	return index.Delete(indexKey(session.StartTime, session.ID))
}
