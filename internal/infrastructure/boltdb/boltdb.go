package boltdb

import (
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the embedded store.
const (
	BucketTasks       = "tasks"
	BucketStats       = "weekly_stats"
	BucketUsers       = "users"
	BucketChats       = "chats"
	BucketMemberships = "memberships"
)

// DefaultBuckets lists every bucket the repositories expect to exist.
var DefaultBuckets = []string{BucketTasks, BucketStats, BucketUsers, BucketChats, BucketMemberships}

// Store wraps BoltDB for single-node deployments and tests.
type Store struct {
	db *bolt.DB
}

// Open initializes the BoltDB file and ensures the buckets exist.
func Open(path string, buckets ...string) (*Store, error) {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying handle to repositories.
func (s *Store) DB() *bolt.DB {
	if s == nil {
		return nil
	}
	return s.db
}

// Ping verifies that the file is open and readable.
func (s *Store) Ping() error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(BucketTasks)) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
