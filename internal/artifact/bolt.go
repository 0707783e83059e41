package artifact

import (
	"context"
	"fmt"
	"time"

	"credit-underwriter/internal/errs"

	"go.etcd.io/bbolt"
)

const artifactsBucket = "artifacts"

// BoltStore keeps artifact blobs in a single-file bbolt database, useful
// when trainer and server share a host without an external registry.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database and its bucket.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open artifact database: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create artifacts bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BoltStore) Put(_ context.Context, key string, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).Put([]byte(key), data)
	})
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(artifactsBucket)).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("artifact %s: %w", key, errs.ErrArtifactUnavailable)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
