// Package rowstore provides keyed lookup of raw application records for
// the by-ID prediction variant. Records are loaded once from the holdout
// frame at pipeline time and read concurrently by the serving process.
package rowstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"credit-underwriter/internal/dataset"
	"credit-underwriter/internal/errs"

	"go.etcd.io/bbolt"
)

const applicationsBucket = "applications"

// Store is a bbolt-backed map from application ID to raw record.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the row store database.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open row store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(applicationsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create applications bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LoadFrame stores every row of the frame keyed by its ID column value.
// Rows with a missing ID are skipped.
func (s *Store) LoadFrame(f *dataset.Frame) (int, error) {
	idCol, ok := f.Column(dataset.IDColumn)
	if !ok || idCol.Kind != dataset.Numeric {
		return 0, fmt.Errorf("frame has no numeric %s column: %w", dataset.IDColumn, errs.ErrInvalidInput)
	}

	stored := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(applicationsBucket))
		for i := 0; i < f.Rows(); i++ {
			if idCol.Missing[i] {
				continue
			}
			rec := dataset.Record(f, i)
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record %d: %w", i, err)
			}
			if err := b.Put(idKey(int64(idCol.Nums[i])), data); err != nil {
				return err
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

// Get returns the raw record for an application ID, or ErrNotFound.
func (s *Store) Get(id int64) (map[string]any, error) {
	var rec map[string]any
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(applicationsBucket)).Get(idKey(id))
		if v == nil {
			return fmt.Errorf("application %d: %w", id, errs.ErrNotFound)
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// idKey encodes IDs big-endian so bucket iteration stays in numeric order.
func idKey(id int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}
