// Package history persists the last remediation per resource so repeated
// sweeps do not re-remediate or re-notify within the dedup window. Only
// sweep and daemon modes open a store; the event-driven handler path owns
// no local state.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/remedian/remedian/types"
)

// Bucket names in bbolt
var bucketRemediations = []byte("remediations")

// Record is the stored per-resource remediation history
type Record struct {
	ResourceID   string        `json:"resource_id"`
	Outcome      types.Outcome `json:"outcome"`
	Action       string        `json:"action,omitempty"`
	RemediatedAt time.Time     `json:"remediated_at"`
}

// Store is a bbolt-backed remediation history
type Store struct {
	db *bbolt.DB
}

// Open creates or opens a history store at the given path
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRemediations)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Put records a remediation for a resource, replacing any earlier record
func (s *Store) Put(rec Record) error {
	if rec.ResourceID == "" {
		return fmt.Errorf("history record resource ID cannot be empty")
	}
	if rec.RemediatedAt.IsZero() {
		rec.RemediatedAt = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRemediations).Put([]byte(rec.ResourceID), data)
	})
}

// Get returns the last remediation record for a resource
func (s *Store) Get(resourceID string) (*Record, bool, error) {
	var rec Record
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRemediations).Get([]byte(resourceID))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("corrupt history record for %s: %w", resourceID, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &rec, true, nil
}

// SeenWithin reports whether the resource was remediated within the window.
// A zero window disables dedup.
func (s *Store) SeenWithin(resourceID string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}

	rec, found, err := s.Get(resourceID)
	if err != nil || !found {
		return false, err
	}
	return time.Since(rec.RemediatedAt) < window, nil
}

// Count returns the number of resources with history
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketRemediations).Stats().KeyN
		return nil
	})
	return count, err
}
