// Package store persists the resolution cache, the resume store and derived
// cipher transform programs in a single BoltDB file. Entries are overwritten
// in place, never appended and grown.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketResolutions = []byte("resolutions")
	bucketResume      = []byte("resume")
	bucketPrograms    = []byte("cipher_programs")
)

// Store implements the module's persisted key-value records. With an empty
// directory it runs memory-only, which is what most tests use.
type Store struct {
	db *bolt.DB

	mu  sync.RWMutex
	mem map[string][]byte // memory-only mode
}

// Open creates or opens the store under dir. An empty dir selects
// memory-only mode (no persistence).
func Open(dir string) (*Store, error) {
	if dir == "" {
		return &Store{mem: make(map[string][]byte)}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "steadycast.db")
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketResolutions, bucketResume, bucketPrograms} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func memKey(bucket []byte, key string) string { return string(bucket) + ":" + key }

func (s *Store) get(bucket []byte, key string, dest any) bool {
	if s.db == nil {
		s.mu.RLock()
		data, ok := s.mem[memKey(bucket, key)]
		s.mu.RUnlock()
		if !ok {
			return false
		}
		return json.Unmarshal(data, dest) == nil
	}

	var data []byte
	_ = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucket).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if data == nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *Store) put(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.db == nil {
		s.mu.Lock()
		s.mem[memKey(bucket, key)] = data
		s.mu.Unlock()
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *Store) delete(bucket []byte, key string) error {
	if s.db == nil {
		s.mu.Lock()
		delete(s.mem, memKey(bucket, key))
		s.mu.Unlock()
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}
