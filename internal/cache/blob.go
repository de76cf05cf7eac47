package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketArtifacts = []byte("artifacts")

// BoltStore is a BlobStore backed by a bbolt file. Records are JSON-encoded
// under their fingerprint key.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the artifact database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cache: open artifact db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketArtifacts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Get reads the record stored under key.
func (s *BoltStore) Get(key string) (Record, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketArtifacts).Get([]byte(key)); v != nil {
			raw = append(raw, v...)
		}
		return nil
	})
	if err != nil {
		return Record{}, false, err
	}
	if raw == nil {
		return Record{}, false, nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: %s", ErrCorruptEntry, key)
	}
	return rec, true, nil
}

// Put stores rec under key, replacing any previous record.
func (s *BoltStore) Put(key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).Put([]byte(key), raw)
	})
}

// Delete removes the record under key.
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).Delete([]byte(key))
	})
}

// Keys lists every stored fingerprint.
func (s *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketArtifacts).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// MemStore is an in-memory BlobStore for tests and cache-less setups.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]Record
	corrupt map[string]bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[string]Record),
		corrupt: make(map[string]bool),
	}
}

// Get returns the record under key.
func (s *MemStore) Get(key string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.corrupt[key] {
		return Record{}, false, fmt.Errorf("%w: %s", ErrCorruptEntry, key)
	}
	rec, ok := s.records[key]
	return rec, ok, nil
}

// Put stores rec under key.
func (s *MemStore) Put(key string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = rec
	return nil
}

// Delete removes the record under key.
func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	delete(s.corrupt, key)
	return nil
}

// Keys lists every stored key.
func (s *MemStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	for k := range s.corrupt {
		keys = append(keys, k)
	}
	return keys, nil
}

// Corrupt marks key as undecodable, for exercising the drop-on-corrupt path.
func (s *MemStore) Corrupt(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt[key] = true
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }
