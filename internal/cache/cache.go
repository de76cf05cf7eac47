// Package cache stores generated image artifacts keyed by fingerprint with
// per-entry TTLs. An expired entry is logically absent on lookup but is
// not eagerly swept, which lets the pipeline fall back to a stale artifact
// when regeneration fails. Concurrent misses on one key run a single
// generation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrCorruptEntry marks an entry that could not be decoded. The cache
// treats it as a miss and drops it.
var ErrCorruptEntry = errors.New("cache: corrupt entry")

// Artifact is a generated image ready for quantization.
type Artifact struct {
	Data      []byte    `json:"data"`
	MIME      string    `json:"mime"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is an artifact plus its expiry, as held by a BlobStore.
type Record struct {
	Artifact
	ExpiresAt time.Time `json:"expires_at"`
}

// BlobStore persists artifacts by key. Implementations treat both key and
// payload as opaque. At most one live record exists per key.
type BlobStore interface {
	Get(key string) (Record, bool, error)
	Put(key string, rec Record) error
	Delete(key string) error
	// Keys lists every stored key; used by retention pruning.
	Keys() ([]string, error)
	Close() error
}

// Cache is the fingerprint/TTL layer over a BlobStore.
type Cache struct {
	store BlobStore
	group singleflight.Group
	now   func() time.Time
}

// New creates a cache over the given blob store.
func New(store BlobStore) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Get returns the artifact for key if present and not expired. A corrupt
// record is dropped and reported as a miss.
func (c *Cache) Get(key string) (Artifact, bool) {
	rec, ok, err := c.store.Get(key)
	if err != nil {
		// Unreadable entry: drop it and regenerate.
		_ = c.store.Delete(key)
		return Artifact{}, false
	}
	if !ok || !c.now().Before(rec.ExpiresAt) {
		return Artifact{}, false
	}
	return rec.Artifact, true
}

// Stale returns the last stored artifact for key regardless of expiry.
// Used as the fallback when regeneration fails.
func (c *Cache) Stale(key string) (Artifact, bool) {
	rec, ok, err := c.store.Get(key)
	if err != nil || !ok {
		return Artifact{}, false
	}
	return rec.Artifact, true
}

// Put stores an artifact under key for ttl. A non-positive ttl is a no-op:
// such content is regenerated on every refresh.
func (c *Cache) Put(key string, a Artifact, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := c.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	return c.store.Put(key, Record{Artifact: a, ExpiresAt: now.Add(ttl)})
}

// Invalidate removes the entry for key.
func (c *Cache) Invalidate(key string) error {
	return c.store.Delete(key)
}

// GetOrGenerate returns the cached artifact for key, or runs generate and
// stores the result for ttl. Concurrent calls for the same key share one
// generation: late callers wait for the first caller's result or failure
// instead of hitting the generator again.
func (c *Cache) GetOrGenerate(ctx context.Context, key string, ttl time.Duration, generate func(context.Context) (Artifact, error)) (Artifact, error) {
	if a, ok := c.Get(key); ok {
		return a, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check: another caller may have filled the entry while this
		// one waited on the flight group.
		if a, ok := c.Get(key); ok {
			return a, nil
		}
		a, err := generate(ctx)
		if err != nil {
			return Artifact{}, err
		}
		if err := c.Put(key, a, ttl); err != nil {
			return Artifact{}, fmt.Errorf("cache: store artifact: %w", err)
		}
		return a, nil
	})
	if err != nil {
		return Artifact{}, err
	}
	return v.(Artifact), nil
}

// Prune deletes records that expired more than retention ago. Fresh and
// recently expired records stay for stale fallback.
func (c *Cache) Prune(retention time.Duration) (int, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return 0, err
	}
	cutoff := c.now().Add(-retention)
	removed := 0
	for _, key := range keys {
		rec, ok, err := c.store.Get(key)
		if err != nil {
			// Corrupt records go regardless of age.
			if c.store.Delete(key) == nil {
				removed++
			}
			continue
		}
		if ok && rec.ExpiresAt.Before(cutoff) {
			if err := c.store.Delete(key); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// EnforceBudget deletes oldest-created records until the stored artifact
// bytes fit within maxBytes. A non-positive budget disables the bound.
func (c *Cache) EnforceBudget(maxBytes int64) (int, error) {
	if maxBytes <= 0 {
		return 0, nil
	}
	keys, err := c.store.Keys()
	if err != nil {
		return 0, err
	}

	type sized struct {
		key     string
		size    int64
		created time.Time
	}
	var entries []sized
	var total int64
	removed := 0
	for _, key := range keys {
		rec, ok, err := c.store.Get(key)
		if err != nil {
			if c.store.Delete(key) == nil {
				removed++
			}
			continue
		}
		if !ok {
			continue
		}
		size := int64(len(rec.Data))
		total += size
		entries = append(entries, sized{key: key, size: size, created: rec.CreatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].created.Before(entries[j].created)
	})
	for _, e := range entries {
		if total <= maxBytes {
			break
		}
		if err := c.store.Delete(e.key); err == nil {
			total -= e.size
			removed++
		}
	}
	return removed, nil
}

// Close closes the underlying blob store.
func (c *Cache) Close() error {
	return c.store.Close()
}
