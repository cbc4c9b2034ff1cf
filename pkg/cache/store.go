package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is a key/value store of opaque blobs with per-entry TTL.
// An absent or expired key is reported as a miss (ok == false, err == nil).
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store backed by a size-bounded LRU.
// Expired entries are dropped lazily on Get.
type MemoryStore struct {
	lru *lru.Cache[string, memoryEntry]
	now func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates a MemoryStore holding at most maxEntries keys.
func NewMemoryStore(maxEntries int, opts ...MemoryStoreOption) (*MemoryStore, error) {
	lruCache, err := lru.New[string, memoryEntry](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	s := &MemoryStore{lru: lruCache, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Get returns a copy of the value for key when present and not expired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.lru.Remove(key)

		return nil, false, nil
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)

	return out, true, nil
}

// Put stores value under key. A non-positive ttl stores the entry without expiry.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: make([]byte, len(value))}
	copy(e.value, value)

	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.lru.Add(key, e)

	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Remove(key)

	return nil
}

var _ Store = (*MemoryStore)(nil)
