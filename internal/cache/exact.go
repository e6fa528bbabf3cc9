package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	pkgcache "github.com/blueberrycongee/ragcache/pkg/cache"
	"github.com/blueberrycongee/ragcache/pkg/store"
)

// ExactStore maps cache keys to entries with TTL.
// Expiry is left to the backing store; there is no sweep here.
type ExactStore struct {
	store   store.Store
	keys    Keyspace
	timeout time.Duration
}

// NewExactStore creates an ExactStore.
func NewExactStore(s store.Store, keys Keyspace, timeout time.Duration) *ExactStore {
	return &ExactStore{store: s, keys: keys, timeout: timeout}
}

// Get retrieves the entry for key.
// Returns nil, nil on a miss. Store failures wrap ErrStoreUnavailable and
// unreadable entries wrap ErrCorruptRecord.
func (s *ExactStore) Get(ctx context.Context, key string) (*Entry, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	storeKey := s.keys.Entry(key)
	data, err := s.store.Get(ctx, storeKey)
	if err != nil {
		return nil, pkgcache.NewStoreError("get", storeKey, err)
	}
	if data == nil {
		return nil, nil
	}
	return decodeEntry(data)
}

// Set writes entry under key, expiring after ttl.
func (s *ExactStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	storeKey := s.keys.Entry(key)
	return pkgcache.NewStoreError("set", storeKey, s.store.Set(ctx, storeKey, data, ttl))
}

// Delete removes the entries for keys.
func (s *ExactStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	return pkgcache.NewStoreError("del", "", s.store.Del(ctx, s.keys.Entries(keys)...))
}
