package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/blueberrycongee/ragcache/pkg/store"
)

// MemoryStore implements store.Store in process memory.
// Plain keys live in a go-cache instance, which handles TTL expiry and
// background cleanup; sorted sets are kept in maps guarded by a mutex.
type MemoryStore struct {
	kv *gocache.Cache

	mu   sync.RWMutex
	sets map[string]map[string]float64
}

// MemoryConfig holds configuration for MemoryStore.
type MemoryConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // Expired key sweep interval (default: 1 minute)
}

// DefaultMemoryConfig returns sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{CleanupInterval: time.Minute}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	return &MemoryStore{
		kv:   gocache.New(gocache.NoExpiration, cfg.CleanupInterval),
		sets: make(map[string]map[string]float64),
	}
}

// Get retrieves a value.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(key), nil
}

func (s *MemoryStore) get(key string) []byte {
	val, ok := s.kv.Get(key)
	if !ok {
		return nil
	}
	data, ok := val.([]byte)
	if !ok {
		return nil
	}
	// Return a copy to prevent mutation
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// MGet retrieves multiple keys at once.
func (s *MemoryStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make([][]byte, len(keys))
	for i, key := range keys {
		result[i] = s.get(key)
	}
	return result, nil
}

// Set stores a value with TTL. A zero ttl never expires.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	data := make([]byte, len(value))
	copy(data, value)
	s.kv.Set(key, data, ttl)
	return nil
}

// Del removes keys, including sorted sets.
func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.kv.Delete(key)
		delete(s.sets, key)
	}
	return nil
}

// Incr atomically increments a counter.
func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// Add fails when the key already exists, which is what we want.
	_ = s.kv.Add(key, int64(0), gocache.NoExpiration)
	return s.kv.IncrementInt64(key, 1)
}

// ZAdd adds members to a sorted set.
func (s *MemoryStore) ZAdd(ctx context.Context, key string, members ...store.Z) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]float64, len(members))
		s.sets[key] = set
	}
	for _, m := range members {
		set[m.Member] = m.Score
	}
	return nil
}

// ZRem removes members from a sorted set.
func (s *MemoryStore) ZRem(ctx context.Context, key string, members ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return nil
}

// ZCard returns the sorted set cardinality.
func (s *MemoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sets[key])), nil
}

// ZRange returns members in ascending score order.
func (s *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sorted := s.sorted(key, false)
	lo, hi, ok := rankBounds(int64(len(sorted)), start, stop)
	if !ok {
		return []string{}, nil
	}
	members := make([]string, 0, hi-lo+1)
	for _, z := range sorted[lo : hi+1] {
		members = append(members, z.Member)
	}
	return members, nil
}

// ZRevRange returns members with scores in descending score order.
func (s *MemoryStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]store.Z, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sorted := s.sorted(key, true)
	lo, hi, ok := rankBounds(int64(len(sorted)), start, stop)
	if !ok {
		return []store.Z{}, nil
	}
	return sorted[lo : hi+1], nil
}

// DeletePrefix removes every key and sorted set starting with prefix.
func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var deleted int64
	for key := range s.kv.Items() {
		if strings.HasPrefix(key, prefix) {
			s.kv.Delete(key)
			deleted++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.sets {
		if strings.HasPrefix(key, prefix) {
			delete(s.sets, key)
			deleted++
		}
	}
	return deleted, nil
}

// Ping always succeeds for the memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close drops all data.
func (s *MemoryStore) Close() error {
	s.kv.Flush()
	s.mu.Lock()
	s.sets = make(map[string]map[string]float64)
	s.mu.Unlock()
	return nil
}

// sorted snapshots a sorted set ordered by score, ties broken by member as Redis does.
func (s *MemoryStore) sorted(key string, desc bool) []store.Z {
	s.mu.RLock()
	set := s.sets[key]
	out := make([]store.Z, 0, len(set))
	for member, score := range set {
		out = append(out, store.Z{Score: score, Member: member})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if desc {
			a, b = b, a
		}
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		return a.Member < b.Member
	})
	return out
}

// rankBounds resolves Redis-style inclusive ranks against a set of size n.
func rankBounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

var _ store.Store = (*MemoryStore)(nil)
