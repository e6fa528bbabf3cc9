package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	pkgcache "github.com/blueberrycongee/ragcache/pkg/cache"
	"github.com/blueberrycongee/ragcache/pkg/store"
)

// Candidate is an indexed vector offered to similarity search.
type Candidate struct {
	Key        string
	Vector     []float64
	Sequence   int64 // Insertion order, larger is newer
	InsertedAt time.Time
}

// ScanResult is one bounded pass over the index.
type ScanResult struct {
	// Candidates are ordered newest first.
	Candidates []Candidate

	// Stale lists members whose embedding record has expired or is unreadable.
	// They should be purged; they are never candidates.
	Stale []string
}

// EmbeddingIndex keeps query vectors in a recency-ordered set.
//
// Recency is a sorted set scored by a store-side counter, so insertion order
// is total and shared by every process using the same namespace. Vectors are
// stored beside it as individual keys carrying the entry TTL.
type EmbeddingIndex struct {
	store   store.Store
	keys    Keyspace
	timeout time.Duration
	now     func() time.Time
}

// NewEmbeddingIndex creates an EmbeddingIndex.
func NewEmbeddingIndex(s store.Store, keys Keyspace, timeout time.Duration) *EmbeddingIndex {
	return &EmbeddingIndex{store: s, keys: keys, timeout: timeout, now: time.Now}
}

// Append stores the vector for key and marks key as the newest member.
// Appending an existing key replaces its vector and refreshes its recency.
// An empty vector still makes the key count toward capacity.
func (x *EmbeddingIndex) Append(ctx context.Context, key string, vector []float64, ttl time.Duration) error {
	data, err := json.Marshal(&EmbeddingRecord{
		Key:        key,
		Vector:     vector,
		InsertedAt: x.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	ctx, cancel := withTimeout(ctx, x.timeout)
	defer cancel()

	seq, err := x.store.Incr(ctx, x.keys.Sequence())
	if err != nil {
		return pkgcache.NewStoreError("incr", x.keys.Sequence(), err)
	}
	if err := x.store.Set(ctx, x.keys.Vector(key), data, ttl); err != nil {
		return pkgcache.NewStoreError("set", x.keys.Vector(key), err)
	}
	if err := x.store.ZAdd(ctx, x.keys.Index(), store.Z{Score: float64(seq), Member: key}); err != nil {
		return pkgcache.NewStoreError("zadd", x.keys.Index(), err)
	}
	return nil
}

// Scan returns up to limit of the newest members with their vectors.
func (x *EmbeddingIndex) Scan(ctx context.Context, limit int) (ScanResult, error) {
	var res ScanResult
	if limit <= 0 {
		return res, nil
	}

	ctx, cancel := withTimeout(ctx, x.timeout)
	defer cancel()

	members, err := x.store.ZRevRange(ctx, x.keys.Index(), 0, int64(limit-1))
	if err != nil {
		return res, pkgcache.NewStoreError("zrevrange", x.keys.Index(), err)
	}
	if len(members) == 0 {
		return res, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.Member
	}

	vals, err := x.store.MGet(ctx, x.keys.Vectors(keys)...)
	if err != nil {
		return res, pkgcache.NewStoreError("mget", "", err)
	}

	res.Candidates = make([]Candidate, 0, len(members))
	for i, m := range members {
		if i >= len(vals) || vals[i] == nil {
			res.Stale = append(res.Stale, m.Member)
			continue
		}
		rec, err := decodeRecord(vals[i])
		if err != nil || rec.Key != m.Member {
			res.Stale = append(res.Stale, m.Member)
			continue
		}
		res.Candidates = append(res.Candidates, Candidate{
			Key:        m.Member,
			Vector:     rec.Vector,
			Sequence:   int64(m.Score),
			InsertedAt: rec.InsertedAt,
		})
	}
	return res, nil
}

// Remove drops keys and their vectors from the index.
// Vectors go first so a partial failure leaves a dangling member, which
// scans tolerate, rather than an untracked vector.
func (x *EmbeddingIndex) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx, x.timeout)
	defer cancel()

	if err := x.store.Del(ctx, x.keys.Vectors(keys)...); err != nil {
		return pkgcache.NewStoreError("del", "", err)
	}
	if err := x.store.ZRem(ctx, x.keys.Index(), keys...); err != nil {
		return pkgcache.NewStoreError("zrem", x.keys.Index(), err)
	}
	return nil
}

// Len returns the number of indexed members, dangling ones included.
func (x *EmbeddingIndex) Len(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, x.timeout)
	defer cancel()

	n, err := x.store.ZCard(ctx, x.keys.Index())
	if err != nil {
		return 0, pkgcache.NewStoreError("zcard", x.keys.Index(), err)
	}
	return n, nil
}

// Oldest returns up to n of the oldest members.
func (x *EmbeddingIndex) Oldest(ctx context.Context, n int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, x.timeout)
	defer cancel()

	keys, err := x.store.ZRange(ctx, x.keys.Index(), 0, n-1)
	if err != nil {
		return nil, pkgcache.NewStoreError("zrange", x.keys.Index(), err)
	}
	return keys, nil
}
