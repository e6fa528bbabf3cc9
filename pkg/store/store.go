// Package store defines the narrow key-value contract the cache needs from
// its shared backing store.
//
// Implementations must make each individual call atomic. The cache never
// relies on atomicity across calls.
package store

import (
	"context"
	"time"
)

// Z is a sorted set member with its score.
type Z struct {
	Score  float64
	Member string
}

// Store defines the interface for backing key-value stores.
type Store interface {
	// Get retrieves a value. Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// MGet retrieves several values in one round trip.
	// The result has one element per key; missing keys yield nil.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)

	// Set stores a value that expires after ttl. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error

	// Incr atomically increments an integer key, creating it at zero first.
	Incr(ctx context.Context, key string) (int64, error)

	// ZAdd adds members to a sorted set, updating scores of existing members.
	ZAdd(ctx context.Context, key string, members ...Z) error

	// ZRem removes members from a sorted set.
	ZRem(ctx context.Context, key string, members ...string) error

	// ZCard returns the number of members in a sorted set.
	ZCard(ctx context.Context, key string) (int64, error)

	// ZRange returns members by ascending score between rank start and stop, inclusive.
	// Negative ranks count from the end, as in Redis.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRevRange returns members with scores by descending score.
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]Z, error)

	// DeletePrefix removes every key beginning with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)

	// Ping checks if the store is healthy.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
