package store

import (
	"context"
	"time"

	"github.com/blueberrycongee/ragcache/internal/resilience"
	"github.com/blueberrycongee/ragcache/pkg/store"
)

// BreakerStore guards another store with a circuit breaker. While the
// breaker is open every call fails fast with resilience.ErrCircuitOpen, so a
// dead Redis costs lookups nothing instead of one timeout each.
type BreakerStore struct {
	next    store.Store
	breaker *resilience.CircuitBreaker
}

// NewBreakerStore wraps next with breaker.
func NewBreakerStore(next store.Store, breaker *resilience.CircuitBreaker) *BreakerStore {
	return &BreakerStore{next: next, breaker: breaker}
}

// Breaker returns the underlying circuit breaker.
func (s *BreakerStore) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		out, err = s.next.Get(ctx, key)
		return err
	})
	return out, err
}

func (s *BreakerStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	var out [][]byte
	err := s.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		out, err = s.next.MGet(ctx, keys...)
		return err
	})
	return out, err
}

func (s *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Set(ctx, key, value, ttl)
	})
}

func (s *BreakerStore) Del(ctx context.Context, keys ...string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Del(ctx, keys...)
	})
}

func (s *BreakerStore) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		n, err = s.next.Incr(ctx, key)
		return err
	})
	return n, err
}

func (s *BreakerStore) ZAdd(ctx context.Context, key string, members ...store.Z) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.ZAdd(ctx, key, members...)
	})
}

func (s *BreakerStore) ZRem(ctx context.Context, key string, members ...string) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.ZRem(ctx, key, members...)
	})
}

func (s *BreakerStore) ZCard(ctx context.Context, key string) (int64, error) {
	var n int64
	err := s.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		n, err = s.next.ZCard(ctx, key)
		return err
	})
	return n, err
}

func (s *BreakerStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	var out []string
	err := s.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		out, err = s.next.ZRange(ctx, key, start, stop)
		return err
	})
	return out, err
}

func (s *BreakerStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]store.Z, error) {
	var out []store.Z
	err := s.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		out, err = s.next.ZRevRange(ctx, key, start, stop)
		return err
	})
	return out, err
}

func (s *BreakerStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := s.breaker.Execute(ctx, func(ctx context.Context) (err error) {
		n, err = s.next.DeletePrefix(ctx, prefix)
		return err
	})
	return n, err
}

// Ping bypasses the breaker so health checks see the real state of the store.
// A successful ping closes an open breaker.
func (s *BreakerStore) Ping(ctx context.Context) error {
	err := s.next.Ping(ctx)
	if err == nil && s.breaker.State() != resilience.StateClosed {
		s.breaker.Reset()
	}
	return err
}

func (s *BreakerStore) Close() error {
	return s.next.Close()
}
