package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	internalstore "github.com/blueberrycongee/ragcache/internal/store"
	"github.com/blueberrycongee/ragcache/pkg/store"
)

var errInjected = errors.New("injected store failure")

func newRedis(t *testing.T) (store.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := internalstore.NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

type parts struct {
	keys     Keyspace
	exact    *ExactStore
	index    *EmbeddingIndex
	evictor  *Evictor
	searcher *Searcher
}

func newParts(s store.Store, maxSize int, threshold float64) *parts {
	keys := NewKeyspace("test")
	exact := NewExactStore(s, keys, time.Second)
	index := NewEmbeddingIndex(s, keys, time.Second)
	evictor := NewEvictor(exact, index, maxSize)
	return &parts{
		keys:     keys,
		exact:    exact,
		index:    index,
		evictor:  evictor,
		searcher: NewSearcher(index, evictor, threshold, maxSize, nil),
	}
}

// faultyStore fails the named operations and passes the rest through.
type faultyStore struct {
	store.Store

	mu   sync.Mutex
	fail map[string]bool
}

func newFaultyStore(inner store.Store, ops ...string) *faultyStore {
	f := &faultyStore{Store: inner, fail: make(map[string]bool)}
	f.Fail(ops...)
	return f
}

func (f *faultyStore) Fail(ops ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, op := range ops {
		f.fail[op] = true
	}
}

func (f *faultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = make(map[string]bool)
}

func (f *faultyStore) failing(op string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failing("get") {
		return nil, errInjected
	}
	return f.Store.Get(ctx, key)
}

func (f *faultyStore) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if f.failing("mget") {
		return nil, errInjected
	}
	return f.Store.MGet(ctx, keys...)
}

func (f *faultyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failing("set") {
		return errInjected
	}
	return f.Store.Set(ctx, key, value, ttl)
}

func (f *faultyStore) Del(ctx context.Context, keys ...string) error {
	if f.failing("del") {
		return errInjected
	}
	return f.Store.Del(ctx, keys...)
}

func (f *faultyStore) Incr(ctx context.Context, key string) (int64, error) {
	if f.failing("incr") {
		return 0, errInjected
	}
	return f.Store.Incr(ctx, key)
}

func (f *faultyStore) ZRem(ctx context.Context, key string, members ...string) error {
	if f.failing("zrem") {
		return errInjected
	}
	return f.Store.ZRem(ctx, key, members...)
}

func (f *faultyStore) ZCard(ctx context.Context, key string) (int64, error) {
	if f.failing("zcard") {
		return 0, errInjected
	}
	return f.Store.ZCard(ctx, key)
}

func (f *faultyStore) ZRevRange(ctx context.Context, key string, start, stop int64) ([]store.Z, error) {
	if f.failing("zrevrange") {
		return nil, errInjected
	}
	return f.Store.ZRevRange(ctx, key, start, stop)
}
