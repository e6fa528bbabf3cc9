package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/ragcache/pkg/store"
)

type backend struct {
	name string
	new  func(t *testing.T) (store.Store, func(time.Duration))
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			new: func(t *testing.T) (store.Store, func(time.Duration)) {
				s := NewMemoryStore(DefaultMemoryConfig())
				t.Cleanup(func() { _ = s.Close() })
				return s, func(d time.Duration) { time.Sleep(d) }
			},
		},
		{
			name: "redis",
			new: func(t *testing.T) (store.Store, func(time.Duration)) {
				mr := miniredis.RunT(t)
				s := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
				t.Cleanup(func() { _ = s.Close() })
				return s, mr.FastForward
			},
		},
	}
}

func TestStore_GetSetDel(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, _ := b.new(t)

			val, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, val)

			require.NoError(t, s.Set(ctx, "k1", []byte("v1"), time.Minute))
			val, err = s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), val)

			require.NoError(t, s.Del(ctx, "k1", "never-existed"))
			val, err = s.Get(ctx, "k1")
			require.NoError(t, err)
			assert.Nil(t, val)
		})
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, advance := b.new(t)

			require.NoError(t, s.Set(ctx, "short", []byte("x"), 50*time.Millisecond))
			require.NoError(t, s.Set(ctx, "forever", []byte("y"), 0))

			advance(100 * time.Millisecond)

			val, err := s.Get(ctx, "short")
			require.NoError(t, err)
			assert.Nil(t, val)

			val, err = s.Get(ctx, "forever")
			require.NoError(t, err)
			assert.Equal(t, []byte("y"), val)
		})
	}
}

func TestStore_MGet(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, _ := b.new(t)

			require.NoError(t, s.Set(ctx, "a", []byte("1"), time.Minute))
			require.NoError(t, s.Set(ctx, "c", []byte("3"), time.Minute))

			vals, err := s.MGet(ctx, "a", "b", "c")
			require.NoError(t, err)
			require.Len(t, vals, 3)
			assert.Equal(t, []byte("1"), vals[0])
			assert.Nil(t, vals[1])
			assert.Equal(t, []byte("3"), vals[2])
		})
	}
}

func TestStore_Incr(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, _ := b.new(t)

			for want := int64(1); want <= 3; want++ {
				got, err := s.Incr(ctx, "seq")
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestStore_SortedSet(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, _ := b.new(t)

			require.NoError(t, s.ZAdd(ctx, "z",
				store.Z{Score: 3, Member: "c"},
				store.Z{Score: 1, Member: "a"},
				store.Z{Score: 2, Member: "b"},
			))

			n, err := s.ZCard(ctx, "z")
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			asc, err := s.ZRange(ctx, "z", 0, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, asc)

			all, err := s.ZRange(ctx, "z", 0, -1)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, all)

			desc, err := s.ZRevRange(ctx, "z", 0, 1)
			require.NoError(t, err)
			assert.Equal(t, []store.Z{{Score: 3, Member: "c"}, {Score: 2, Member: "b"}}, desc)

			// Re-adding updates the score in place.
			require.NoError(t, s.ZAdd(ctx, "z", store.Z{Score: 4, Member: "a"}))
			desc, err = s.ZRevRange(ctx, "z", 0, 0)
			require.NoError(t, err)
			assert.Equal(t, "a", desc[0].Member)

			require.NoError(t, s.ZRem(ctx, "z", "a", "zz"))
			n, err = s.ZCard(ctx, "z")
			require.NoError(t, err)
			assert.Equal(t, int64(2), n)

			empty, err := s.ZRange(ctx, "nope", 0, 10)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s, _ := b.new(t)

			require.NoError(t, s.Set(ctx, "{ns}:e:1", []byte("1"), time.Minute))
			require.NoError(t, s.Set(ctx, "{ns}:v:1", []byte("1"), time.Minute))
			require.NoError(t, s.ZAdd(ctx, "{ns}:idx", store.Z{Score: 1, Member: "1"}))
			require.NoError(t, s.Set(ctx, "{other}:e:1", []byte("keep"), time.Minute))
			require.NoError(t, s.Set(ctx, "{ns}*literal", []byte("keep"), time.Minute))

			n, err := s.DeletePrefix(ctx, "{ns}:")
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			card, err := s.ZCard(ctx, "{ns}:idx")
			require.NoError(t, err)
			assert.Zero(t, card)

			val, err := s.Get(ctx, "{other}:e:1")
			require.NoError(t, err)
			assert.Equal(t, []byte("keep"), val)

			val, err = s.Get(ctx, "{ns}*literal")
			require.NoError(t, err)
			assert.Equal(t, []byte("keep"), val)

			n, err = s.DeletePrefix(ctx, "{ns}:")
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore(DefaultMemoryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "k", nil, time.Second), context.Canceled)
}

func TestRedisStore_UnreachableServer(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStoreFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get")
}

func TestNewRedisStore_PingFailure(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond

	s, err := NewRedisStore(cfg)
	assert.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]\\`, escapeGlob(`a*b?c[d]\`))
	assert.Equal(t, "{ns}:", escapeGlob("{ns}:"))
}
