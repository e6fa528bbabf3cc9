package cache

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgcache "github.com/blueberrycongee/ragcache/pkg/cache"
)

func TestExactStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)
	p := newParts(s, 10, 0.9)

	entry, err := p.exact.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, entry)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, p.exact.Set(ctx, "k1", &Entry{
		Query:      "what is kitas?",
		Payload:    json.RawMessage(`{"answer":"a stay permit"}`),
		CachedAt:   now,
		TTLSeconds: 60,
	}, time.Minute))

	entry, err = p.exact.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "what is kitas?", entry.Query)
	assert.JSONEq(t, `{"answer":"a stay permit"}`, string(entry.Payload))
	assert.True(t, now.Equal(entry.CachedAt))
	assert.Equal(t, int64(60), entry.TTLSeconds)
}

func TestExactStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)
	p := newParts(s, 10, 0.9)

	require.NoError(t, p.exact.Set(ctx, "k", &Entry{Payload: json.RawMessage(`1`)}, time.Minute))
	require.NoError(t, p.exact.Set(ctx, "k", &Entry{Payload: json.RawMessage(`2`)}, time.Minute))

	entry, err := p.exact.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", string(entry.Payload))
}

func TestExactStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedis(t)
	p := newParts(s, 10, 0.9)

	require.NoError(t, p.exact.Set(ctx, "k", &Entry{Payload: json.RawMessage(`"x"`)}, 10*time.Second))
	mr.FastForward(11 * time.Second)

	entry, err := p.exact.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestExactStore_Corrupt(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)
	p := newParts(s, 10, 0.9)

	require.NoError(t, s.Set(ctx, p.keys.Entry("bad"), []byte("not json"), 0))
	_, err := p.exact.Get(ctx, "bad")
	assert.ErrorIs(t, err, pkgcache.ErrCorruptRecord)

	require.NoError(t, s.Set(ctx, p.keys.Entry("empty"), []byte(`{"query":"q"}`), 0))
	_, err = p.exact.Get(ctx, "empty")
	assert.ErrorIs(t, err, pkgcache.ErrCorruptRecord)
}

func TestExactStore_StoreFailure(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedis(t)
	p := newParts(newFaultyStore(s, "get", "set", "del"), 10, 0.9)

	_, err := p.exact.Get(ctx, "k")
	assert.ErrorIs(t, err, pkgcache.ErrStoreUnavailable)

	var se *pkgcache.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "get", se.Op)
	assert.Equal(t, p.keys.Entry("k"), se.Key)

	err = p.exact.Set(ctx, "k", &Entry{Payload: json.RawMessage(`1`)}, time.Minute)
	assert.ErrorIs(t, err, pkgcache.ErrStoreUnavailable)

	assert.ErrorIs(t, p.exact.Delete(ctx, "k"), pkgcache.ErrStoreUnavailable)
	assert.NoError(t, p.exact.Delete(ctx))
}
