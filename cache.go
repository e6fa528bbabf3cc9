package ragcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	internalcache "github.com/blueberrycongee/ragcache/internal/cache"
	"github.com/blueberrycongee/ragcache/internal/metrics"
	"github.com/blueberrycongee/ragcache/internal/observability"
	"github.com/blueberrycongee/ragcache/pkg/cache"
	"github.com/blueberrycongee/ragcache/pkg/embedding"
	"github.com/blueberrycongee/ragcache/pkg/store"
)

// clearTimeoutFactor scales StoreTimeout for Clear, which walks the whole
// namespace in several round trips.
const clearTimeoutFactor = 20

// Cache memoizes pipeline results of type T.
//
// Lookups try the exact key first and fall back to embedding similarity.
// Writes go to the exact store (authoritative), then the embedding index,
// then a capacity pass. Cache holds no locks; concurrent use is safe as long
// as the store's individual operations are atomic.
type Cache[T any] struct {
	cfg        cache.Config
	ns         string
	instanceID string

	store    store.Store
	keys     internalcache.Keyspace
	keygen   *internalcache.KeyGenerator
	exact    *internalcache.ExactStore
	index    *internalcache.EmbeddingIndex
	evictor  *internalcache.Evictor
	searcher *internalcache.Searcher

	embedder embedding.Embedder
	logger   *slog.Logger
	tracer   trace.Tracer

	// Statistics
	exactHits    atomic.Int64
	semanticHits atomic.Int64
	misses       atomic.Int64
	writes       atomic.Int64
	evictions    atomic.Int64
	errors       atomic.Int64
}

// New creates a cache over s. Only configuration problems are reported;
// the store is not contacted.
func New[T any](s store.Store, cfg cache.Config, opts ...Option) (*Cache[T], error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store is required", cache.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	instanceID := uuid.NewString()
	ns := cfg.KeyNamespacePrefix
	logger := o.logger.With("component", "ragcache", "namespace", ns, "instance_id", instanceID)

	keys := internalcache.NewKeyspace(ns)
	exact := internalcache.NewExactStore(s, keys, cfg.StoreTimeout)
	index := internalcache.NewEmbeddingIndex(s, keys, cfg.StoreTimeout)
	evictor := internalcache.NewEvictor(exact, index, cfg.MaxCacheSize)
	searcher := internalcache.NewSearcher(index, evictor, cfg.SimilarityThreshold, cfg.EffectiveScanLimit(), logger)
	searcher.OnPrune(func(n int) { metrics.RecordPruned(ns, n) })

	return &Cache[T]{
		cfg:        cfg,
		ns:         ns,
		instanceID: instanceID,
		store:      s,
		keys:       keys,
		keygen:     internalcache.NewKeyGenerator(),
		exact:      exact,
		index:      index,
		evictor:    evictor,
		searcher:   searcher,
		embedder:   o.embedder,
		logger:     logger,
		tracer:     o.tracer,
	}, nil
}

// Key returns the canonical cache key for a query.
func (c *Cache[T]) Key(query string) string {
	return c.keygen.Key(query)
}

// Lookup returns the cached payload for query.
// A nil vector restricts the lookup to exact matches. Store failures are
// logged and reported as MatchNone.
func (c *Cache[T]) Lookup(ctx context.Context, query string, vector []float64) cache.Result[T] {
	return c.traceLookup(ctx, query, func(context.Context) []float64 { return vector })
}

// LookupText is Lookup with the vector produced by the configured embedder.
// The embedder is only called after an exact miss; if it fails, or none is
// configured, the lookup is exact-only.
func (c *Cache[T]) LookupText(ctx context.Context, query string) cache.Result[T] {
	return c.traceLookup(ctx, query, func(ctx context.Context) []float64 {
		return c.embed(ctx, query)
	})
}

func (c *Cache[T]) traceLookup(ctx context.Context, query string, vector func(context.Context) []float64) cache.Result[T] {
	ctx, span := c.tracer.Start(ctx, "ragcache.Lookup")
	defer span.End()

	res := c.lookup(ctx, query, vector)

	span.SetAttributes(
		observability.AttrNamespace.String(c.ns),
		observability.AttrMatchKind.String(string(res.Kind)),
		observability.AttrSimilarity.Float64(res.Similarity),
	)

	switch res.Kind {
	case cache.MatchExact:
		c.exactHits.Add(1)
	case cache.MatchSemantic:
		c.semanticHits.Add(1)
	default:
		c.misses.Add(1)
	}
	metrics.RecordLookup(c.ns, string(res.Kind), res.Similarity)
	return res
}

func (c *Cache[T]) lookup(ctx context.Context, query string, vector func(context.Context) []float64) cache.Result[T] {
	miss := cache.Result[T]{Kind: cache.MatchNone}
	key := c.keygen.Key(query)

	entry, err := c.exact.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrCorruptRecord):
		c.purgeCorrupt(ctx, key, err)
	case err != nil:
		c.storeFailure("lookup", key, err)
		return miss
	case entry != nil:
		if res, ok := c.result(ctx, key, entry, cache.MatchExact, 1); ok {
			return res
		}
	}

	vec := vector(ctx)
	if len(vec) == 0 {
		return miss
	}

	match, ok, err := c.searcher.FindBest(ctx, vec)
	if err != nil {
		c.storeFailure("lookup", key, err)
		return miss
	}
	if !ok {
		return miss
	}

	// The entry may have expired independently of its vector.
	entry, err = c.exact.Get(ctx, match.Key)
	switch {
	case errors.Is(err, cache.ErrCorruptRecord):
		c.purgeCorrupt(ctx, match.Key, err)
		return miss
	case err != nil:
		c.storeFailure("lookup", match.Key, err)
		return miss
	case entry == nil:
		c.prune(ctx, match.Key)
		return miss
	}

	res, ok := c.result(ctx, match.Key, entry, cache.MatchSemantic, match.Similarity)
	if !ok {
		return miss
	}
	c.logger.Debug("semantic cache hit", "key", key, "matched_key", match.Key, "similarity", match.Similarity)
	return res
}

// result decodes entry into a Result. Undecodable payloads are purged.
func (c *Cache[T]) result(ctx context.Context, key string, entry *internalcache.Entry, kind cache.MatchKind, similarity float64) (cache.Result[T], bool) {
	var payload T
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		c.purgeCorrupt(ctx, key, fmt.Errorf("%w: payload: %v", cache.ErrCorruptRecord, err))
		return cache.Result[T]{}, false
	}
	return cache.Result[T]{
		Kind:       kind,
		Payload:    payload,
		Similarity: similarity,
		Key:        key,
		Query:      entry.Query,
		CachedAt:   entry.CachedAt,
	}, true
}

// Write caches payload for query.
//
// The exact entry is authoritative: if it cannot be stored, the error is
// returned (wrapping ErrStoreUnavailable) and nothing else happens. Failing to
// index the vector or to enforce capacity only degrades the entry to
// exact-match and is logged. A ttl <= 0 uses the configured default.
func (c *Cache[T]) Write(ctx context.Context, query string, vector []float64, payload T, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "ragcache.Write")
	defer span.End()

	err := c.write(ctx, query, vector, payload, ttl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache write failed")
	}
	return err
}

// WriteText is Write with the vector produced by the configured embedder.
// If embedding fails the entry is cached for exact matches only.
func (c *Cache[T]) WriteText(ctx context.Context, query string, payload T, ttl time.Duration) error {
	ctx, span := c.tracer.Start(ctx, "ragcache.WriteText")
	defer span.End()

	err := c.write(ctx, query, c.embed(ctx, query), payload, ttl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache write failed")
	}
	return err
}

func (c *Cache[T]) write(ctx context.Context, query string, vector []float64, payload T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	normalized := c.keygen.Normalize(query)
	key := c.keygen.KeyNormalized(normalized)
	entry := &internalcache.Entry{
		Query:      normalized,
		Payload:    data,
		CachedAt:   time.Now().UTC(),
		TTLSeconds: int64(ttl / time.Second),
	}

	if err := c.exact.Set(ctx, key, entry, ttl); err != nil {
		c.storeFailure("write", key, err)
		metrics.RecordWrite(c.ns, "failed")
		return fmt.Errorf("cache write: %w", err)
	}
	c.writes.Add(1)

	outcome := "full"
	if err := c.index.Append(ctx, key, vector, ttl); err != nil {
		outcome = "exact_only"
		c.storeFailure("index", key, err)
	}
	metrics.RecordWrite(c.ns, outcome)

	c.enforceCapacity(ctx)
	return nil
}

func (c *Cache[T]) enforceCapacity(ctx context.Context) {
	n, err := c.evictor.EnforceCapacity(ctx)
	if n > 0 {
		c.evictions.Add(int64(n))
		metrics.RecordEvictions(c.ns, n)
		c.logger.Debug("evicted oldest entries", "count", n)
	}
	if err != nil {
		c.storeFailure("evict", "", err)
	}
}

// Delete removes query from both stores.
func (c *Cache[T]) Delete(ctx context.Context, query string) error {
	key := c.keygen.Key(query)
	if err := c.evictor.Purge(ctx, key); err != nil {
		c.storeFailure("delete", key, err)
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// Stats returns cache statistics. If the store cannot be reached, EntryCount
// is zero and StoreReachable is false.
func (c *Cache[T]) Stats(ctx context.Context) cache.Stats {
	exactHits := c.exactHits.Load()
	semanticHits := c.semanticHits.Load()
	misses := c.misses.Load()
	total := exactHits + semanticHits + misses

	var hitRate float64
	if total > 0 {
		hitRate = float64(exactHits+semanticHits) / float64(total)
	}

	stats := cache.Stats{
		MaxCapacity:    c.cfg.MaxCacheSize,
		Threshold:      c.searcher.Threshold(),
		DefaultTTL:     c.cfg.DefaultTTL,
		ExactHits:      exactHits,
		SemanticHits:   semanticHits,
		Misses:         misses,
		Writes:         c.writes.Load(),
		Evictions:      c.evictions.Load(),
		HitRate:        hitRate,
		InstanceID:     c.instanceID,
		StoreReachable: true,
	}

	n, err := c.index.Len(ctx)
	if err != nil {
		c.storeFailure("stats", "", err)
		stats.StoreReachable = false
	} else {
		stats.EntryCount = n
		stats.UtilizationPercent = float64(n) / float64(c.cfg.MaxCacheSize) * 100
		metrics.SetEntries(c.ns, n)
	}
	stats.Errors = c.errors.Load()
	return stats
}

// Clear removes every key in the cache namespace. It is idempotent and never
// touches keys outside the namespace.
func (c *Cache[T]) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout*clearTimeoutFactor)
	defer cancel()

	n, err := c.store.DeletePrefix(ctx, c.keys.Prefix())
	if err != nil {
		err = cache.NewStoreError("clear", c.keys.Prefix(), err)
		c.storeFailure("clear", "", err)
		return fmt.Errorf("cache clear: %w", err)
	}
	c.logger.Info("cache cleared", "deleted_keys", n)
	return nil
}

// Ping checks that the backing store answers.
func (c *Cache[T]) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()
	return cache.NewStoreError("ping", "", c.store.Ping(ctx))
}

// SimilarityThreshold returns the current similarity threshold.
func (c *Cache[T]) SimilarityThreshold() float64 {
	return c.searcher.Threshold()
}

// UpdateThreshold changes the similarity threshold for later lookups.
func (c *Cache[T]) UpdateThreshold(threshold float64) error {
	if err := cache.ValidateThreshold(threshold); err != nil {
		return err
	}
	c.searcher.SetThreshold(threshold)
	c.logger.Info("similarity threshold updated", "threshold", threshold)
	return nil
}

func (c *Cache[T]) embed(ctx context.Context, query string) []float64 {
	if c.embedder == nil {
		return nil
	}
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.logger.Warn("embedding failed, falling back to exact match", "model", c.embedder.Model(), "error", err)
		return nil
	}
	return vec
}

func (c *Cache[T]) purgeCorrupt(ctx context.Context, key string, cause error) {
	c.logger.Warn("dropping corrupt cache record", "key", key, "error", cause)
	c.prune(ctx, key)
}

func (c *Cache[T]) prune(ctx context.Context, key string) {
	if err := c.evictor.Purge(ctx, key); err != nil {
		c.storeFailure("prune", key, err)
		return
	}
	metrics.RecordPruned(c.ns, 1)
}

func (c *Cache[T]) storeFailure(op, key string, err error) {
	c.errors.Add(1)
	metrics.RecordStoreError(c.ns, op)
	c.logger.Warn("cache store operation failed", "operation", op, "key", key, "error", err)
}
