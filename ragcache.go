// Package ragcache memoizes an expensive retrieval-and-generation pipeline.
//
// A Cache answers a question from an earlier answer when the normalized
// question text matches exactly, or when its embedding is close enough to the
// embedding of a question answered before. It is an in-process library over a
// shared key-value store; cache failures never reach the caller as errors on
// the read path.
//
// Basic usage:
//
//	rdb, err := store.NewRedisStore(store.DefaultRedisConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rdb.Close()
//
//	c, err := ragcache.New[Answer](rdb, ragcache.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if res := c.Lookup(ctx, question, vec); res.Hit() {
//	    return res.Payload, nil
//	}
//	answer := pipeline.Answer(ctx, question)
//	_ = c.Write(ctx, question, vec, answer, 0)
package ragcache

import (
	"github.com/blueberrycongee/ragcache/pkg/cache"
	"github.com/blueberrycongee/ragcache/pkg/embedding"
	"github.com/blueberrycongee/ragcache/pkg/store"
)

// Version is the current version of ragcache.
const Version = "0.3.0"

// Re-export core types for convenience.
type (
	// Config holds the recognized cache options.
	Config = cache.Config

	// MatchKind reports how a lookup was satisfied.
	MatchKind = cache.MatchKind

	// Stats holds cache statistics for monitoring.
	Stats = cache.Stats

	// Store is the backing key-value store contract.
	Store = store.Store

	// Embedder generates embeddings for LookupText and WriteText.
	Embedder = embedding.Embedder
)

// Match kinds.
const (
	MatchNone     = cache.MatchNone
	MatchExact    = cache.MatchExact
	MatchSemantic = cache.MatchSemantic
)

// Re-export errors.
var (
	ErrStoreUnavailable = cache.ErrStoreUnavailable
	ErrCorruptRecord    = cache.ErrCorruptRecord
	ErrInvalidConfig    = cache.ErrInvalidConfig
)

// DefaultConfig returns sensible defaults.
var DefaultConfig = cache.DefaultConfig
