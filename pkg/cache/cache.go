// Package cache provides the public types of the ragcache memoization layer:
// match kinds, lookup results, statistics and configuration.
// It carries no behaviour of its own; see the root ragcache package for the
// cache itself.
package cache

import (
	"time"
)

// MatchKind reports how a lookup was satisfied.
type MatchKind string

const (
	MatchNone     MatchKind = "none"     // No usable cached answer
	MatchExact    MatchKind = "exact"    // Normalized query text matched
	MatchSemantic MatchKind = "semantic" // Embedding similarity met the threshold
)

// Hit reports whether the match kind carries a payload.
func (k MatchKind) Hit() bool {
	return k == MatchExact || k == MatchSemantic
}

// Result represents the outcome of a lookup.
type Result[T any] struct {
	Kind MatchKind

	// Payload is the cached pipeline result. Zero value on MatchNone.
	Payload T

	// Similarity is the cosine similarity of the matched entry.
	// Exact matches report 1, misses report 0.
	Similarity float64

	// Key is the canonical cache key of the matched entry.
	Key string

	// Query is the normalized query text that produced the cached payload.
	Query string

	// CachedAt is when the matched payload was written.
	CachedAt time.Time
}

// Hit reports whether the lookup produced a payload.
func (r Result[T]) Hit() bool {
	return r.Kind.Hit()
}

// Stats holds cache statistics for monitoring.
type Stats struct {
	EntryCount         int64         `json:"entry_count"`
	MaxCapacity        int           `json:"max_capacity"`
	UtilizationPercent float64       `json:"utilization_percent"`
	Threshold          float64       `json:"threshold"`
	DefaultTTL         time.Duration `json:"default_ttl"`

	// Process-local counters, reset on restart.
	ExactHits      int64   `json:"exact_hits"`
	SemanticHits   int64   `json:"semantic_hits"`
	Misses         int64   `json:"misses"`
	Writes         int64   `json:"writes"`
	Evictions      int64   `json:"evictions"`
	Errors         int64   `json:"errors"`
	HitRate        float64 `json:"hit_rate"`
	InstanceID     string  `json:"instance_id"`
	StoreReachable bool    `json:"store_reachable"`
}
