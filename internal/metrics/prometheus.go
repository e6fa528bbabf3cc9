// Package metrics provides Prometheus metrics for the query cache.
// Labels are kept low-cardinality: the cache namespace plus a small fixed
// vocabulary, never keys or query text.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "ragcache"
)

// SimilarityBuckets defines histogram buckets for semantic hit scores.
var SimilarityBuckets = []float64{
	0.80, 0.85, 0.90, 0.92, 0.94, 0.95, 0.96,
	0.97, 0.98, 0.99, 0.995, 1.0,
}

// =============================================================================
// Lookup Metrics
// =============================================================================

var (
	// Lookups counts lookups by outcome.
	Lookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total cache lookups by match kind",
		},
		[]string{"cache_namespace", "match_kind"},
	)

	// SemanticSimilarity tracks the similarity of semantic hits.
	SemanticSimilarity = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "semantic_similarity",
			Help:      "Cosine similarity of semantic cache hits",
			Buckets:   SimilarityBuckets,
		},
		[]string{"cache_namespace"},
	)
)

// =============================================================================
// Write and Maintenance Metrics
// =============================================================================

var (
	// Writes counts writes by outcome: "full", "exact_only" or "failed".
	Writes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Total cache writes by outcome",
		},
		[]string{"cache_namespace", "outcome"},
	)

	// Evictions counts entries removed to enforce capacity.
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total entries evicted to enforce capacity",
		},
		[]string{"cache_namespace"},
	)

	// Pruned counts expired or corrupt records removed during lookups.
	Pruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_records_total",
			Help:      "Total stale or corrupt records pruned lazily",
		},
		[]string{"cache_namespace"},
	)

	// StoreErrors counts failed store interactions by cache operation.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total backing store errors by cache operation",
		},
		[]string{"cache_namespace", "operation"},
	)

	// Entries tracks the index size observed by the last Stats call.
	Entries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Indexed cache entries as of the last stats call",
		},
		[]string{"cache_namespace"},
	)
)

// RecordLookup records a lookup outcome. similarity is observed for semantic hits only.
func RecordLookup(ns, kind string, similarity float64) {
	Lookups.WithLabelValues(ns, kind).Inc()
	if kind == "semantic" {
		SemanticSimilarity.WithLabelValues(ns).Observe(similarity)
	}
}

// RecordWrite records a write outcome.
func RecordWrite(ns, outcome string) {
	Writes.WithLabelValues(ns, outcome).Inc()
}

// RecordEvictions records evicted entries.
func RecordEvictions(ns string, n int) {
	if n > 0 {
		Evictions.WithLabelValues(ns).Add(float64(n))
	}
}

// RecordPruned records lazily pruned records.
func RecordPruned(ns string, n int) {
	if n > 0 {
		Pruned.WithLabelValues(ns).Add(float64(n))
	}
}

// RecordStoreError records a store failure during operation.
func RecordStoreError(ns, operation string) {
	StoreErrors.WithLabelValues(ns, operation).Inc()
}

// SetEntries records the current index size.
func SetEntries(ns string, n int64) {
	Entries.WithLabelValues(ns).Set(float64(n))
}
