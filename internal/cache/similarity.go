package cache

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
)

// Match is the best candidate found by a similarity search.
type Match struct {
	Key        string
	Similarity float64
}

// Searcher finds the indexed vector closest to a query.
//
// It scans the index linearly, so each lookup costs O(scanLimit) vector
// comparisons. That is fine for small and medium caches; larger ones should
// put an approximate nearest neighbour index behind FindBest instead.
type Searcher struct {
	index     *EmbeddingIndex
	evictor   *Evictor
	scanLimit int
	threshold atomic.Uint64 // float64 bits
	logger    *slog.Logger
	onPrune   func(n int)
}

// NewSearcher creates a Searcher.
func NewSearcher(index *EmbeddingIndex, evictor *Evictor, threshold float64, scanLimit int, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Searcher{
		index:     index,
		evictor:   evictor,
		scanLimit: scanLimit,
		logger:    logger,
	}
	s.SetThreshold(threshold)
	return s
}

// OnPrune registers a callback invoked with the number of members pruned by a search.
func (s *Searcher) OnPrune(fn func(n int)) {
	s.onPrune = fn
}

// Threshold returns the minimum similarity for a match.
func (s *Searcher) Threshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// SetThreshold changes the minimum similarity for later searches.
func (s *Searcher) SetThreshold(threshold float64) {
	s.threshold.Store(math.Float64bits(threshold))
}

// FindBest returns the candidate most similar to query if it meets the threshold.
//
// Candidates arrive newest first and only a strictly higher score replaces the
// running best, so among equal scores the most recently written entry wins.
// Candidates with a different dimensionality are skipped but kept: a wrong-sized
// query must not wipe the index. Expired or unreadable members are purged;
// purge failures are logged, not returned.
func (s *Searcher) FindBest(ctx context.Context, query []float64) (Match, bool, error) {
	if len(query) == 0 {
		return Match{}, false, nil
	}

	res, err := s.index.Scan(ctx, s.scanLimit)
	if err != nil {
		return Match{}, false, err
	}

	best := Match{Similarity: math.Inf(-1)}
	for _, c := range res.Candidates {
		if len(c.Vector) == 0 {
			continue // exact-only entry
		}
		if len(c.Vector) != len(query) {
			continue // different embedding size, not corrupt
		}
		if score := CosineSimilarity(query, c.Vector); score > best.Similarity {
			best = Match{Key: c.Key, Similarity: score}
		}
	}

	s.prune(ctx, res.Stale)

	if best.Key == "" || !(best.Similarity >= s.Threshold()) {
		return Match{}, false, nil
	}
	return best, true, nil
}

func (s *Searcher) prune(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := s.evictor.Purge(ctx, keys...); err != nil {
		s.logger.Warn("failed to prune stale index members", "count", len(keys), "error", err)
		return
	}
	s.logger.Debug("pruned stale index members", "count", len(keys))
	if s.onPrune != nil {
		s.onPrune(len(keys))
	}
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// A zero-norm vector yields 0. Vectors must have equal length.
func CosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
