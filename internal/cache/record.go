// Package cache implements the building blocks of the query memoization layer:
// key generation, the exact-match store, the embedding index, similarity
// search and capacity eviction. All state lives in an injected store.Store;
// nothing here holds locks of its own.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	pkgcache "github.com/blueberrycongee/ragcache/pkg/cache"
)

// Entry is a cached pipeline result as persisted by ExactStore.
// Entries are replaced wholesale, never patched.
type Entry struct {
	Query      string          `json:"query"`     // Normalized query text
	Payload    json.RawMessage `json:"payload"`   // Serialized result
	CachedAt   time.Time       `json:"cached_at"` // When the entry was written
	TTLSeconds int64           `json:"ttl_seconds"`
}

// EmbeddingRecord is a query vector as persisted by EmbeddingIndex.
// It refers to its Entry by key only and may outlive or predecease it.
type EmbeddingRecord struct {
	Key        string    `json:"key"`
	Vector     []float64 `json:"vector"`
	InsertedAt time.Time `json:"inserted_at"`
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: entry: %v", pkgcache.ErrCorruptRecord, err)
	}
	if len(e.Payload) == 0 {
		return nil, fmt.Errorf("%w: entry has no payload", pkgcache.ErrCorruptRecord)
	}
	return &e, nil
}

func decodeRecord(data []byte) (*EmbeddingRecord, error) {
	var r EmbeddingRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: embedding: %v", pkgcache.ErrCorruptRecord, err)
	}
	return &r, nil
}

// withTimeout bounds a single store call. A zero timeout leaves ctx alone.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
