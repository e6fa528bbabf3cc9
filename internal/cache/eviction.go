package cache

import (
	"context"
	"fmt"
)

// maxEvictionPasses bounds EnforceCapacity when concurrent writers keep
// refilling the index. Whatever is left over is picked up by the next write.
const maxEvictionPasses = 4

// Evictor keeps the index within capacity and removes entries from both stores.
type Evictor struct {
	exact   *ExactStore
	index   *EmbeddingIndex
	maxSize int64
}

// NewEvictor creates an Evictor.
func NewEvictor(exact *ExactStore, index *EmbeddingIndex, maxSize int) *Evictor {
	return &Evictor{exact: exact, index: index, maxSize: int64(maxSize)}
}

// MaxSize returns the configured capacity.
func (e *Evictor) MaxSize() int {
	return int(e.maxSize)
}

// Purge removes keys from the exact store and the index.
// The exact entry goes first: if the index removal then fails, the member is
// left dangling and a later pass retries it.
func (e *Evictor) Purge(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := e.exact.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("purge entries: %w", err)
	}
	if err := e.index.Remove(ctx, keys...); err != nil {
		return fmt.Errorf("purge index: %w", err)
	}
	return nil
}

// EnforceCapacity evicts the oldest members until the index fits maxSize.
// It returns how many keys were evicted. The pass is not atomic with the
// write that triggered it; the size bound converges rather than holding at
// every instant.
func (e *Evictor) EnforceCapacity(ctx context.Context) (int, error) {
	evicted := 0
	for pass := 0; pass < maxEvictionPasses; pass++ {
		size, err := e.index.Len(ctx)
		if err != nil {
			return evicted, err
		}
		excess := size - e.maxSize
		if excess <= 0 {
			return evicted, nil
		}

		victims, err := e.index.Oldest(ctx, excess)
		if err != nil {
			return evicted, err
		}
		if len(victims) == 0 {
			return evicted, nil
		}
		if err := e.Purge(ctx, victims...); err != nil {
			return evicted, err
		}
		evicted += len(victims)
	}
	return evicted, nil
}
