// Package segcache caches decoded segment bytes behind a frequency-aware,
// byte-weighted cache so that repeated mount reads of the same hot
// segments skip disk (or network) round-trips entirely while one-hit
// streaming reads don't evict the working set.
package segcache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/blockframe/blockframe/pkg/metrics"
)

const (
	// defaultTTL bounds how long a cached segment survives even under
	// constant re-access, so a segment repaired or re-committed on disk
	// is eventually re-read instead of serving stale bytes forever.
	defaultTTL = time.Hour

	// averageSegmentBytes seeds the counters ristretto sizes itself
	// with; actual eviction still keys off the real per-item cost
	// passed to Set.
	averageSegmentBytes = 1 << 20
)

// Cache holds decoded segment bytes keyed by (file name, segment id,
// block id). Eviction is frequency- and size-aware: callers never manage
// a byte budget themselves.
type Cache struct {
	inner   *ristretto.Cache[string, []byte]
	maxCost int64
}

// New returns a Cache admitting up to maxBytes of segment data.
func New(maxBytes int64) (*Cache, error) {
	if maxBytes <= 0 {
		maxBytes = averageSegmentBytes
	}

	numCounters := maxBytes / averageSegmentBytes * 10
	if numCounters < 100 {
		numCounters = 100
	}

	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: numCounters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing segment cache: %w", err)
	}

	return &Cache{inner: inner, maxCost: maxBytes}, nil
}

// Key builds the cache key for a segment read. blockID is -1 for Tier
// 1/2 reads, which have no block dimension.
func Key(name string, blockID, segmentID int) string {
	if blockID < 0 {
		return name + "#" + strconv.Itoa(segmentID)
	}

	return name + "#" + strconv.Itoa(blockID) + ":" + strconv.Itoa(segmentID)
}

// Get returns the cached bytes for key, if present.
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.inner.Get(key)
}

// Put admits data into the cache under key, weighted by its length, and
// expiring after defaultTTL.
func (c *Cache) Put(key string, data []byte) {
	c.inner.SetWithTTL(key, data, int64(len(data)), defaultTTL)
}

// GetOrFetch returns the cached bytes for key, calling fetch on a miss
// and admitting the result before returning it.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(key); ok {
		metrics.RecordCacheHit(ctx)

		return data, nil
	}

	metrics.RecordCacheMiss(ctx)

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.Put(key, data)

	return data, nil
}

// Wait blocks until all pending Set/SetWithTTL calls have been applied.
// Tests use it to observe the cache deterministically; production
// callers have no reason to.
func (c *Cache) Wait() { c.inner.Wait() }

// Close releases the cache's background goroutines.
func (c *Cache) Close() { c.inner.Close() }
