package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/nftescrow/tradenode/internal/metrics"
)

const defaultMaxEntries = 10_000

// TTL is a time-boxed read-through cache. Entries live for a fixed TTL and are
// never invalidated by writes elsewhere; staleness up to the TTL is accepted.
type TTL[V any] struct {
	name  string
	ttl   time.Duration
	store *ristretto.Cache[string, V]
}

func NewTTL[V any](name string, ttl time.Duration, maxEntries int64) (*TTL[V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache %s: ttl must be positive", name)
	}
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	store, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}
	return &TTL[V]{name: name, ttl: ttl, store: store}, nil
}

func (c *TTL[V]) Get(key string) (V, bool) {
	v, ok := c.store.Get(key)
	if ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	}
	return v, ok
}

func (c *TTL[V]) Set(key string, value V) {
	c.store.SetWithTTL(key, value, 1, c.ttl)
	// Make the entry visible to the next Get.
	c.store.Wait()
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are not cached.
func (c *TTL[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *TTL[V]) TTL() time.Duration {
	return c.ttl
}

func (c *TTL[V]) Close() {
	c.store.Close()
}
