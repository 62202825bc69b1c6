package cachemanager

import (
	"context"
	"time"
)

// Loader produces the value for a key on a cache miss.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// ReadThroughCache fills cache from load on a miss. Load errors are returned
// and never cached, so a failed lookup is retried on the next Get.
type ReadThroughCache[K comparable, V any] struct {
	cache CacheManager[K, V]
	load  Loader[K, V]
	ttl   time.Duration
}

// NewReadThroughCache returns a cache that keeps loaded values for ttl.
func NewReadThroughCache[K comparable, V any](cache CacheManager[K, V], load Loader[K, V], ttl time.Duration) *ReadThroughCache[K, V] {
	return &ReadThroughCache[K, V]{cache: cache, load: load, ttl: ttl}
}

// Get returns the cached value for key, loading and storing it on a miss.
func (r *ReadThroughCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.load(ctx, key)
	if err != nil {
		return value, err
	}
	r.cache.Set(ctx, key, value, r.ttl)
	return value, nil
}
