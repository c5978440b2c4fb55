package utils

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// RunCache memoizes lookups for one pipeline run.
// It is owned by the run, never shared through package state.
type RunCache struct {
	cache *cache.Cache
}

// NewRunCache creates RunCache instance
func NewRunCache(expire time.Duration, cleanupInterval time.Duration) *RunCache {
	return &RunCache{
		cache: cache.New(expire, cleanupInterval),
	}
}

// Set value with key
func (c *RunCache) Set(key string, value any) {
	c.cache.Set(key, value, cache.DefaultExpiration)
}

// Get value by key
func (c *RunCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Delete value by key
func (c *RunCache) Delete(key string) {
	c.cache.Delete(key)
}

// Range calls f for every live item
func (c *RunCache) Range(f func(key string, value any)) {
	for k, item := range c.cache.Items() {
		f(k, item.Object)
	}
}

// Flush drops everything
func (c *RunCache) Flush() {
	c.cache.Flush()
}

// Memoize returns the cached value of key or computes and stores it
func Memoize[T any](ctx context.Context, c *RunCache, key string, f func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	t, err := f(ctx)
	if err != nil {
		return t, err
	}
	c.Set(key, t)
	return t, nil
}
