// Package noop provides a cache that never stores anything.
// Use this when identity caching is disabled.
package noop

import (
	"context"
	"time"

	"github.com/prn-tf/cetrack/internal/repository"
)

// Cache is a no-operation cache. Every lookup is a miss.
type Cache struct{}

// NewCache creates a new no-op cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get always reports a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, repository.ErrCacheMiss
}

// Set discards the value.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return ctx.Err()
}

// Delete does nothing.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return ctx.Err()
}

// Ensure Cache implements repository.Cache.
var _ repository.Cache = (*Cache)(nil)
