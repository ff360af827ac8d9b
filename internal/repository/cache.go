package repository

import (
	"context"
	"time"
)

// Cache defines the interface for small key/value caching with TTLs.
// Used by the identity middleware to memoize external-id → user lookups;
// implemented in memory for single-node deployments and on Redis for
// multi-node ones.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
