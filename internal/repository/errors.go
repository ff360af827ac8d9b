package repository

import "errors"

// Cache errors
var (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable indicates the cache backend is unavailable.
	ErrCacheUnavailable = errors.New("cache unavailable")
)
