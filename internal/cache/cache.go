// Package cache stores rendered public responses. Redis is used when
// configured; otherwise entries live in process memory.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCacheMiss   = errors.New("cache: miss")
	ErrCacheClosed = errors.New("cache: closed")
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Sweeper is implemented by caches that need expired entries removed.
type Sweeper interface {
	RemoveExpired() int
}

// New returns a Redis cache when redisURL is set, else a memory cache.
func New(redisURL, prefix string, ttl time.Duration) (Cache, error) {
	if redisURL == "" {
		return NewMemoryCache(ttl), nil
	}
	return NewRedisCache(redisURL, prefix, ttl)
}
