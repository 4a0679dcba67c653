// Package cache defines the port for the in-process result cache.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL byte cache. Used to deduplicate idempotent read-only tool
// calls across concurrently running agents.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
