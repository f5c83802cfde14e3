// Package cache implements the in-process-adjacent predictor cache named
// in spec.md §5: a cached demand/market predictor becomes invalid once
// promotion completes, via a per-key version counter stored in Redis that
// is bumped whenever the live artifact changes.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/priceye/pricing-engine/internal/pricingerr"
)

// Cache wraps a Redis client with the version-keyed invalidation scheme
// this system needs: every cached entry is namespaced by the current
// published version of its key, so a promotion (which bumps the version)
// makes old cache entries unreachable without an explicit delete pass.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps an already-constructed redis client.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(key string) string {
	return fmt.Sprintf("pricing:version:%s", key)
}

func entryKey(key string, version int64) string {
	return fmt.Sprintf("pricing:predictor:%s:v%d", key, version)
}

// CurrentVersion returns the live version counter for key, defaulting to
// 0 if never bumped.
func (c *Cache) CurrentVersion(ctx context.Context, key string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(key)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, pricingerr.TransientStore("failed to read cache version", err).WithContext("key", key)
	}
	return v, nil
}

// BumpVersion invalidates every cache entry for key by advancing its
// version counter. Call this immediately after a promotion completes.
func (c *Cache) BumpVersion(ctx context.Context, key string) error {
	if err := c.client.Incr(ctx, versionKey(key)).Err(); err != nil {
		return pricingerr.TransientStore("failed to bump cache version", err).WithContext("key", key)
	}
	return nil
}

// Get returns the cached bytes for key at its current version, or
// (nil, false, nil) on a clean miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	version, err := c.CurrentVersion(ctx, key)
	if err != nil {
		return nil, false, err
	}
	v, err := c.client.Get(ctx, entryKey(key, version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, pricingerr.TransientStore("failed to read cache entry", err).WithContext("key", key)
	}
	return v, true, nil
}

// Set stores value under key at its current version with the
// configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	version, err := c.CurrentVersion(ctx, key)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, entryKey(key, version), value, c.ttl).Err(); err != nil {
		return pricingerr.TransientStore("failed to write cache entry", err).WithContext("key", key)
	}
	return nil
}
