package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheKeyPrefix namespaces every LLM cache entry in the shared Redis
// instance (spec's SPEC_FULL.md expansion: "cache keys under namespace
// llmcache:").
const cacheKeyPrefix = "llmcache:"

// Cache is the Redis-backed LLM response cache (spec §3/§4.10, C6). Native
// key expiry replaces a hand-rolled expiresAt sweep — see DESIGN.md.
type Cache struct {
	rdb *redis.Client
}

// NewCache wraps an already-connected Redis client.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// GetCached returns the raw cached value and whether it was present and
// unexpired. A past-deadline entry is already gone by the time this runs,
// since Redis evicts on TTL itself.
func (c *Cache) GetCached(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached %s: %w", key, err)
	}
	return val, true, nil
}

// SetCached stores value with the given TTL (spec §4.6: 300s default).
func (c *Cache) SetCached(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, cacheKeyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set cached %s: %w", key, err)
	}
	return nil
}

// Ping verifies the Redis connection is reachable, for the process health
// check (SPEC_FULL.md §6 expansion, GET /health).
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// DeleteMatching scans all llmcache: keys and deletes those for which
// match returns true, used by Store.DeleteAgentData's cascade (spec §3
// "Lifecycle", §8 invariant 7). match receives the key with the
// cacheKeyPrefix stripped.
func (c *Cache) DeleteMatching(ctx context.Context, match func(key string) bool) (int, error) {
	var deleted int
	iter := c.rdb.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		key := full[len(cacheKeyPrefix):]
		if !match(key) {
			continue
		}
		if err := c.rdb.Del(ctx, full).Err(); err != nil {
			return deleted, fmt.Errorf("delete cache key %s: %w", full, err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan cache keys: %w", err)
	}
	return deleted, nil
}
