// -------------------------------------------------------------------------------
// Hash-Data Cache - Redis Read-Through Layer
//
// Author: Alex Freidah
//
// Redis cache in front of the metadata store. Positive entries live for the
// configured TTL (default one hour); misses are cached with a short negative
// TTL so a container being enabled shows up within seconds. Cache errors are
// reported to the caller but are never fatal: the store remains the source of
// truth.
// -------------------------------------------------------------------------------

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/afreidah/origin-gateway/internal/config"
	"github.com/afreidah/origin-gateway/internal/telemetry"
)

// negativeSentinel marks a cached miss.
const negativeSentinel = "404"

// RedisCache implements HashCache on a Redis client.
type RedisCache struct {
	client      *redis.Client
	ttl         time.Duration
	negativeTTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg *config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisCache{
		client:      client,
		ttl:         cfg.TTL,
		negativeTTL: cfg.NegativeTTL,
	}, nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error { return c.client.Close() }

// Ping checks cache reachability.
func (c *RedisCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func cacheKey(hash string) string { return "origin:hashdata:" + hash }

// Get returns the cached record for a hash. A cached negative entry yields
// (ErrNotFound, true).
func (c *RedisCache) Get(ctx context.Context, hash string) (HashData, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		telemetry.CacheOpsTotal.WithLabelValues("get", "miss").Inc()
		return HashData{}, false, nil
	}
	if err != nil {
		telemetry.CacheOpsTotal.WithLabelValues("get", "error").Inc()
		return HashData{}, false, fmt.Errorf("cache get: %w", err)
	}
	if val == negativeSentinel {
		telemetry.CacheOpsTotal.WithLabelValues("get", "negative").Inc()
		return HashData{}, true, ErrNotFound
	}
	data, err := DecodeHashData([]byte(val))
	if err != nil {
		// Stale or corrupt entry; treat as a miss so the store refreshes it.
		telemetry.CacheOpsTotal.WithLabelValues("get", "error").Inc()
		return HashData{}, false, nil
	}
	telemetry.CacheOpsTotal.WithLabelValues("get", "hit").Inc()
	return data, true, nil
}

// Set caches a record with the positive TTL.
func (c *RedisCache) Set(ctx context.Context, hash string, data HashData) error {
	encoded, err := data.Encode()
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, cacheKey(hash), encoded, c.ttl).Err(); err != nil {
		telemetry.CacheOpsTotal.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("cache set: %w", err)
	}
	telemetry.CacheOpsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// SetNegative caches the absence of a record with the short negative TTL.
func (c *RedisCache) SetNegative(ctx context.Context, hash string) error {
	if err := c.client.Set(ctx, cacheKey(hash), negativeSentinel, c.negativeTTL).Err(); err != nil {
		telemetry.CacheOpsTotal.WithLabelValues("set", "error").Inc()
		return fmt.Errorf("cache set negative: %w", err)
	}
	telemetry.CacheOpsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// Delete drops a cached record.
func (c *RedisCache) Delete(ctx context.Context, hash string) error {
	if err := c.client.Del(ctx, cacheKey(hash)).Err(); err != nil {
		telemetry.CacheOpsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("cache delete: %w", err)
	}
	telemetry.CacheOpsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

var _ HashCache = (*RedisCache)(nil)
