package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "cart-pricing:"

// RedisCache shares cached responses between processes through Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis at addr and verifies the connection
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	slog.Info("Redis cache connected", "addr", addr, "ttl", ttl.String())
	return NewRedisCacheWithClient(client, ttl), nil
}

// NewRedisCacheWithClient wraps an existing client without pinging it
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
	}
}

func (r *RedisCache) key(key string) string {
	return r.prefix + key
}

// Get returns the cached value. Redis errors count as a miss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("Redis get failed", "key", key, "error", err)
		return nil, false
	}
	return val, true
}

// Set stores value with the cache TTL
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		slog.Warn("Redis set failed", "key", key, "error", err)
	}
}

// Delete removes key
func (r *RedisCache) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		slog.Warn("Redis delete failed", "key", key, "error", err)
	}
}

// Stats reports connection pool statistics
func (r *RedisCache) Stats(ctx context.Context) map[string]interface{} {
	pool := r.client.PoolStats()
	stats := map[string]interface{}{
		"backend":      "redis",
		"addr":         r.client.Options().Addr,
		"ttl_duration": r.ttl.String(),
		"hits":         pool.Hits,
		"misses":       pool.Misses,
		"timeouts":     pool.Timeouts,
		"total_conns":  pool.TotalConns,
		"idle_conns":   pool.IdleConns,
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		stats["error"] = err.Error()
	}
	return stats
}

// Close closes the underlying client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
