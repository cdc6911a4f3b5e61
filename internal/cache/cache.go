package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// Cache stores serialized upstream responses by key. Implementations treat
// backend failures as misses; a cache must never fail a request.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Delete(ctx context.Context, key string)
	Stats(ctx context.Context) map[string]interface{}
	Close() error
}

// Key builds a cache key from its parts, e.g. Key("search", "haifa", "milk")
func Key(parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(normalized, ":")
}

// GetJSON decodes a cached JSON value into dest. A miss or an undecodable
// entry returns false.
func GetJSON(ctx context.Context, c Cache, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		slog.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON encodes value as JSON and stores it
func SetJSON(ctx context.Context, c Cache, key string, value interface{}) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		slog.Warn("Failed to encode cache entry", "key", key, "error", err)
		return
	}
	c.Set(ctx, key, data)
}
