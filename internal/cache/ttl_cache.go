package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CacheEntry represents a cached response with expiration time
type CacheEntry struct {
	Value     []byte
	ExpiresAt time.Time
}

// TTLCache is the in-process response cache
type TTLCache struct {
	items         map[string]*CacheEntry
	mutex         sync.RWMutex
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
	hits          int64
	misses        int64
}

// NewTTLCache creates a new TTL cache with specified TTL and cleanup interval
func NewTTLCache(ttl, cleanupInterval time.Duration) *TTLCache {
	c := &TTLCache{
		items:       make(map[string]*CacheEntry),
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}

	c.cleanupTicker = time.NewTicker(cleanupInterval)
	go c.cleanupExpiredEntries()

	slog.Info("TTL cache initialized",
		"ttl", ttl.String(),
		"cleanup_interval", cleanupInterval.String())

	return c
}

// Set stores a value in the cache with TTL
func (c *TTLCache) Set(ctx context.Context, key string, value []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	expiresAt := time.Now().Add(c.ttl)
	c.items[key] = &CacheEntry{
		Value:     stored,
		ExpiresAt: expiresAt,
	}

	slog.Debug("Cache entry set",
		"key", key,
		"expires_at", expiresAt.Format(time.RFC3339))
}

// Get retrieves a value from the cache if it exists and hasn't expired
func (c *TTLCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.items[key]
	if !exists {
		c.misses++
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		slog.Debug("Cache entry expired", "key", key)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.hits++
	slog.Debug("Cache hit", "key", key)
	return entry.Value, true
}

// Delete removes a specific key from the cache
func (c *TTLCache) Delete(ctx context.Context, key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
	slog.Debug("Cache entry deleted", "key", key)
}

// Size returns the current number of items in the cache (including expired ones)
func (c *TTLCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Clear removes all items from the cache
func (c *TTLCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	itemCount := len(c.items)
	c.items = make(map[string]*CacheEntry)

	slog.Info("Cache cleared", "removed_items", itemCount)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (c *TTLCache) Close() error {
	c.stopOnce.Do(func() {
		c.cleanupTicker.Stop()
		close(c.stopCleanup)
		slog.Info("TTL cache stopped")
	})
	return nil
}

func (c *TTLCache) cleanupExpiredEntries() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *TTLCache) performCleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.items {
		if now.After(entry.ExpiresAt) {
			delete(c.items, key)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("Cache cleanup completed",
			"expired_entries", removed,
			"remaining_entries", len(c.items))
	}
}

// Stats returns cache statistics
func (c *TTLCache) Stats(ctx context.Context) map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	activeCount := 0
	expiredCount := 0
	for _, entry := range c.items {
		if now.Before(entry.ExpiresAt) {
			activeCount++
		} else {
			expiredCount++
		}
	}

	return map[string]interface{}{
		"backend":         "memory",
		"total_entries":   len(c.items),
		"active_entries":  activeCount,
		"expired_entries": expiredCount,
		"hits":            c.hits,
		"misses":          c.misses,
		"ttl_duration":    c.ttl.String(),
	}
}
