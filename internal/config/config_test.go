package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "PRICE_API_URL", "PRICE_API_TIMEOUT", "CACHE_BACKEND", "CACHE_TTL",
		"API_KEYS", "RATE_LIMIT_ENABLED", "RATE_LIMIT_REQUESTS_PER_MINUTE", "MAX_EVENTS_IN_QUEUE",
		"ENABLE_CART_PERSISTENCE", "METRICS_EXPORTER", "DEFAULT_CITY", "ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8000", cfg.PriceAPIURL)
	assert.Equal(t, 15*time.Second, cfg.PriceAPITimeout)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.False(t, cfg.UseRedisCache())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"demo"}, cfg.APIKeys)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 120, cfg.RateLimitRequestsPerMinute)
	assert.Equal(t, 1000, cfg.MaxEventsInQueue)
	assert.True(t, cfg.EnableCartPersistence)
	assert.Equal(t, "scraper", cfg.MetricsExporter)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PRICE_API_URL", "https://prices.example.com/")
	t.Setenv("PRICE_API_TIMEOUT", "3s")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("API_KEYS", " key-a, ,key-b ")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DEFAULT_CITY", "Haifa")

	cfg := FromEnv()

	assert.Equal(t, "https://prices.example.com", cfg.PriceAPIURL)
	assert.Equal(t, 3*time.Second, cfg.PriceAPITimeout)
	assert.True(t, cfg.UseRedisCache())
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.APIKeys)
	assert.False(t, cfg.RateLimitEnabled)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "Haifa", cfg.DefaultCity)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PRICE_API_TIMEOUT", "soon")
	t.Setenv("CACHE_TTL", "-1m")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_MINUTE", "many")
	t.Setenv("MAX_EVENTS_IN_QUEUE", "0")
	t.Setenv("ENABLE_CART_PERSISTENCE", "maybe")

	cfg := FromEnv()

	assert.Equal(t, 15*time.Second, cfg.PriceAPITimeout)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 120, cfg.RateLimitRequestsPerMinute)
	assert.Equal(t, 1000, cfg.MaxEventsInQueue)
	assert.True(t, cfg.EnableCartPersistence)
}
