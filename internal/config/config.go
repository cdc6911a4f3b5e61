package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"cart-pricing-api/internal/utils"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port        string
	Environment string
	LogLevel    string

	PriceAPIURL     string
	PriceAPIToken   string
	PriceAPITimeout time.Duration
	DefaultCity     string

	CartDataDir           string
	EnableCartPersistence bool
	MaxEventsInQueue      int

	CacheBackend         string
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	RedisAddr            string

	APIKeys                    []string
	RateLimitEnabled           bool
	RateLimitRequestsPerMinute int
	RateLimitBurst             int

	MetricsExporter string
	MetricsAddr     string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() *Config {
	// Does not override variables already set in the environment
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded, using system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	config := FromEnv()

	utils.SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"priceApiUrl", config.PriceAPIURL,
		"priceApiTimeout", config.PriceAPITimeout.String(),
		"defaultCity", config.DefaultCity,
		"cartDataDir", config.CartDataDir,
		"enableCartPersistence", config.EnableCartPersistence,
		"maxEventsInQueue", config.MaxEventsInQueue,
		"cacheBackend", config.CacheBackend,
		"cacheTTL", config.CacheTTL.String(),
		"rateLimitEnabled", config.RateLimitEnabled,
		"rateLimitRequestsPerMinute", config.RateLimitRequestsPerMinute,
		"metricsExporter", config.MetricsExporter)

	return config
}

// FromEnv reads the configuration from the environment only. Invalid values
// fall back to their defaults with a warning.
func FromEnv() *Config {
	return &Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),

		PriceAPIURL:     strings.TrimRight(getEnvWithDefault("PRICE_API_URL", "http://localhost:8000"), "/"),
		PriceAPIToken:   getEnvWithDefault("PRICE_API_TOKEN", ""),
		PriceAPITimeout: getDurationWithDefault("PRICE_API_TIMEOUT", 15*time.Second),
		DefaultCity:     getEnvWithDefault("DEFAULT_CITY", ""),

		CartDataDir:           getEnvWithDefault("CART_DATA_DIR", "./data"),
		EnableCartPersistence: getBoolWithDefault("ENABLE_CART_PERSISTENCE", true),
		MaxEventsInQueue:      getIntWithDefault("MAX_EVENTS_IN_QUEUE", 1000),

		CacheBackend:         strings.ToLower(getEnvWithDefault("CACHE_BACKEND", "memory")),
		CacheTTL:             getDurationWithDefault("CACHE_TTL", 5*time.Minute),
		CacheCleanupInterval: getDurationWithDefault("CACHE_CLEANUP_INTERVAL", time.Minute),
		RedisAddr:            getEnvWithDefault("REDIS_ADDR", "localhost:6379"),

		APIKeys:                    splitList(getEnvWithDefault("API_KEYS", "demo")),
		RateLimitEnabled:           getBoolWithDefault("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerMinute: getIntWithDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
		RateLimitBurst:             getIntWithDefault("RATE_LIMIT_BURST", 20),

		MetricsExporter: strings.ToLower(getEnvWithDefault("METRICS_EXPORTER", "scraper")),
		MetricsAddr:     getEnvWithDefault("METRICS_ADDR", ":9080"),
	}
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	raw := getEnvWithDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration, using default", "key", key, "provided", raw, "default", defaultValue.String())
		return defaultValue
	}
	return d
}

func getIntWithDefault(key string, defaultValue int) int {
	raw := getEnvWithDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		slog.Warn("Invalid integer, using default", "key", key, "provided", raw, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	raw := getEnvWithDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("Invalid boolean, using default", "key", key, "provided", raw, "default", defaultValue)
		return defaultValue
	}
	return b
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UseRedisCache reports whether responses are cached in Redis
func (c *Config) UseRedisCache() bool {
	return c.CacheBackend == "redis"
}
