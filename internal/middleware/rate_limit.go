package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cart-pricing-api/internal/models"
	"cart-pricing-api/internal/utils"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	// IdleTTL is how long an unused client bucket is kept
	IdleTTL time.Duration
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	config  RateLimitConfig
	limit   rate.Limit
	mutex   sync.Mutex
	clients map[string]*clientBucket

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// RateLimitInfo contains rate limit information for response headers
type RateLimitInfo struct {
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimiter creates a new rate limiter and starts its cleanup loop
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 120
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}

	rl := &RateLimiter{
		config:      config,
		limit:       rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		clients:     make(map[string]*clientBucket),
		stopCleanup: make(chan struct{}),
	}

	rl.cleanupTicker = time.NewTicker(time.Minute)
	go rl.cleanupLoop()

	slog.Info("Rate limiter initialized",
		"enabled", config.Enabled,
		"requests_per_minute", config.RequestsPerMinute,
		"burst", config.Burst)

	return rl
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

// IsAllowed takes one token from the client's bucket
func (rl *RateLimiter) IsAllowed(clientIP string) (bool, RateLimitInfo) {
	if !rl.config.Enabled {
		return true, RateLimitInfo{Limit: -1, Remaining: -1}
	}

	now := time.Now()

	rl.mutex.Lock()
	bucket, exists := rl.clients[clientIP]
	if !exists {
		bucket = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.config.Burst)}
		rl.clients[clientIP] = bucket
	}
	bucket.lastSeen = now
	rl.mutex.Unlock()

	info := RateLimitInfo{Limit: rl.config.RequestsPerMinute}

	reservation := bucket.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		info.RetryAfter = time.Minute
		return false, info
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		info.RetryAfter = delay
		return false, info
	}

	info.Remaining = int(math.Max(0, math.Floor(bucket.limiter.TokensAt(now))))
	return true, info
}

// ClientCount returns the number of tracked client buckets
func (rl *RateLimiter) ClientCount() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) cleanupLoop() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	removed := 0
	for ip, bucket := range rl.clients {
		if now.Sub(bucket.lastSeen) > rl.config.IdleTTL {
			delete(rl.clients, ip)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Rate limiter cleanup completed", "removed_clients", removed, "remaining_clients", len(rl.clients))
	}
}

// RateLimitMiddleware creates a rate limiting middleware using an existing rate limiter
func RateLimitMiddleware(rateLimiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := utils.ClientIP(r)
			allowed, info := rateLimiter.IsAllowed(clientIP)

			if info.Limit >= 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			}

			if !allowed {
				slog.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"path", r.URL.Path,
					"method", r.Method,
					"retry_after", info.RetryAfter.String())
				writeRateLimitErrorResponse(w, info)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitErrorResponse(w http.ResponseWriter, info RateLimitInfo) {
	retryAfter := int(math.Ceil(info.RetryAfter.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	writeErrorResponse(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Please try again later.",
		[]models.ErrorDetail{
			{
				Field: "rate_limit",
				Issue: fmt.Sprintf("Exceeded %d requests per minute", info.Limit),
			},
			{
				Field: "retry_after",
				Issue: fmt.Sprintf("Retry after %d seconds", retryAfter),
			},
		})
}
