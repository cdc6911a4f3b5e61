package handlers

import (
	"context"
	"net/http"
	"time"

	"cart-pricing-api/internal/services"
	"cart-pricing-api/internal/storage"
)

// StatsProvider reports backend statistics, e.g. a response cache
type StatsProvider interface {
	Stats(ctx context.Context) map[string]interface{}
}

// OffsetProvider reports the latest change feed offset
type OffsetProvider interface {
	GetCurrentOffset() int64
}

// StorageStatsProvider reports cart persistence statistics
type StorageStatsProvider interface {
	Stats() (*storage.StorageStats, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	cartService *services.CartService
	cache       StatsProvider
	events      OffsetProvider
	storage     StorageStatsProvider
	startedAt   time.Time
}

// NewHealthHandler creates a new health handler. cache and events may be nil.
func NewHealthHandler(cartService *services.CartService, cache StatsProvider, events OffsetProvider) *HealthHandler {
	return &HealthHandler{
		cartService: cartService,
		cache:       cache,
		events:      events,
		startedAt:   time.Now(),
	}
}

// SetStorage adds cart persistence statistics to the health report
func (h *HealthHandler) SetStorage(provider StorageStatsProvider) {
	h.storage = provider
}

// Health handles GET /health - Health check endpoint
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}

	if h.cartService != nil {
		snapshot := h.cartService.Cart()
		response["cart"] = map[string]interface{}{
			"version":    snapshot.Version,
			"line_count": snapshot.LineCount(),
			"item_count": snapshot.ItemCount(),
		}
	}
	if h.events != nil {
		response["event_offset"] = h.events.GetCurrentOffset()
	}
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		response["cache"] = h.cache.Stats(ctx)
	}

	if h.storage != nil {
		if stats, err := h.storage.Stats(); err == nil {
			response["storage"] = stats
		} else {
			response["storage"] = map[string]string{"error": err.Error()}
		}
	}

	writeJSONResponse(w, http.StatusOK, response)
}
