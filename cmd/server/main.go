package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cart-pricing-api/internal/cache"
	"cart-pricing-api/internal/cart"
	"cart-pricing-api/internal/client"
	"cart-pricing-api/internal/config"
	"cart-pricing-api/internal/events"
	"cart-pricing-api/internal/handlers"
	"cart-pricing-api/internal/middleware"
	"cart-pricing-api/internal/pricing"
	"cart-pricing-api/internal/savedcart"
	"cart-pricing-api/internal/services"
	"cart-pricing-api/internal/storage"
	"cart-pricing-api/internal/telemetry"

	"github.com/gorilla/mux"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	slog.Info("Starting Cart Pricing API", "version", "1.0.0")

	ctx := context.Background()
	otelTelemetry := telemetry.InitMetrics(ctx, "cart-pricing-api", cfg.MetricsExporter, cfg.MetricsAddr)

	apiTelemetry := telemetry.NewCartApiTelemetry()
	if err := apiTelemetry.InitializeTelemetry(ctx); err != nil {
		slog.Error("Failed to initialize API telemetry", "error", err)
		return
	}
	slog.Info("Cart API telemetry initialized successfully")

	responseCache := newCache(ctx, cfg)

	priceClient := client.NewPriceClient(cfg.PriceAPIURL, cfg.PriceAPIToken, cfg.PriceAPITimeout)
	priceClient.SetCache(responseCache)
	priceClient.SetObserver(apiTelemetry)

	resolver := pricing.NewResolver(priceClient)
	resolver.SetObserver(apiTelemetry)

	var persister cart.Persister
	var cartStorage *storage.CartFileStorage
	if cfg.EnableCartPersistence {
		cartStorage = storage.NewCartFileStorage(cfg.CartDataDir)
		persister = cartStorage
	}
	store := cart.NewStore(persister)
	if err := store.Restore(); err != nil {
		slog.Warn("Failed to restore cart, starting empty", "error", err)
	}

	eventsFile := ""
	if cfg.EnableCartPersistence {
		eventsFile = filepath.Join(cfg.CartDataDir, "cart_events.json")
	}
	eventQueue, err := events.NewEventQueue(events.EventQueueConfig{
		FilePath:  eventsFile,
		MaxEvents: cfg.MaxEventsInQueue,
		Logger:    slog.Default(),
	})
	if err != nil {
		slog.Error("Failed to initialize event queue", "error", err)
		return
	}
	detach := eventQueue.Attach(store)
	slog.Info("Event queue initialized successfully")

	cartService := services.NewCartService(
		store,
		resolver,
		priceClient,
		savedcart.NewRepository(priceClient),
		cfg.DefaultCity,
	)
	slog.Info("Cart service initialized successfully", "default_city", cfg.DefaultCity)

	api := &handlers.Handlers{
		Cart:       handlers.NewCartHandler(cartService),
		Search:     handlers.NewSearchHandler(cartService),
		SavedCarts: handlers.NewSavedCartsHandler(cartService),
		Events:     handlers.NewEventsHandler(eventQueue, slog.Default()),
	}
	healthHandler := handlers.NewHealthHandler(cartService, responseCache, eventQueue)
	if cartStorage != nil {
		healthHandler.SetStorage(cartStorage)
	}

	r := mux.NewRouter()

	// Apply telemetry middleware to all routes first
	r.Use(telemetry.NewTelemetryMiddleware(apiTelemetry).Middleware)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Enabled:           cfg.RateLimitEnabled,
		RequestsPerMinute: cfg.RateLimitRequestsPerMinute,
		Burst:             cfg.RateLimitBurst,
	})
	r.Use(middleware.RateLimitMiddleware(rateLimiter))

	// Health check endpoint (no auth required)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.NewAPIKeyAuth(cfg.APIKeys).Middleware)
	api.RegisterRoutes(v1)

	slog.Debug("Available endpoints",
		"cart_endpoints", []string{
			"GET /v1/cart",
			"DELETE /v1/cart",
			"POST /v1/cart/items",
			"PUT /v1/cart/items/{identity}",
			"DELETE /v1/cart/items/{identity}",
			"POST /v1/cart/compare",
			"GET /v1/cart/events?offset=&limit=&wait=",
		},
		"lookup_endpoints", []string{
			"GET /v1/cities",
			"GET /v1/search?city=&q=",
			"GET /v1/products/identical?city=&code=",
		},
		"saved_cart_endpoints", []string{
			"GET|POST /v1/saved-carts",
			"GET|PUT|DELETE /v1/saved-carts/{id}",
			"POST /v1/saved-carts/{id}/load?mode=replace|merge",
		},
		"system_endpoints", []string{
			"GET /health",
		})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server ready to accept connections", "address", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests before tearing down what they depend on
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	rateLimiter.Stop()
	detach()
	if err := eventQueue.Close(); err != nil {
		slog.Error("Error closing event queue", "error", err)
	}
	if err := responseCache.Close(); err != nil {
		slog.Error("Error closing cache", "error", err)
	}

	otelTelemetry.Shutdown(shutdownCtx)
	slog.Info("Telemetry shutdown completed")

	slog.Info("Server exited")
}

// newCache returns the configured response cache, falling back to the
// in-memory cache when Redis is unreachable
func newCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.UseRedisCache() {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.CacheTTL)
		if err == nil {
			slog.Info("Using Redis response cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL.String())
			return redisCache
		}
		slog.Warn("Redis unavailable, falling back to in-memory cache", "addr", cfg.RedisAddr, "error", err)
	}

	slog.Info("Using in-memory response cache", "ttl", cfg.CacheTTL.String())
	return cache.NewTTLCache(cfg.CacheTTL, cfg.CacheCleanupInterval)
}
