package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cart-pricing-api/internal/cache"
	"cart-pricing-api/internal/models"

	"github.com/google/uuid"
)

// Logical endpoint names used for logging, caching and metrics
const (
	EndpointCheapestCart = "cheapest_cart"
	EndpointSearch       = "search_by_item"
	EndpointIdentical    = "identical"
	EndpointCities       = "cities"
	EndpointSavedCarts   = "saved_carts"
)

const maxErrorBodyLength = 200

// UpstreamObserver is notified after every call to the pricing backend
type UpstreamObserver interface {
	RecordUpstreamCall(ctx context.Context, endpoint string, duration time.Duration, err error)
}

// PriceClient provides methods to interact with the remote pricing backend
type PriceClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cache      cache.Cache
	observer   UpstreamObserver
}

// NewPriceClient creates a new pricing backend client
func NewPriceClient(baseURL, token string, timeout time.Duration) *PriceClient {
	return &PriceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetCache enables response caching for city lists and searches
func (c *PriceClient) SetCache(cache cache.Cache) {
	c.cache = cache
}

// SetObserver sets the observer notified of upstream calls
func (c *PriceClient) SetObserver(observer UpstreamObserver) {
	c.observer = observer
}

// CompareCart submits the cart to the cheapest-cart endpoint and normalizes
// whichever response shape comes back. Comparisons are never cached.
func (c *PriceClient) CompareCart(ctx context.Context, req models.CheapestCartRequest) (*models.CartComparison, error) {
	body, err := c.do(ctx, EndpointCheapestCart, http.MethodPost, "/cheapest-cart", req)
	if err != nil {
		return nil, err
	}

	comparison, err := NormalizeComparison(body, req.City)
	if err != nil {
		return nil, models.NewUnavailableError("malformed cheapest-cart response", err)
	}

	slog.Debug("Cheapest cart response normalized",
		"city", comparison.City,
		"quote_count", len(comparison.Quotes),
		"item_price_count", len(comparison.ItemPrices))

	return comparison, nil
}

// SearchByItem returns the products matching itemName in city with their
// classified store prices
func (c *PriceClient) SearchByItem(ctx context.Context, city, itemName string) ([]models.PricedProduct, error) {
	path := fmt.Sprintf("/prices/by-item/%s/%s", url.PathEscape(city), url.PathEscape(itemName))
	return c.products(ctx, EndpointSearch, path, cache.Key(EndpointSearch, city, itemName))
}

// Identical returns the same product (by item code) across every store in city
func (c *PriceClient) Identical(ctx context.Context, city, itemCode string) ([]models.PricedProduct, error) {
	path := fmt.Sprintf("/prices/identical/%s/%s", url.PathEscape(city), url.PathEscape(itemCode))
	return c.products(ctx, EndpointIdentical, path, cache.Key(EndpointIdentical, city, itemCode))
}

func (c *PriceClient) products(ctx context.Context, endpoint, path, cacheKey string) ([]models.PricedProduct, error) {
	var cached []models.PricedProduct
	if cache.GetJSON(ctx, c.cache, cacheKey, &cached) {
		return cached, nil
	}

	body, err := c.do(ctx, endpoint, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	products, err := NormalizeProducts(body)
	if err != nil {
		return nil, models.NewUnavailableError("malformed price response", err)
	}

	cache.SetJSON(ctx, c.cache, cacheKey, products)
	return products, nil
}

// Cities returns the cities known to the backend. /cities-list is tried
// first; a 404 falls back to /cities.
func (c *PriceClient) Cities(ctx context.Context) ([]string, error) {
	cacheKey := cache.Key(EndpointCities)
	var cached []string
	if cache.GetJSON(ctx, c.cache, cacheKey, &cached) {
		return cached, nil
	}

	body, err := c.do(ctx, EndpointCities, http.MethodGet, "/cities-list", nil)
	if isStatus(err, http.StatusNotFound) {
		slog.Debug("Falling back to /cities")
		body, err = c.do(ctx, EndpointCities, http.MethodGet, "/cities", nil)
	}
	if err != nil {
		return nil, err
	}

	cities, err := NormalizeCities(body)
	if err != nil {
		return nil, models.NewUnavailableError("malformed cities response", err)
	}

	cache.SetJSON(ctx, c.cache, cacheKey, cities)
	return cities, nil
}

// do performs one request and returns the raw body of a 2xx response.
// Transport failures map to ErrPriceServiceUnavailable and non-2xx statuses
// to ErrPriceServiceRejected.
func (c *PriceClient) do(ctx context.Context, endpoint, method, path string, payload interface{}) (body []byte, err error) {
	start := time.Now()
	requestID := uuid.NewString()
	defer func() {
		if c.observer != nil {
			c.observer.RecordUpstreamCall(ctx, endpoint, time.Since(start), err)
		}
	}()

	var reader io.Reader
	if payload != nil {
		data, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return nil, models.NewValidationError("request", fmt.Sprintf("could not be encoded: %v", marshalErr))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, models.NewUnavailableError("failed to create request", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Pricing backend request failed",
			"endpoint", endpoint,
			"method", method,
			"request_id", requestID,
			"error", err)
		return nil, models.NewUnavailableError(fmt.Sprintf("%s request failed", endpoint), err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewUnavailableError("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := errorMessage(resp.StatusCode, body)
		slog.Warn("Pricing backend rejected request",
			"endpoint", endpoint,
			"method", method,
			"status", resp.StatusCode,
			"request_id", requestID,
			"message", message)
		return nil, models.NewRejectedError(resp.StatusCode, message)
	}

	slog.Debug("Pricing backend request completed",
		"endpoint", endpoint,
		"method", method,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start))

	return body, nil
}

func errorMessage(status int, body []byte) string {
	var backendErr models.BackendErrorWire
	if err := json.Unmarshal(body, &backendErr); err == nil && backendErr.Text() != "" {
		return backendErr.Text()
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(status)
	}
	if len(text) > maxErrorBodyLength {
		text = text[:maxErrorBodyLength]
	}
	return text
}

func isStatus(err error, status int) bool {
	var e *models.Error
	return errors.As(err, &e) && errors.Is(err, models.ErrPriceServiceRejected) && e.StatusCode == status
}

// IsNotFound reports whether err is a backend 404
func IsNotFound(err error) bool {
	return isStatus(err, http.StatusNotFound)
}
