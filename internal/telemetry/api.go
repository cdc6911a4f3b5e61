package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"cart-pricing-api/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "cart-pricing-api"

// CartApiTelemetry records local API, upstream and comparison metrics
type CartApiTelemetry struct {
	meter metric.Meter

	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	durationHistogram metric.Float64Histogram

	upstreamCallCounter  metric.Int64Counter
	upstreamErrorCounter metric.Int64Counter
	upstreamDuration     metric.Float64Histogram

	comparisonCounter     metric.Int64Counter
	comparisonQuoteCounts metric.Int64Histogram
	eventRetrievalCounter metric.Int64Counter
}

// ApiMetrics contains the telemetry data for one local API request
type ApiMetrics struct {
	Method       string
	Endpoint     string
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
	ClientIP     string // Raw IP for logging only
	ClientIPType string // "internal", "external", "localhost", "unknown"
	EventCount   int
}

// NewCartApiTelemetry creates a new instance of CartApiTelemetry
func NewCartApiTelemetry() *CartApiTelemetry {
	return &CartApiTelemetry{}
}

// InitializeTelemetry creates the instruments on the global meter provider
func (t *CartApiTelemetry) InitializeTelemetry(ctx context.Context) error {
	return t.InitializeWithMeter(otel.Meter(meterName))
}

// InitializeWithMeter creates the instruments on meter
func (t *CartApiTelemetry) InitializeWithMeter(meter metric.Meter) error {
	slog.Info("Initializing cart API telemetry")
	t.meter = meter

	var err error

	if t.requestCounter, err = meter.Int64Counter(
		"cart_api_requests_total",
		metric.WithDescription("Total number of local API requests"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create request counter: %w", err)
	}

	if t.errorCounter, err = meter.Int64Counter(
		"cart_api_errors_total",
		metric.WithDescription("Total number of local API requests answered with an error status"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create error counter: %w", err)
	}

	if t.durationHistogram, err = meter.Float64Histogram(
		"cart_api_request_duration_seconds",
		metric.WithDescription("Duration of local API requests"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}

	if t.upstreamCallCounter, err = meter.Int64Counter(
		"price_api_calls_total",
		metric.WithDescription("Total number of calls to the pricing backend"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create upstream call counter: %w", err)
	}

	if t.upstreamErrorCounter, err = meter.Int64Counter(
		"price_api_errors_total",
		metric.WithDescription("Total number of failed calls to the pricing backend"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create upstream error counter: %w", err)
	}

	if t.upstreamDuration, err = meter.Float64Histogram(
		"price_api_call_duration_seconds",
		metric.WithDescription("Duration of calls to the pricing backend"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create upstream duration histogram: %w", err)
	}

	if t.comparisonCounter, err = meter.Int64Counter(
		"cart_comparisons_total",
		metric.WithDescription("Total number of cheapest-cart comparisons by outcome"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create comparison counter: %w", err)
	}

	if t.comparisonQuoteCounts, err = meter.Int64Histogram(
		"cart_comparison_quotes",
		metric.WithDescription("Number of store quotes per comparison"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create comparison quote histogram: %w", err)
	}

	if t.eventRetrievalCounter, err = meter.Int64Counter(
		"cart_events_retrieved_total",
		metric.WithDescription("Total number of cart events returned by the change feed"),
		metric.WithUnit("1"),
	); err != nil {
		return fmt.Errorf("failed to create event retrieval counter: %w", err)
	}

	slog.Info("Cart API telemetry initialized successfully")
	return nil
}

// RegisterRequestReceived records a successful API request
func (t *CartApiTelemetry) RegisterRequestReceived(ctx context.Context, m ApiMetrics) {
	if t.requestCounter == nil {
		return
	}

	t.requestCounter.Add(ctx, 1, metric.WithAttributes(requestAttributes(m)...))

	if m.Endpoint == "/v1/cart/events" && m.EventCount > 0 && t.eventRetrievalCounter != nil {
		t.eventRetrievalCounter.Add(ctx, int64(m.EventCount),
			metric.WithAttributes(attribute.String("client_ip_type", m.ClientIPType)))
	}
}

// RegisterRequestError records a failed API request
func (t *CartApiTelemetry) RegisterRequestError(ctx context.Context, m ApiMetrics) {
	if t.errorCounter == nil {
		return
	}

	attrs := append(requestAttributes(m), attribute.String("error_type", categorizeStatus(m.StatusCode)))
	t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	slog.Debug("Recorded API request error",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"error", m.ErrorMessage,
	)
}

// RegisterRequestDuration records the duration of an API request
func (t *CartApiTelemetry) RegisterRequestDuration(ctx context.Context, m ApiMetrics) {
	if t.durationHistogram == nil {
		return
	}
	t.durationHistogram.Record(ctx, m.Duration.Seconds(), metric.WithAttributes(requestAttributes(m)...))
}

// RecordUpstreamCall records one call to the pricing backend
func (t *CartApiTelemetry) RecordUpstreamCall(ctx context.Context, endpoint string, duration time.Duration, err error) {
	if t.upstreamCallCounter == nil {
		return
	}

	kind := ErrorKind(err)
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("result", kind),
	)
	t.upstreamCallCounter.Add(ctx, 1, attrs)
	t.upstreamDuration.Record(ctx, duration.Seconds(), attrs)

	if err != nil {
		t.upstreamErrorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("error_kind", kind),
		))
	}
}

// RecordComparison records the outcome of one cheapest-cart comparison
func (t *CartApiTelemetry) RecordComparison(ctx context.Context, outcome string, quoteCount int) {
	if t.comparisonCounter == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	t.comparisonCounter.Add(ctx, 1, attrs)
	if quoteCount > 0 {
		t.comparisonQuoteCounts.Record(ctx, int64(quoteCount), attrs)
	}
}

func requestAttributes(m ApiMetrics) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("method", m.Method),
		attribute.String("endpoint", m.Endpoint),
		attribute.Int("status_code", m.StatusCode),
	}
	if m.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", m.ClientIPType))
	}
	return attrs
}

// ErrorKind maps an error onto a low-cardinality label
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, models.ErrPriceServiceUnavailable):
		return "unavailable"
	case errors.Is(err, models.ErrPriceServiceRejected):
		return "rejected"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	default:
		return "other"
	}
}

func categorizeStatus(status int) string {
	switch {
	case status == 400:
		return "bad_request"
	case status == 401:
		return "unauthorized"
	case status == 404:
		return "not_found"
	case status == 429:
		return "rate_limited"
	case status == 502:
		return "upstream_rejected"
	case status == 503:
		return "upstream_unavailable"
	case status >= 500:
		return "internal_error"
	default:
		return "other"
	}
}

// GetEndpointFromPath normalizes a request path to its route template for
// requests that did not match a route
func GetEndpointFromPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/cart/items/"):
		return "/v1/cart/items/{identity}"
	case strings.HasPrefix(path, "/v1/saved-carts/") && strings.HasSuffix(path, "/load"):
		return "/v1/saved-carts/{id}/load"
	case strings.HasPrefix(path, "/v1/saved-carts/"):
		return "/v1/saved-carts/{id}"
	case strings.HasPrefix(path, "/v1/") || path == "/health":
		return path
	default:
		return "other"
	}
}

// NormalizeClientIP categorizes client IPs to control cardinality
func NormalizeClientIP(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return "invalid"
	}
	if ip.IsLoopback() {
		return "localhost"
	}
	if ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return "internal"
	}
	return "external"
}
