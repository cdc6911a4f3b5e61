package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	api "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metric exporters selectable through METRICS_EXPORTER
const (
	ExporterScraper = "scraper"
	ExporterGRPC    = "grpc"
	ExporterNone    = "none"
)

// Telemetry owns the meter provider and, for the scraper exporter, the
// /metrics HTTP server
type Telemetry struct {
	server   *http.Server          // If type of metrics collection == "scraper".
	Provider *metric.MeterProvider // Set for both exporters.
	meter    api.Meter
}

// InitMetrics initializes the exporter selected by exporter. Failures are
// logged and leave the global no-op provider in place.
func InitMetrics(ctx context.Context, meterName, exporter, scrapeAddr string) *Telemetry {
	t := &Telemetry{}

	switch exporter {
	case ExporterScraper:
		slog.Info("Starting metrics with scraper exporter", "addr", scrapeAddr)
		t.initScrapeMetrics(meterName, scrapeAddr)
	case ExporterGRPC:
		slog.Info("Starting metrics with grpc exporter")
		t.initGRPCMetrics(ctx, meterName)
	default:
		slog.Info("Metrics export disabled", "exporter", exporter)
	}

	return t
}

// Shutdown flushes pending metrics and stops the scrape server
func (t *Telemetry) Shutdown(ctx context.Context) {
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		} else {
			slog.Info("Shutting down metrics server")
		}
	}
	if t.Provider != nil {
		if err := t.Provider.Shutdown(ctx); err != nil {
			slog.Warn("Meter provider shutdown failed", "error", err)
		}
	}
}

// Sends data to localhost:4317 or whatever OTEL_EXPORTER_OTLP_METRICS_ENDPOINT is set to.
func (t *Telemetry) initGRPCMetrics(ctx context.Context, meterName string) {
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		slog.Error("Creating GRPC exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)
}

func (t *Telemetry) initScrapeMetrics(meterName, addr string) {
	// The exporter is both an OpenTelemetry reader and a prometheus.Collector
	exporter, err := prometheus.New()
	if err != nil {
		slog.Error("Creating HTML scrape exporter", "error", err)
		return
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(t.Provider)
	t.meter = t.Provider.Meter(meterName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	t.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go t.serveMetrics()
}

func (t *Telemetry) serveMetrics() {
	slog.Info("Serving metrics", "addr", t.server.Addr, "path", "/metrics")

	if err := t.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("Metrics server closed")
			return
		}
		slog.Error("Metrics ListenAndServe exited with", "error", err)
	}
}
