package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cart-pricing-api/internal/utils"

	"github.com/gorilla/mux"
)

type requestInfoKey struct{}

// requestInfo is filled in by handlers while the request is served
type requestInfo struct {
	eventCount int
}

// TelemetryMiddleware wraps HTTP handlers to automatically collect telemetry
type TelemetryMiddleware struct {
	telemetry *CartApiTelemetry
}

// NewTelemetryMiddleware creates a new telemetry middleware
func NewTelemetryMiddleware(telemetry *CartApiTelemetry) *TelemetryMiddleware {
	return &TelemetryMiddleware{
		telemetry: telemetry,
	}
}

// Middleware returns the HTTP middleware function
func (tm *TelemetryMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		info := &requestInfo{}
		r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))

		clientIP := utils.ClientIP(r)
		metrics := ApiMetrics{
			Method:       r.Method,
			Endpoint:     routeTemplate(r),
			ClientIP:     clientIP,
			ClientIPType: NormalizeClientIP(clientIP),
		}

		next.ServeHTTP(wrapper, r)

		metrics.StatusCode = wrapper.statusCode
		metrics.Duration = time.Since(start)
		metrics.EventCount = info.eventCount

		ctx := r.Context()
		if wrapper.statusCode >= 400 {
			metrics.ErrorMessage = errorMessage(wrapper.statusCode)
			tm.telemetry.RegisterRequestError(ctx, metrics)
		} else {
			tm.telemetry.RegisterRequestReceived(ctx, metrics)
		}
		tm.telemetry.RegisterRequestDuration(ctx, metrics)
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return GetEndpointFromPath(r.URL.Path)
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *responseWriterWrapper) Write(data []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(data)
}

// Flush lets long-polling handlers push partial responses
func (w *responseWriterWrapper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func errorMessage(statusCode int) string {
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return "HTTP Error " + strconv.Itoa(statusCode)
}

// SetEventCount records how many events a change-feed request returned
func SetEventCount(ctx context.Context, count int) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.eventCount = count
	}
}

// GetEventCount returns the event count recorded for the request
func GetEventCount(ctx context.Context) int {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.eventCount
	}
	return 0
}
