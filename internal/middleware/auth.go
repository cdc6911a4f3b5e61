package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"cart-pricing-api/internal/models"
)

// APIKeyAuth provides API key authentication against a fixed key set
type APIKeyAuth struct {
	keys []string
}

// NewAPIKeyAuth creates an authenticator accepting any of keys
func NewAPIKeyAuth(keys []string) *APIKeyAuth {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	return &APIKeyAuth{keys: cleaned}
}

// Middleware rejects requests without a valid X-API-Key header
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			slog.Warn("Authentication failed: missing API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "API key required", nil)
			return
		}

		if !a.isValid(apiKey) {
			slog.Warn("Authentication failed: invalid API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *APIKeyAuth) isValid(apiKey string) bool {
	for _, valid := range a.keys {
		if subtle.ConstantTimeCompare([]byte(valid), []byte(apiKey)) == 1 {
			return true
		}
	}
	return false
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
