package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"cart-pricing-api/internal/models"
)

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	writeJSONResponse(w, statusCode, models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// writeServiceError maps an error kind to its HTTP status and error code
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, models.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, models.ErrValidation):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrNoAvailableStores):
		status, code = http.StatusNotFound, "no_available_stores"
	case errors.Is(err, models.ErrPriceServiceUnavailable):
		status, code = http.StatusServiceUnavailable, "price_service_unavailable"
	case errors.Is(err, models.ErrPriceServiceRejected):
		status, code = http.StatusBadGateway, "price_service_rejected"
	}

	message := err.Error()
	var details []models.ErrorDetail
	var structured *models.Error
	if errors.As(err, &structured) {
		if structured.Retryable() {
			w.Header().Set("Retry-After", "5")
		}
		if structured.StatusCode != 0 {
			details = append(details, models.ErrorDetail{
				Field: "upstream_status",
				Issue: strconv.Itoa(structured.StatusCode) + " " + http.StatusText(structured.StatusCode),
			})
		}
		// The backend's own message is passed through unchanged
		if errors.Is(err, models.ErrPriceServiceRejected) && structured.Message != "" {
			message = structured.Message
		}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	} else {
		slog.Debug("Request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	}

	writeErrorResponse(w, status, code, message, details)
}

// decodeJSON decodes the request body into dest, writing a 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return false
	}
	return true
}
