package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cart-pricing-api/internal/events"
	"cart-pricing-api/internal/models"
	"cart-pricing-api/internal/telemetry"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
	maxWaitSeconds     = 60
)

// EventsHandler handles cart change feed requests
type EventsHandler struct {
	eventQueue *events.EventQueue
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(eventQueue *events.EventQueue, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		eventQueue: eventQueue,
		logger:     logger,
	}
}

// GetEvents handles GET /v1/cart/events?offset=&limit=&wait=
func (h *EventsHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	offsetStr := r.URL.Query().Get("offset")
	if offsetStr == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "offset parameter is required", []models.ErrorDetail{
			{Field: "offset", Issue: "is required"},
		})
		return
	}

	offset, err := strconv.ParseInt(offsetStr, 10, 64)
	if err != nil || offset < 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "invalid offset parameter", []models.ErrorDetail{
			{Field: "offset", Issue: "must be a non-negative integer"},
		})
		return
	}

	limit := defaultEventsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxEventsLimit {
			limit = parsed
		}
	}

	waitSeconds := 0
	if waitStr := r.URL.Query().Get("wait"); waitStr != "" {
		if parsed, err := strconv.Atoi(waitStr); err == nil && parsed >= 0 && parsed <= maxWaitSeconds {
			waitSeconds = parsed
		}
	}

	h.logger.Debug("Events request received",
		"offset", offset,
		"limit", limit,
		"wait", waitSeconds,
		"remote_addr", r.RemoteAddr,
	)

	evts, nextOffset, hasMore := h.eventQueue.GetEvents(offset, limit)

	if len(evts) == 0 && waitSeconds > 0 {
		if !h.eventQueue.WaitForEvents(r.Context(), offset, time.Duration(waitSeconds)*time.Second) {
			if r.Context().Err() != nil {
				h.logger.Debug("Client disconnected during long polling", "offset", offset)
				return
			}
		}
		evts, nextOffset, hasMore = h.eventQueue.GetEvents(offset, limit)
	}

	telemetry.SetEventCount(r.Context(), len(evts))

	writeJSONResponse(w, http.StatusOK, models.EventsResponse{
		Events:     evts,
		NextOffset: nextOffset,
		HasMore:    hasMore,
		Count:      len(evts),
	})
}
