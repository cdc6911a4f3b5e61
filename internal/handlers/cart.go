package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"cart-pricing-api/internal/services"

	"github.com/gorilla/mux"
)

// AddItemRequest is the body of POST /v1/cart/items
type AddItemRequest struct {
	Barcode  string `json:"barcode"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// SetQuantityRequest is the body of PUT /v1/cart/items/{identity}
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CompareRequest is the body of POST /v1/cart/compare
type CompareRequest struct {
	City string `json:"city"`
}

// CartHandler handles cart-related HTTP requests
type CartHandler struct {
	cartService *services.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *services.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

// GetCart handles GET /v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.cartService.Cart())
}

// AddItem handles POST /v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	snapshot, err := h.cartService.AddItem(req.Barcode, req.ItemName, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Debug("Cart item added", "barcode", req.Barcode, "item_name", req.ItemName, "quantity", req.Quantity, "remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusOK, snapshot)
}

// SetQuantity handles PUT /v1/cart/items/{identity}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	identity := mux.Vars(r)["identity"]

	var req SetQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snapshot, err := h.cartService.SetQuantity(identity, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, snapshot)
}

// RemoveItem handles DELETE /v1/cart/items/{identity}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, h.cartService.RemoveItem(mux.Vars(r)["identity"]))
}

// ClearCart handles DELETE /v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	slog.Info("Clearing cart", "remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusOK, h.cartService.ClearCart())
}

// Compare handles POST /v1/cart/compare. An empty body compares in the
// default city.
func (h *CartHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if r.Body != nil {
		if err := decodeOptionalJSON(r.Body, &req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
			return
		}
	}

	result, err := h.cartService.Compare(r.Context(), req.City)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("Cart compared",
		"city", result.City,
		"best_chain", result.BestQuote.Chain,
		"best_total", result.BestQuote.TotalPrice.StringFixed(2),
		"stale", result.Stale,
		"remote_addr", r.RemoteAddr)

	writeJSONResponse(w, http.StatusOK, result)
}

func decodeOptionalJSON(body io.Reader, dest interface{}) error {
	err := json.NewDecoder(body).Decode(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
