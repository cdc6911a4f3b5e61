package handlers

import (
	"log/slog"
	"net/http"

	"cart-pricing-api/internal/models"
	"cart-pricing-api/internal/services"

	"github.com/gorilla/mux"
)

// SaveCartRequest is the body of POST /v1/saved-carts and PUT /v1/saved-carts/{id}
type SaveCartRequest struct {
	Name string `json:"name"`
	City string `json:"city"`
}

// SavedCartsHandler handles saved-cart HTTP requests
type SavedCartsHandler struct {
	cartService *services.CartService
}

// NewSavedCartsHandler creates a new saved-carts handler
func NewSavedCartsHandler(cartService *services.CartService) *SavedCartsHandler {
	return &SavedCartsHandler{
		cartService: cartService,
	}
}

// List handles GET /v1/saved-carts
func (h *SavedCartsHandler) List(w http.ResponseWriter, r *http.Request) {
	carts, err := h.cartService.ListSavedCarts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"carts": carts,
		"count": len(carts),
	})
}

// Save handles POST /v1/saved-carts - saves the current cart
func (h *SavedCartsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.cartService.SaveCart(r.Context(), req.Name, req.City)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slog.Info("Cart saved", "saved_cart_id", id, "name", req.Name, "remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusCreated, map[string]string{"id": id})
}

// Get handles GET /v1/saved-carts/{id}
func (h *SavedCartsHandler) Get(w http.ResponseWriter, r *http.Request) {
	saved, err := h.cartService.GetSavedCart(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, saved)
}

// Update handles PUT /v1/saved-carts/{id} - overwrites it with the current cart
func (h *SavedCartsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req SaveCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.cartService.UpdateSavedCart(r.Context(), id, req.Name, req.City); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"id": id})
}

// Delete handles DELETE /v1/saved-carts/{id}
func (h *SavedCartsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.cartService.DeleteSavedCart(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Load handles POST /v1/saved-carts/{id}/load?mode=replace|merge
func (h *SavedCartsHandler) Load(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	mode := models.LoadMode(r.URL.Query().Get("mode"))

	snapshot, err := h.cartService.LoadIntoCart(r.Context(), id, mode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, snapshot)
}
