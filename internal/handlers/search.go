package handlers

import (
	"log/slog"
	"net/http"

	"cart-pricing-api/internal/services"
)

// SearchHandler handles product and city lookups
type SearchHandler struct {
	cartService *services.CartService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(cartService *services.CartService) *SearchHandler {
	return &SearchHandler{
		cartService: cartService,
	}
}

// Cities handles GET /v1/cities
func (h *SearchHandler) Cities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.cartService.Cities(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"cities": cities,
		"count":  len(cities),
	})
}

// Search handles GET /v1/search?city=&q=. A single q returns the product
// list; repeated q parameters return one result per query.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	city := query.Get("city")
	queries := query["q"]

	slog.Debug("Searching products", "city", city, "queries", queries, "remote_addr", r.RemoteAddr)

	if len(queries) <= 1 {
		q := ""
		if len(queries) == 1 {
			q = queries[0]
		}
		products, err := h.cartService.Search(r.Context(), city, q)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"query":    q,
			"products": products,
			"count":    len(products),
		})
		return
	}

	results, err := h.cartService.SearchMany(r.Context(), city, queries)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Identical handles GET /v1/products/identical?city=&code=
func (h *SearchHandler) Identical(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	products, err := h.cartService.Identical(r.Context(), query.Get("city"), query.Get("code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"code":     query.Get("code"),
		"products": products,
		"count":    len(products),
	})
}
