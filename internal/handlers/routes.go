package handlers

import (
	"github.com/gorilla/mux"
)

// Handlers groups the local API handlers
type Handlers struct {
	Cart       *CartHandler
	Search     *SearchHandler
	SavedCarts *SavedCartsHandler
	Events     *EventsHandler
}

// RegisterRoutes registers the /v1 API on r. Specific routes come first.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/cart", h.Cart.GetCart).Methods("GET")
	r.HandleFunc("/cart", h.Cart.ClearCart).Methods("DELETE")
	r.HandleFunc("/cart/events", h.Events.GetEvents).Methods("GET")
	r.HandleFunc("/cart/compare", h.Cart.Compare).Methods("POST")
	r.HandleFunc("/cart/items", h.Cart.AddItem).Methods("POST")
	r.HandleFunc("/cart/items/{identity}", h.Cart.SetQuantity).Methods("PUT")
	r.HandleFunc("/cart/items/{identity}", h.Cart.RemoveItem).Methods("DELETE")

	r.HandleFunc("/cities", h.Search.Cities).Methods("GET")
	r.HandleFunc("/search", h.Search.Search).Methods("GET")
	r.HandleFunc("/products/identical", h.Search.Identical).Methods("GET")

	r.HandleFunc("/saved-carts", h.SavedCarts.List).Methods("GET")
	r.HandleFunc("/saved-carts", h.SavedCarts.Save).Methods("POST")
	r.HandleFunc("/saved-carts/{id}/load", h.SavedCarts.Load).Methods("POST")
	r.HandleFunc("/saved-carts/{id}", h.SavedCarts.Get).Methods("GET")
	r.HandleFunc("/saved-carts/{id}", h.SavedCarts.Update).Methods("PUT")
	r.HandleFunc("/saved-carts/{id}", h.SavedCarts.Delete).Methods("DELETE")
}
