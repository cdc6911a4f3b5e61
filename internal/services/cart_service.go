package services

import (
	"context"
	"log/slog"
	"strings"

	"cart-pricing-api/internal/cart"
	"cart-pricing-api/internal/models"
	"cart-pricing-api/internal/pricing"
	"cart-pricing-api/internal/savedcart"

	"golang.org/x/sync/errgroup"
)

const searchConcurrency = 4

// PriceLookup is the read-only product surface of the pricing backend
type PriceLookup interface {
	SearchByItem(ctx context.Context, city, itemName string) ([]models.PricedProduct, error)
	Identical(ctx context.Context, city, itemCode string) ([]models.PricedProduct, error)
	Cities(ctx context.Context) ([]string, error)
}

// CartService handles cart, comparison, search and saved-cart operations
// for the local API
type CartService struct {
	store       *cart.Store
	resolver    *pricing.Resolver
	lookup      PriceLookup
	savedCarts  *savedcart.Repository
	defaultCity string
}

// NewCartService creates a new cart service instance
func NewCartService(store *cart.Store, resolver *pricing.Resolver, lookup PriceLookup, savedCarts *savedcart.Repository, defaultCity string) *CartService {
	return &CartService{
		store:       store,
		resolver:    resolver,
		lookup:      lookup,
		savedCarts:  savedCarts,
		defaultCity: strings.TrimSpace(defaultCity),
	}
}

// Cart returns the current cart snapshot
func (s *CartService) Cart() models.CartSnapshot {
	return s.store.Snapshot()
}

// AddItem adds quantity of a product identified by barcode or, failing
// that, by name
func (s *CartService) AddItem(barcode, name string, quantity int) (models.CartSnapshot, error) {
	identity := cart.NormalizeIdentity(barcode, name)
	if identity == "" {
		return models.CartSnapshot{}, models.NewValidationError("itemName", "or barcode is required")
	}
	if quantity < 1 {
		return models.CartSnapshot{}, models.NewValidationError("quantity", "must be at least 1")
	}

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = identity
	}
	s.store.AddItem(identity, displayName, quantity)
	return s.store.Snapshot(), nil
}

// SetQuantity overwrites the quantity of an existing line; zero removes it
func (s *CartService) SetQuantity(identity string, quantity int) (models.CartSnapshot, error) {
	if quantity < 0 {
		return models.CartSnapshot{}, models.NewValidationError("quantity", "must not be negative")
	}
	identity = s.lineIdentity(identity)
	if !s.store.Contains(identity) {
		return models.CartSnapshot{}, models.NewNotFoundError("cart item", identity)
	}
	s.store.SetQuantity(identity, quantity)
	return s.store.Snapshot(), nil
}

// RemoveItem removes a line; removing an absent line is not an error
func (s *CartService) RemoveItem(identity string) models.CartSnapshot {
	s.store.RemoveItem(s.lineIdentity(identity))
	return s.store.Snapshot()
}

// lineIdentity maps an identity taken from a request path onto a cart line.
// Barcodes match as given; names match in their normalized form.
func (s *CartService) lineIdentity(identity string) string {
	if trimmed := strings.TrimSpace(identity); s.store.Contains(trimmed) {
		return trimmed
	}
	return cart.NormalizeIdentity("", identity)
}

// ClearCart empties the cart
func (s *CartService) ClearCart() models.CartSnapshot {
	s.store.Clear()
	return s.store.Snapshot()
}

// Compare resolves the cheapest store for the current cart. The result is
// flagged stale when the cart changed while the comparison was in flight.
func (s *CartService) Compare(ctx context.Context, city string) (*models.ComparisonResponse, error) {
	snapshot := s.store.Snapshot()

	result, err := s.resolver.Resolve(ctx, snapshot, s.city(city))
	if err != nil {
		return nil, err
	}

	current := s.store.Snapshot()
	stale := result.IsStale(current)
	if stale {
		slog.Info("Cart changed during comparison",
			"result_id", result.ID,
			"computed_version", result.Cart.Version,
			"current_version", current.Version)
	}

	return &models.ComparisonResponse{CheapestCartResult: result, Stale: stale}, nil
}

// Cities returns the cities known to the pricing backend
func (s *CartService) Cities(ctx context.Context) ([]string, error) {
	return s.lookup.Cities(ctx)
}

// Search finds products matching query in city
func (s *CartService) Search(ctx context.Context, city, query string) ([]models.PricedProduct, error) {
	city = s.city(city)
	query = strings.TrimSpace(query)
	if city == "" {
		return nil, models.NewValidationError("city", "must not be blank")
	}
	if query == "" {
		return nil, models.NewValidationError("q", "must not be blank")
	}
	return s.lookup.SearchByItem(ctx, city, query)
}

// SearchMany runs one search per query concurrently and returns the results
// in query order. The first failure cancels the remaining searches.
func (s *CartService) SearchMany(ctx context.Context, city string, queries []string) ([]models.SearchResult, error) {
	city = s.city(city)
	if city == "" {
		return nil, models.NewValidationError("city", "must not be blank")
	}

	cleaned := make([]string, 0, len(queries))
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return nil, models.NewValidationError("q", "at least one query is required")
	}

	results := make([]models.SearchResult, len(cleaned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)

	for i, query := range cleaned {
		i, query := i, query
		g.Go(func() error {
			products, err := s.lookup.SearchByItem(gctx, city, query)
			if err != nil {
				return err
			}
			if products == nil {
				products = []models.PricedProduct{}
			}
			results[i] = models.SearchResult{Query: query, Products: products}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		slog.Warn("Multi-item search failed", "city", city, "query_count", len(cleaned), "error", err)
		return nil, err
	}

	return results, nil
}

// Identical returns the product with itemCode across the stores of city
func (s *CartService) Identical(ctx context.Context, city, itemCode string) ([]models.PricedProduct, error) {
	city = s.city(city)
	itemCode = strings.TrimSpace(itemCode)
	if city == "" {
		return nil, models.NewValidationError("city", "must not be blank")
	}
	if itemCode == "" {
		return nil, models.NewValidationError("code", "must not be blank")
	}
	return s.lookup.Identical(ctx, city, itemCode)
}

// SaveCart stores the current cart under name
func (s *CartService) SaveCart(ctx context.Context, name, city string) (string, error) {
	return s.savedCarts.Save(ctx, name, s.store.Snapshot(), s.city(city))
}

// UpdateSavedCart overwrites a saved cart with the current cart
func (s *CartService) UpdateSavedCart(ctx context.Context, id, name, city string) error {
	return s.savedCarts.Update(ctx, id, name, s.store.Snapshot(), s.city(city))
}

// ListSavedCarts returns saved carts, most recently updated first
func (s *CartService) ListSavedCarts(ctx context.Context) ([]models.SavedCartSummary, error) {
	return s.savedCarts.List(ctx)
}

// GetSavedCart returns one saved cart without touching the live cart
func (s *CartService) GetSavedCart(ctx context.Context, id string) (*models.SavedCart, error) {
	return s.savedCarts.Load(ctx, id)
}

// DeleteSavedCart deletes a saved cart; deleting twice succeeds
func (s *CartService) DeleteSavedCart(ctx context.Context, id string) error {
	return s.savedCarts.Delete(ctx, id)
}

// LoadIntoCart applies a saved cart to the live cart, replacing or merging
// its lines
func (s *CartService) LoadIntoCart(ctx context.Context, id string, mode models.LoadMode) (models.CartSnapshot, error) {
	if mode == "" {
		mode = models.LoadModeReplace
	}
	if mode != models.LoadModeReplace && mode != models.LoadModeMerge {
		return models.CartSnapshot{}, models.NewValidationError("mode", "must be replace or merge")
	}

	saved, err := s.savedCarts.Load(ctx, id)
	if err != nil {
		return models.CartSnapshot{}, err
	}

	if mode == models.LoadModeMerge {
		s.store.Merge(saved.Lines)
	} else {
		s.store.Replace(saved.Lines)
	}

	slog.Info("Saved cart loaded into cart", "saved_cart_id", saved.ID, "mode", mode, "line_count", len(saved.Lines))
	return s.store.Snapshot(), nil
}

func (s *CartService) city(city string) string {
	if city = strings.TrimSpace(city); city != "" {
		return city
	}
	return s.defaultCity
}
