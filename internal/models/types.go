package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// CartLine is one distinct product entry in the cart, keyed by ItemIdentity
type CartLine struct {
	ItemIdentity string `json:"itemIdentity"`
	DisplayName  string `json:"displayName"`
	Quantity     int    `json:"quantity"`
}

// CartSnapshot is an immutable copy of the cart at a point in time.
// Version increases by one on every mutation of the owning store.
type CartSnapshot struct {
	Lines   []CartLine `json:"lines"`
	Version uint64     `json:"version"`
	TakenAt time.Time  `json:"takenAt"`
}

// ItemCount returns the sum of all line quantities
func (s CartSnapshot) ItemCount() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}

// LineCount returns the number of distinct lines
func (s CartSnapshot) LineCount() int {
	return len(s.Lines)
}

// IsEmpty reports whether the snapshot has no lines
func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}

// Equal reports whether both snapshots hold the same lines in the same order.
// Version and TakenAt are ignored.
func (s CartSnapshot) Equal(other CartSnapshot) bool {
	if len(s.Lines) != len(other.Lines) {
		return false
	}
	for i := range s.Lines {
		if s.Lines[i] != other.Lines[i] {
			return false
		}
	}
	return true
}

// StoreQuote is one store's total for the whole cart
type StoreQuote struct {
	Chain            string          `json:"chain"`
	StoreID          string          `json:"storeId"`
	TotalPrice       decimal.Decimal `json:"totalPrice"`
	MissingItemCount int             `json:"missingItemCount"`
}

// StoreRef identifies one store of a chain
type StoreRef struct {
	Chain   string `json:"chain"`
	StoreID string `json:"storeId"`
}

// Ref returns the store the quote belongs to
func (q StoreQuote) Ref() StoreRef {
	return StoreRef{Chain: q.Chain, StoreID: q.StoreID}
}

// CartComparison is the backend answer to a cheapest-cart request after
// every accepted wire shape has been normalized. ItemPrices are the prices
// at ItemPricesFrom; a zero ItemPricesFrom means their store is unknown.
type CartComparison struct {
	City           string                     `json:"city"`
	Quotes         []StoreQuote               `json:"quotes"`
	ItemPrices     map[string]decimal.Decimal `json:"itemPrices"`
	ItemPricesFrom StoreRef                   `json:"itemPricesFrom"`
}

// CheapestCartResult is the resolved outcome of one comparison. It is never
// mutated after construction.
type CheapestCartResult struct {
	ID             string                     `json:"id"`
	City           string                     `json:"city"`
	Cart           CartSnapshot               `json:"cart"`
	BestQuote      StoreQuote                 `json:"bestQuote"`
	WorstQuote     StoreQuote                 `json:"worstQuote"`
	AllQuotes      []StoreQuote               `json:"allQuotes"`
	SavingsAmount  decimal.Decimal            `json:"savingsAmount"`
	SavingsPercent decimal.Decimal            `json:"savingsPercent"`
	PerItemPrices  map[string]decimal.Decimal `json:"perItemPrices"`
	ResolvedAt     time.Time                  `json:"resolvedAt"`
}

// IsStale reports whether the cart changed since this result was computed
func (r *CheapestCartResult) IsStale(current CartSnapshot) bool {
	return !r.Cart.Equal(current)
}

// PriceLevel is the qualitative rank of one store price for a product
type PriceLevel string

const (
	PriceLevelBest PriceLevel = "BEST"
	PriceLevelMid  PriceLevel = "MID"
	PriceLevelHigh PriceLevel = "HIGH"
)

// StorePrice is the price of one product at one store
type StorePrice struct {
	Chain        string          `json:"chain"`
	StoreID      string          `json:"storeId"`
	Price        decimal.Decimal `json:"price"`
	OriginalName string          `json:"originalName"`
	ObservedAt   time.Time       `json:"observedAt"`
	Level        PriceLevel      `json:"priceLevel,omitempty"`
}

// PricedProduct is one product with its prices across stores
type PricedProduct struct {
	ItemIdentity   string          `json:"itemIdentity"`
	DisplayName    string          `json:"displayName"`
	StorePrices    []StorePrice    `json:"storePrices"`
	LowestPrice    decimal.Decimal `json:"lowestPrice"`
	HighestPrice   decimal.Decimal `json:"highestPrice"`
	AveragePrice   decimal.Decimal `json:"averagePrice"`
	SavingsPercent decimal.Decimal `json:"savingsPercent"`
}

// SavedCart is a named cart persisted by the pricing backend
type SavedCart struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	City      string     `json:"city"`
	Lines     []CartLine `json:"lines"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SavedCartSummary is the list view of a saved cart
type SavedCartSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	ItemCount int       `json:"itemCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event represents a change in the cart observed through the change feed
type Event struct {
	Offset    int64        `json:"offset"`
	Timestamp string       `json:"timestamp"`
	EventType string       `json:"eventType"`
	Cart      CartSnapshot `json:"cart"`
}

// EventsResponse represents the response for the cart events endpoint
type EventsResponse struct {
	Events     []Event `json:"events"`
	NextOffset int64   `json:"nextOffset"`
	HasMore    bool    `json:"hasMore"`
	Count      int     `json:"count"`
}

// EventType constants
const (
	EventTypeCartUpdated  = "cart_updated"
	EventTypeCartCleared  = "cart_cleared"
	EventTypeCartReplaced = "cart_replaced"
)

// ComparisonResponse is a resolved comparison plus whether the cart changed
// while it was being computed
type ComparisonResponse struct {
	*CheapestCartResult
	Stale bool `json:"stale"`
}

// SearchResult is the outcome of one query of a multi-item search
type SearchResult struct {
	Query    string          `json:"query"`
	Products []PricedProduct `json:"products"`
}

// LoadMode selects how a saved cart is applied to the live cart
type LoadMode string

const (
	LoadModeReplace LoadMode = "replace"
	LoadModeMerge   LoadMode = "merge"
)
