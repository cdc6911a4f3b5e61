package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Wire types for the remote pricing backend. The backend is not consistent
// about shapes, so these are permissive and normalized by the client package.

// FlexString accepts either a JSON string or a JSON number
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", raw)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// CartItemRequest is one line of a cheapest-cart request
type CartItemRequest struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

// CheapestCartRequest is the body of POST /cheapest-cart
type CheapestCartRequest struct {
	City  string            `json:"city"`
	Items []CartItemRequest `json:"items"`
}

// StoreTotalWire is one store total as sent by the backend
type StoreTotalWire struct {
	Chain        string              `json:"chain"`
	StoreID      FlexString          `json:"store_id"`
	TotalPrice   decimal.NullDecimal `json:"total_price"`
	MissingCount *int                `json:"missing_count,omitempty"`
	MissingItems []string            `json:"missing_items,omitempty"`
}

// Missing returns the number of cart items the store does not carry
func (s StoreTotalWire) Missing() int {
	n := len(s.MissingItems)
	if s.MissingCount != nil && *s.MissingCount > n {
		n = *s.MissingCount
	}
	return n
}

// CheapestCartResponse covers both the list-of-stores shape and the legacy
// flat best-store shape.
type CheapestCartResponse struct {
	StoreTotalWire
	WorstPrice     decimal.NullDecimal        `json:"worst_price"`
	Savings        decimal.NullDecimal        `json:"savings"`
	SavingsPercent decimal.NullDecimal        `json:"savings_percent"`
	City           string                     `json:"city"`
	Items          []CartItemRequest          `json:"items"`
	ItemPrices     map[string]decimal.Decimal `json:"item_prices"`
	AllStores      []StoreTotalWire           `json:"all_stores"`

	// legacy shape
	BestStore     *StoreTotalWire     `json:"best_store,omitempty"`
	SavingsAmount decimal.NullDecimal `json:"savings_amount"`
}

// PriceRowWire is one store price row from the search endpoints
type PriceRowWire struct {
	Chain     string              `json:"chain"`
	StoreID   FlexString          `json:"store_id"`
	ItemCode  FlexString          `json:"item_code"`
	ItemName  string              `json:"item_name"`
	Price     decimal.NullDecimal `json:"price"`
	Timestamp string              `json:"timestamp"`
}

// PriceEntryWire is either a flat price row or a product group with prices
type PriceEntryWire struct {
	PriceRowWire
	Prices []PriceRowWire `json:"prices,omitempty"`
}

// SavedCartItemWire is one line of a saved cart on the wire
type SavedCartItemWire struct {
	ItemName    string `json:"item_name"`
	DisplayName string `json:"display_name,omitempty"`
	Quantity    int    `json:"quantity"`
}

// SaveCartRequest is the body of POST/PUT on saved carts
type SaveCartRequest struct {
	Name  string              `json:"name"`
	City  string              `json:"city"`
	Items []SavedCartItemWire `json:"items"`
}

// SaveCartResponse carries the id assigned by the backend
type SaveCartResponse struct {
	ID     FlexString `json:"id"`
	CartID FlexString `json:"cart_id"`
}

// SavedCartWire is a saved cart summary or detail on the wire
type SavedCartWire struct {
	ID        FlexString          `json:"id"`
	Name      string              `json:"name"`
	City      string              `json:"city"`
	ItemCount *int                `json:"item_count,omitempty"`
	Items     []SavedCartItemWire `json:"items,omitempty"`
	CreatedAt string              `json:"created_at"`
	UpdatedAt string              `json:"updated_at"`
}

// BackendErrorWire is the error body returned by the pricing backend
type BackendErrorWire struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Text returns the first non-empty message field
func (b BackendErrorWire) Text() string {
	for _, s := range []string{b.Detail, b.Message, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats seen from the backend.
// The zero time is returned for empty or unrecognized input.
func ParseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
