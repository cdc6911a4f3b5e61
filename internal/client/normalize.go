package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"cart-pricing-api/internal/cart"
	"cart-pricing-api/internal/models"
	"cart-pricing-api/internal/pricing"

	"github.com/shopspring/decimal"
)

var errEmptyBody = errors.New("empty response body")

// NormalizeComparison maps any accepted cheapest-cart response shape onto a
// CartComparison. Accepted shapes:
//   - list: top-level best store fields plus all_stores
//   - legacy: best_store object plus savings_amount
//   - a bare array of store totals
//
// A best store absent from the store list is added to it. Store totals
// without a price are dropped.
func NormalizeComparison(body []byte, requestCity string) (*models.CartComparison, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}

	comparison := &models.CartComparison{
		City:       requestCity,
		ItemPrices: map[string]decimal.Decimal{},
	}

	if trimmed[0] == '[' {
		var stores []models.StoreTotalWire
		if err := json.Unmarshal(trimmed, &stores); err != nil {
			return nil, fmt.Errorf("failed to decode store list: %w", err)
		}
		comparison.Quotes = toQuotes(stores)
		return comparison, nil
	}

	var resp models.CheapestCartResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cheapest-cart response: %w", err)
	}

	if resp.City != "" {
		comparison.City = resp.City
	}
	for identity, price := range resp.ItemPrices {
		comparison.ItemPrices[identity] = price
	}

	stores := make([]models.StoreTotalWire, 0, len(resp.AllStores)+1)
	stores = append(stores, resp.AllStores...)

	var best *models.StoreTotalWire
	switch {
	case resp.BestStore != nil:
		best = resp.BestStore
	case resp.Chain != "" || resp.StoreID != "" || resp.TotalPrice.Valid:
		best = &resp.StoreTotalWire
	}
	if best != nil {
		comparison.ItemPricesFrom = models.StoreRef{Chain: best.Chain, StoreID: best.StoreID.String()}
		if !containsStore(stores, *best) {
			stores = append(stores, *best)
		}
	}

	comparison.Quotes = toQuotes(stores)
	return comparison, nil
}

func containsStore(stores []models.StoreTotalWire, target models.StoreTotalWire) bool {
	for _, s := range stores {
		if s.Chain == target.Chain && s.StoreID == target.StoreID {
			return true
		}
	}
	return false
}

func toQuotes(stores []models.StoreTotalWire) []models.StoreQuote {
	quotes := make([]models.StoreQuote, 0, len(stores))
	for _, s := range stores {
		if !s.TotalPrice.Valid {
			slog.Debug("Dropping store total without price", "chain", s.Chain, "store_id", s.StoreID.String())
			continue
		}
		quotes = append(quotes, models.StoreQuote{
			Chain:            s.Chain,
			StoreID:          s.StoreID.String(),
			TotalPrice:       s.TotalPrice.Decimal,
			MissingItemCount: s.Missing(),
		})
	}
	return quotes
}

type productGroup struct {
	identity    string
	displayName string
	prices      []models.StorePrice
}

// NormalizeProducts maps grouped or flat price rows, bare or wrapped in
// {"results": [...]} or {"products": [...]}, onto priced products. Flat rows
// are grouped by item code, falling back to the normalized item name.
// Products keep the order in which they first appear.
func NormalizeProducts(body []byte) ([]models.PricedProduct, error) {
	entries, err := decodeEntries(body)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*productGroup)
	order := make([]string, 0)

	groupFor := func(code, name string) *productGroup {
		identity := cart.NormalizeIdentity(code, name)
		if identity == "" {
			return nil
		}
		g, ok := groups[identity]
		if !ok {
			g = &productGroup{identity: identity, displayName: name}
			groups[identity] = g
			order = append(order, identity)
		}
		if g.displayName == "" {
			g.displayName = name
		}
		return g
	}

	for _, entry := range entries {
		if len(entry.Prices) > 0 {
			g := groupFor(entry.ItemCode.String(), entry.ItemName)
			if g == nil {
				continue
			}
			for _, row := range entry.Prices {
				if row.ItemName == "" {
					row.ItemName = entry.ItemName
				}
				if p, ok := toStorePrice(row); ok {
					g.prices = append(g.prices, p)
				}
			}
			continue
		}

		g := groupFor(entry.ItemCode.String(), entry.ItemName)
		if g == nil {
			continue
		}
		if p, ok := toStorePrice(entry.PriceRowWire); ok {
			g.prices = append(g.prices, p)
		}
	}

	products := make([]models.PricedProduct, 0, len(order))
	for _, identity := range order {
		g := groups[identity]
		if len(g.prices) == 0 {
			continue
		}
		products = append(products, pricing.BuildPricedProduct(g.identity, g.displayName, g.prices))
	}
	return products, nil
}

func decodeEntries(body []byte) ([]models.PriceEntryWire, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}

	if trimmed[0] == '[' {
		var entries []models.PriceEntryWire
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode price list: %w", err)
		}
		return entries, nil
	}

	var wrapped struct {
		Results  []models.PriceEntryWire `json:"results"`
		Products []models.PriceEntryWire `json:"products"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode price envelope: %w", err)
	}
	if wrapped.Results != nil {
		return wrapped.Results, nil
	}
	return wrapped.Products, nil
}

func toStorePrice(row models.PriceRowWire) (models.StorePrice, bool) {
	if !row.Price.Valid || row.Price.Decimal.IsNegative() {
		return models.StorePrice{}, false
	}
	return models.StorePrice{
		Chain:        row.Chain,
		StoreID:      row.StoreID.String(),
		Price:        row.Price.Decimal,
		OriginalName: row.ItemName,
		ObservedAt:   models.ParseTimestamp(row.Timestamp),
	}, true
}

// NormalizeCities accepts a bare array of names or {"cities": [...]}
func NormalizeCities(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}

	var cities []string
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &cities); err != nil {
			return nil, fmt.Errorf("failed to decode city list: %w", err)
		}
	} else {
		var wrapped struct {
			Cities []string `json:"cities"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode city envelope: %w", err)
		}
		cities = wrapped.Cities
	}

	if cities == nil {
		cities = []string{}
	}
	return cities, nil
}
