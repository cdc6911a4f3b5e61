package pricing

import (
	"sort"

	"cart-pricing-api/internal/models"
)

// ClassifyPrices sorts the prices of a single product ascending (ties by
// chain, then store id) and annotates each with its price level. Levels are
// assigned by value: every entry equal to the minimum is BEST, every entry
// equal to the maximum is HIGH, everything strictly between is MID.
//
// The input must be non-empty; an empty input yields an empty result. The
// input slice is not modified.
func ClassifyPrices(prices []models.StorePrice) []models.StorePrice {
	if len(prices) == 0 {
		return []models.StorePrice{}
	}

	sorted := make([]models.StorePrice, len(prices))
	copy(sorted, prices)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Price.Cmp(sorted[j].Price); c != 0 {
			return c < 0
		}
		if sorted[i].Chain != sorted[j].Chain {
			return sorted[i].Chain < sorted[j].Chain
		}
		return sorted[i].StoreID < sorted[j].StoreID
	})

	lowest := sorted[0].Price
	highest := sorted[len(sorted)-1].Price

	for i := range sorted {
		switch {
		case sorted[i].Price.Equal(lowest):
			sorted[i].Level = models.PriceLevelBest
		case sorted[i].Price.Equal(highest):
			sorted[i].Level = models.PriceLevelHigh
		default:
			sorted[i].Level = models.PriceLevelMid
		}
	}

	return sorted
}
