package pricing

import (
	"cart-pricing-api/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BuildPricedProduct classifies the store prices of one product and derives
// its lowest, highest and average price and the savings percentage between
// the highest and lowest price.
func BuildPricedProduct(identity, displayName string, prices []models.StorePrice) models.PricedProduct {
	product := models.PricedProduct{
		ItemIdentity: identity,
		DisplayName:  displayName,
		StorePrices:  ClassifyPrices(prices),
	}
	if len(product.StorePrices) == 0 {
		return product
	}

	sum := decimal.Zero
	for _, p := range product.StorePrices {
		sum = sum.Add(p.Price)
	}

	product.LowestPrice = product.StorePrices[0].Price
	product.HighestPrice = product.StorePrices[len(product.StorePrices)-1].Price
	product.AveragePrice = sum.Div(decimal.NewFromInt(int64(len(product.StorePrices)))).Round(2)
	product.SavingsPercent = SavingsPercent(product.LowestPrice, product.HighestPrice)

	return product
}

// SavingsPercent returns (high-low)/high*100 rounded to two decimals, or
// zero when high is not positive.
func SavingsPercent(low, high decimal.Decimal) decimal.Decimal {
	if !high.IsPositive() {
		return decimal.Zero
	}
	return high.Sub(low).Div(high).Mul(hundred).Round(2)
}
