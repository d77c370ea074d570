package pipeline

import (
	"github.com/shopspring/decimal"
)

type discountTier struct {
	minQty  int
	percent int64
}

// evaluated highest first, not cumulative
var discountTiers = []discountTier{
	{minQty: 100, percent: 15},
	{minQty: 50, percent: 10},
	{minQty: 20, percent: 5},
}

// DiscountPercent is the quantity discount applied to the base price.
func DiscountPercent(quantity int) int64 {
	for _, tier := range discountTiers {
		if quantity >= tier.minQty {
			return tier.percent
		}
	}
	return 0
}

// QuotedPrice applies the quantity discount to basePrice, clamps into the
// optional [minPrice, maxPrice] bounds (min first, then max) and rounds half-up
// to 2 decimals.
func QuotedPrice(basePrice float64, quantity int, minPrice, maxPrice *float64) float64 {
	price := decimal.NewFromFloat(basePrice).
		Mul(decimal.NewFromInt(100 - DiscountPercent(quantity))).
		Div(decimal.NewFromInt(100))

	if minPrice != nil {
		if lo := decimal.NewFromFloat(*minPrice); price.LessThan(lo) {
			price = lo
		}
	}
	if maxPrice != nil {
		if hi := decimal.NewFromFloat(*maxPrice); price.GreaterThan(hi) {
			price = hi
		}
	}
	return roundMoney(price).InexactFloat64()
}

// roundMoney rounds half-up to currency precision. Amounts here are never negative.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
