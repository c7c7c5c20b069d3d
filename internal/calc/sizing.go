package calc

import (
	"math"

	"rebalance_bot/internal/models"
)

// truncate floors v to the given number of fractional digits. Flooring,
// never rounding, keeps a computed order inside the funds it was sized
// against.
func truncate(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Floor(v*scale) / scale
}

// FixNotional truncates a quote-currency amount to the instrument's
// price precision.
func FixNotional(inst models.Instrument, notional float64) float64 {
	return truncate(notional, inst.PriceDecimals)
}

// FixQuantity truncates a base-asset quantity to the instrument's
// quantity precision.
func FixQuantity(inst models.Instrument, quantity float64) float64 {
	return truncate(quantity, inst.QuantityDecimals)
}

// MinimumBuyNotional is the smallest buy the exchange will take: the
// larger of one price tick and one quantity tick valued at the best ask,
// inflated 10% so a borderline order is not rejected.
func MinimumBuyNotional(inst models.Instrument, book models.OrderBook) float64 {
	minPriceNotional := (1 / math.Pow(10, float64(inst.PriceDecimals))) * 1.1
	minQuantityNotional := (book.BestAsk() / math.Pow(10, float64(inst.QuantityDecimals))) * 1.1

	if minPriceNotional > minQuantityNotional {
		return minPriceNotional
	}
	return minQuantityNotional
}

// MinimumSellQuantity is one quantity tick. Anything below it is dust
// the exchange will not sell.
func MinimumSellQuantity(inst models.Instrument) float64 {
	return 1 / math.Pow(10, float64(inst.QuantityDecimals))
}
