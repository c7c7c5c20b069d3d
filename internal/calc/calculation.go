package calc

import (
	"strings"

	"rebalance_bot/internal/models"
)

// Universe describes which pairs count as investable: the quote currency
// everything settles in plus the operator's explicit include/exclude
// lists. Explicit configuration always wins over automatic filtering, so
// excludes are applied before the include/removal unions.
type Universe struct {
	Quote   string
	Include []string
	Exclude []string
}

func contains(list []string, sym string) bool {
	for _, s := range list {
		if strings.EqualFold(s, sym) {
			return true
		}
	}
	return false
}

// TradableCoins derives the set of base currencies eligible this cycle:
// instruments quoted in u.Quote, minus excludes and stablecoins,
// intersected with the market-cap list, then unioned with the forced
// includes (when an instrument exists for them) and with every coin on
// the removal ledger so held-but-ineligible coins stay sellable.
func TradableCoins(instruments []models.Instrument, stablecoins, topCoins []string, removal []models.CoinRemoval, u Universe) []string {
	quote := strings.ToUpper(u.Quote)
	tradable := make([]string, 0, len(topCoins))

	for _, inst := range instruments {
		if strings.ToUpper(inst.QuoteCurrency) != quote {
			continue
		}

		base := strings.ToUpper(inst.BaseCurrency)

		if contains(u.Exclude, base) {
			continue
		}
		if contains(stablecoins, base) {
			continue
		}
		if contains(topCoins, base) && !contains(tradable, base) {
			tradable = append(tradable, base)
		}
	}

	for _, coin := range u.Include {
		coin = strings.ToUpper(coin)
		if contains(tradable, coin) {
			continue
		}
		for _, inst := range instruments {
			if strings.ToUpper(inst.BaseCurrency) == coin && strings.ToUpper(inst.QuoteCurrency) == quote {
				tradable = append(tradable, coin)
				break
			}
		}
	}

	for _, entry := range removal {
		coin := strings.ToUpper(entry.Coin)
		if coin == quote {
			continue
		}
		if !contains(tradable, coin) {
			tradable = append(tradable, coin)
		}
	}

	return tradable
}

// BookBidWorth walks the bid side of the book and returns how much quote
// currency selling amount would realize against the standing bids.
func BookBidWorth(amount float64, book models.OrderBook) float64 {
	return depthWorth(amount, book.Bids)
}

// BookAskWorth is the ask-side mirror of BookBidWorth.
func BookAskWorth(amount float64, book models.OrderBook) float64 {
	return depthWorth(amount, book.Asks)
}

func depthWorth(amount float64, levels []models.BookLevel) float64 {
	worth := 0.0
	remaining := amount

	for _, lvl := range levels {
		if lvl.Quantity <= remaining {
			worth += lvl.Quantity * lvl.Price
		} else {
			worth += remaining * lvl.Price
		}

		remaining -= lvl.Quantity
		if remaining <= 0 {
			break
		}
	}

	return worth
}

// PortfolioWorth values every tradable coin the account holds against
// the bid side of its book. Coins without a balance or without a book
// are skipped entirely, not counted as zero.
func PortfolioWorth(balances models.BalanceMap, tradable []string, books models.BookMap, quote string) float64 {
	worth := 0.0

	for _, coin := range tradable {
		bal, ok := balances[coin]
		if !ok {
			continue
		}
		book, ok := books[Pair(coin, quote)]
		if !ok {
			continue
		}
		worth += BookBidWorth(bal.Available, book)
	}

	return worth
}

// Pair builds the exchange instrument name for a base/quote pairing.
func Pair(base, quote string) string {
	return strings.ToUpper(base) + "_" + strings.ToUpper(quote)
}

func reservedWeight(weights map[string]float64, tradable []string) (pct float64, coins int) {
	for sym, w := range weights {
		if contains(tradable, sym) {
			pct += w
			coins++
		}
	}
	return pct, coins
}

// CoinTarget is the quote-currency amount coin should end up holding out
// of total: its explicit weight when configured, otherwise an even share
// of the residual percentage left by the weighted coins.
func CoinTarget(weights map[string]float64, tradable []string, coin string, total float64) float64 {
	if w, ok := weights[strings.ToUpper(coin)]; ok {
		return total * (w / 100)
	}

	reserved, weighted := reservedWeight(weights, tradable)
	unweighted := len(tradable) - weighted
	if unweighted <= 0 {
		// All-weighted configurations are rejected at startup; an
		// unweighted coin can therefore always find a share.
		return 0
	}

	return total * ((100 - reserved) / 100) / float64(unweighted)
}

// DistributionDelta computes every tradable coin's target against total
// and its deviation from it. A coin missing from the balances holds
// zero; a coin missing from the books is skipped.
func DistributionDelta(total float64, tradable []string, balances models.BalanceMap, books models.BookMap, weights map[string]float64, quote string) []models.DistributionDelta {
	deltas := make([]models.DistributionDelta, 0, len(tradable))

	for _, coin := range tradable {
		book, ok := books[Pair(coin, quote)]
		if !ok {
			continue
		}

		target := CoinTarget(weights, tradable, coin, total)
		current := BookBidWorth(balances.Available(coin), book)
		deviation := current - target

		percentage := 0.0
		if target > 0 {
			percentage = deviation / target * 100
		}

		deltas = append(deltas, models.DistributionDelta{
			Name:       coin,
			Target:     target,
			Deviation:  deviation,
			Percentage: percentage,
		})
	}

	return deltas
}

// LowestPerformer returns the delta with the smallest percentage not in
// ignore, nil when everything is ignored. Ties keep the first seen.
func LowestPerformer(deltas []models.DistributionDelta, ignore map[string]bool) *models.DistributionDelta {
	var lowest *models.DistributionDelta

	for i := range deltas {
		coin := &deltas[i]
		if ignore[coin.Name] {
			continue
		}
		if lowest == nil || coin.Percentage < lowest.Percentage {
			lowest = coin
		}
	}

	return lowest
}

// HighestPerformer is the mirror of LowestPerformer.
func HighestPerformer(deltas []models.DistributionDelta, ignore map[string]bool) *models.DistributionDelta {
	var highest *models.DistributionDelta

	for i := range deltas {
		coin := &deltas[i]
		if ignore[coin.Name] {
			continue
		}
		if highest == nil || coin.Percentage > highest.Percentage {
			highest = coin
		}
	}

	return highest
}

// UnderperformerWorth sums |deviation| over coins at or below -threshold
// percent. The figure is zeroed when it does not clear the summed
// minimum buy notionals with 10% headroom, since correcting it would
// only produce rejected dust orders.
func UnderperformerWorth(instruments models.InstrumentMap, books models.BookMap, deltas []models.DistributionDelta, threshold float64, quote string) float64 {
	worth := 0.0
	minNotional := 0.0

	for _, coin := range deltas {
		if coin.Percentage > -threshold {
			continue
		}

		inst, ok := instruments[coin.Name]
		if !ok {
			continue
		}
		book, ok := books[Pair(coin.Name, quote)]
		if !ok {
			continue
		}

		worth += -coin.Deviation
		minNotional += FixNotional(inst, MinimumBuyNotional(inst, book))
	}

	if worth <= minNotional*1.1 {
		return 0
	}

	return worth
}
