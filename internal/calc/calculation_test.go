package calc

import (
	"math"
	"testing"
	"time"

	"rebalance_bot/internal/models"
)

func inst(base, quote string, priceDec, qtyDec int) models.Instrument {
	return models.Instrument{
		InstrumentName:   base + "_" + quote,
		BaseCurrency:     base,
		QuoteCurrency:    quote,
		PriceDecimals:    priceDec,
		QuantityDecimals: qtyDec,
	}
}

// deepBook builds a book with effectively infinite depth at one price so
// worth calculations behave like amount*price.
func deepBook(name string, price float64) models.OrderBook {
	return models.OrderBook{
		InstrumentName: name,
		Bids:           []models.BookLevel{{Price: price, Quantity: 1e12}},
		Asks:           []models.BookLevel{{Price: price, Quantity: 1e12}},
	}
}

func TestTradableCoinsFilterOrder(t *testing.T) {
	instruments := []models.Instrument{
		inst("BTC", "USDT", 2, 6),
		inst("ETH", "USDT", 2, 5),
		inst("DOGE", "USDT", 6, 0),
		inst("USDC", "USDT", 4, 2),
		inst("CRO", "USDT", 4, 1),
		inst("SOL", "BTC", 8, 2), // wrong quote, never tradable
	}
	top := []string{"BTC", "ETH", "DOGE", "USDC", "SOL"}
	stable := []string{"USDC"}
	u := Universe{Quote: "USDT", Exclude: []string{"DOGE"}, Include: []string{"CRO", "SOL"}}

	got := TradableCoins(instruments, stable, top, nil, u)

	want := map[string]bool{"BTC": true, "ETH": true, "CRO": true}
	if len(got) != len(want) {
		t.Fatalf("tradable = %v, want keys %v", got, want)
	}
	for _, c := range got {
		if !want[c] {
			t.Errorf("unexpected tradable coin %s", c)
		}
	}
}

func TestTradableCoinsRemovalUnion(t *testing.T) {
	instruments := []models.Instrument{inst("BTC", "USDT", 2, 6)}
	removal := []models.CoinRemoval{
		{Coin: "XRP", Execute: time.Now()},
		{Coin: "USDT", Execute: time.Now()}, // quote currency must never join
	}

	got := TradableCoins(instruments, nil, []string{"BTC"}, removal, Universe{Quote: "USDT"})

	if len(got) != 2 || !contains(got, "BTC") || !contains(got, "XRP") {
		t.Fatalf("tradable = %v, want [BTC XRP]", got)
	}
}

func TestCoinTargetSumsToTotal(t *testing.T) {
	cases := []struct {
		name     string
		weights  map[string]float64
		tradable []string
	}{
		{"no weights", nil, []string{"BTC", "ETH", "ADA", "DOT"}},
		{"partial weights", map[string]float64{"BTC": 50, "ETH": 20}, []string{"BTC", "ETH", "ADA", "DOT"}},
		{"weight for absent coin ignored", map[string]float64{"XRP": 40}, []string{"BTC", "ETH"}},
		{"sum exactly 100 left to one", map[string]float64{"BTC": 60, "ETH": 40}, []string{"BTC", "ETH", "ADA"}},
	}

	const total = 12345.67
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sum := 0.0
			for _, coin := range tc.tradable {
				sum += CoinTarget(tc.weights, tc.tradable, coin, total)
			}
			if math.Abs(sum-total) > 1e-6 {
				t.Fatalf("targets sum to %.8f, want %.2f", sum, total)
			}
		})
	}
}

func TestDistributionDeltaScenario(t *testing.T) {
	// Spec scenario: 1 BTC @ 50000 and 10 ETH @ 3000 with no weights.
	balances := models.NewBalanceMap([]models.Balance{
		{Currency: "BTC", Available: 1.0},
		{Currency: "ETH", Available: 10.0},
	})
	books := models.BookMap{
		"BTC_USDT": deepBook("BTC_USDT", 50000),
		"ETH_USDT": deepBook("ETH_USDT", 3000),
	}
	tradable := []string{"BTC", "ETH"}

	worth := PortfolioWorth(balances, tradable, books, "USDT")
	if worth != 80000 {
		t.Fatalf("portfolio worth = %v, want 80000", worth)
	}

	deltas := DistributionDelta(worth, tradable, balances, books, nil, "USDT")
	if len(deltas) != 2 {
		t.Fatalf("got %d deltas, want 2", len(deltas))
	}

	byName := map[string]models.DistributionDelta{}
	for _, d := range deltas {
		byName[d.Name] = d
	}

	btc := byName["BTC"]
	if btc.Target != 40000 || btc.Deviation != 10000 || math.Abs(btc.Percentage-25) > 1e-9 {
		t.Errorf("BTC delta = %+v, want target 40000 deviation +10000 (+25%%)", btc)
	}
	eth := byName["ETH"]
	if eth.Target != 40000 || eth.Deviation != -10000 || math.Abs(eth.Percentage+25) > 1e-9 {
		t.Errorf("ETH delta = %+v, want target 40000 deviation -10000 (-25%%)", eth)
	}
}

// A coin with no book entry is left out of the worth sum entirely. The
// original implementation is ambiguous between "skip" and "worth zero";
// this pins the skip behavior.
func TestPortfolioWorthSkipsUnpricedCoin(t *testing.T) {
	balances := models.NewBalanceMap([]models.Balance{
		{Currency: "BTC", Available: 2.0},
		{Currency: "ADA", Available: 1000.0}, // no book
	})
	books := models.BookMap{"BTC_USDT": deepBook("BTC_USDT", 10000)}

	worth := PortfolioWorth(balances, []string{"BTC", "ADA"}, books, "USDT")
	if worth != 20000 {
		t.Fatalf("worth = %v, want 20000 (ADA skipped, not zero-valued)", worth)
	}

	deltas := DistributionDelta(worth, []string{"BTC", "ADA"}, balances, books, nil, "USDT")
	if len(deltas) != 1 || deltas[0].Name != "BTC" {
		t.Fatalf("deltas = %v, want only BTC", deltas)
	}
}

func TestBookWorthWalksDepth(t *testing.T) {
	book := models.OrderBook{
		Bids: []models.BookLevel{
			{Price: 100, Quantity: 1},
			{Price: 90, Quantity: 1},
			{Price: 50, Quantity: 10},
		},
	}

	// 1 @ 100, 1 @ 90, remaining 0.5 @ 50.
	if got := BookBidWorth(2.5, book); math.Abs(got-215) > 1e-9 {
		t.Fatalf("bid worth = %v, want 215", got)
	}
	// Exhausting the whole book values only what the book holds.
	if got := BookBidWorth(100, book); math.Abs(got-690) > 1e-9 {
		t.Fatalf("bid worth = %v, want 690", got)
	}
}

func TestPerformersHonorIgnoreList(t *testing.T) {
	deltas := []models.DistributionDelta{
		{Name: "BTC", Percentage: 12},
		{Name: "ETH", Percentage: -7},
		{Name: "ADA", Percentage: 3},
	}

	if p := LowestPerformer(deltas, nil); p == nil || p.Name != "ETH" {
		t.Fatalf("lowest = %v, want ETH", p)
	}
	if p := HighestPerformer(deltas, nil); p == nil || p.Name != "BTC" {
		t.Fatalf("highest = %v, want BTC", p)
	}

	ignore := map[string]bool{"ETH": true}
	if p := LowestPerformer(deltas, ignore); p == nil || p.Name != "ADA" {
		t.Fatalf("lowest with ETH ignored = %v, want ADA", p)
	}

	all := map[string]bool{"BTC": true, "ETH": true, "ADA": true}
	if p := LowestPerformer(deltas, all); p != nil {
		t.Fatalf("lowest with all ignored = %v, want nil", p)
	}
	if p := HighestPerformer(deltas, all); p != nil {
		t.Fatalf("highest with all ignored = %v, want nil", p)
	}
}

func TestPerformerTiesKeepFirst(t *testing.T) {
	deltas := []models.DistributionDelta{
		{Name: "AAA", Percentage: -5},
		{Name: "BBB", Percentage: -5},
	}
	if p := LowestPerformer(deltas, nil); p.Name != "AAA" {
		t.Fatalf("tie broke to %s, want first-seen AAA", p.Name)
	}
}

func TestUnderperformerWorth(t *testing.T) {
	instruments := models.InstrumentMap{
		"ETH": inst("ETH", "USDT", 2, 4),
		"ADA": inst("ADA", "USDT", 4, 1),
	}
	books := models.BookMap{
		"ETH_USDT": deepBook("ETH_USDT", 3000),
		"ADA_USDT": deepBook("ADA_USDT", 0.5),
	}
	deltas := []models.DistributionDelta{
		{Name: "BTC", Deviation: 500, Percentage: 10},
		{Name: "ETH", Deviation: -300, Percentage: -8},
		{Name: "ADA", Deviation: -200, Percentage: -6},
	}

	got := UnderperformerWorth(instruments, books, deltas, 5, "USDT")
	if math.Abs(got-500) > 1e-6 {
		t.Fatalf("underperformer worth = %v, want 500", got)
	}

	// Below the minimum-notional floor the figure collapses to zero.
	tiny := []models.DistributionDelta{{Name: "ETH", Deviation: -0.1, Percentage: -8}}
	if got := UnderperformerWorth(instruments, books, tiny, 5, "USDT"); got != 0 {
		t.Fatalf("dust underperformer worth = %v, want 0", got)
	}
}
