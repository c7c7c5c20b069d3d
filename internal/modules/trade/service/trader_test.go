package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"rebalance_bot/internal/journal"
	"rebalance_bot/internal/models"
	"rebalance_bot/internal/modules/config"
	"rebalance_bot/internal/notify"
	"rebalance_bot/internal/state"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type order struct {
	inst   string
	amount float64
	kind   models.TradeKind
}

// fakeGateway scripts both the exchange and the market cap source. It
// settles orders against its own balances so refetches mid-cycle see
// the moved funds.
type fakeGateway struct {
	instruments []models.Instrument
	balances    map[string]float64
	books       models.BookMap
	topCoins    []string
	stablecoins []string

	failSell map[string]bool
	failBuy  map[string]bool

	buys     []order
	sells    []order
	feeReads int
}

func (g *fakeGateway) Instruments(context.Context) ([]models.Instrument, error) {
	return g.instruments, nil
}

func (g *fakeGateway) Balances(context.Context) ([]models.Balance, error) {
	out := make([]models.Balance, 0, len(g.balances))
	for currency, available := range g.balances {
		out = append(out, models.Balance{Currency: currency, Available: available})
	}
	return out, nil
}

func (g *fakeGateway) Balance(_ context.Context, currency string) (models.Balance, error) {
	g.feeReads++
	return models.Balance{Currency: currency, Available: g.balances[currency]}, nil
}

func (g *fakeGateway) Books(_ context.Context, coins []string) (models.BookMap, error) {
	out := make(models.BookMap, len(coins))
	for _, coin := range coins {
		for name, book := range g.books {
			if name == coin+"_USDT" {
				out[name] = book
			}
		}
	}
	return out, nil
}

func (g *fakeGateway) Buy(_ context.Context, inst models.Instrument, notional float64, kind models.TradeKind) error {
	if g.failBuy[inst.InstrumentName] {
		return errors.New("order rejected")
	}
	g.buys = append(g.buys, order{inst: inst.InstrumentName, amount: notional, kind: kind})
	price := g.books[inst.InstrumentName].BestAsk()
	g.balances[inst.BaseCurrency] += notional / price
	g.balances[inst.QuoteCurrency] -= notional
	return nil
}

func (g *fakeGateway) Sell(_ context.Context, inst models.Instrument, quantity float64, kind models.TradeKind) error {
	if g.failSell[inst.InstrumentName] {
		return errors.New("order rejected")
	}
	g.sells = append(g.sells, order{inst: inst.InstrumentName, amount: quantity, kind: kind})
	price := g.books[inst.InstrumentName].BestBid()
	g.balances[inst.BaseCurrency] -= quantity
	g.balances[inst.QuoteCurrency] += quantity * price
	return nil
}

func (g *fakeGateway) TopCoins(context.Context) ([]string, error) {
	return g.topCoins, nil
}

func (g *fakeGateway) Stablecoins(context.Context) ([]string, error) {
	return g.stablecoins, nil
}

type memoNotifier struct {
	events []notify.Event
}

func (n *memoNotifier) Notify(event notify.Event) {
	n.events = append(n.events, event)
}

func (n *memoNotifier) kinds() []notify.MessageKind {
	kinds := make([]notify.MessageKind, 0, len(n.events))
	for _, ev := range n.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func testInstrument(base string, priceDecimals, quantityDecimals int) models.Instrument {
	return models.Instrument{
		InstrumentName:   base + "_USDT",
		BaseCurrency:     base,
		QuoteCurrency:    "USDT",
		PriceDecimals:    priceDecimals,
		QuantityDecimals: quantityDecimals,
	}
}

func testBook(name string, price float64) models.OrderBook {
	return models.OrderBook{
		InstrumentName: name,
		Bids:           []models.BookLevel{{Price: price, Quantity: 1e12}},
		Asks:           []models.BookLevel{{Price: price, Quantity: 1e12}},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Quote:        "USDT",
		Investment:   100,
		Top:          50,
		Threshold:    5,
		RemovalHours: 24,
		FeeCurrency:  "CRO",
		TrailingStop: config.TrailingStop{
			Enabled:     true,
			MinProfit:   30,
			MaxDrop:     20,
			ResumeHours: 72,
		},
	}
}

// defaultGateway trades AAA, BBB, CCC and the CRO fee coin against USDT.
// EEE only trades in whole units, so its minimum buy notional is a full
// coin's worth (8.8) instead of dust.
func defaultGateway() *fakeGateway {
	return &fakeGateway{
		instruments: []models.Instrument{
			testInstrument("AAA", 2, 6),
			testInstrument("BBB", 2, 5),
			testInstrument("CCC", 2, 2),
			testInstrument("CRO", 4, 2),
			testInstrument("EEE", 2, 0),
		},
		balances: map[string]float64{},
		books: models.BookMap{
			"AAA_USDT": testBook("AAA_USDT", 10),
			"BBB_USDT": testBook("BBB_USDT", 10),
			"CCC_USDT": testBook("CCC_USDT", 2),
			"CRO_USDT": testBook("CRO_USDT", 0.1),
			"EEE_USDT": testBook("EEE_USDT", 8),
		},
		topCoins: []string{"AAA", "BBB"},
		failSell: map[string]bool{},
		failBuy:  map[string]bool{},
	}
}

func newTestTrader(t *testing.T, cfg *config.Config, gw *fakeGateway) (*Trader, *state.Store, *memoNotifier) {
	t.Helper()
	store := state.NewStore(t.TempDir())
	notifier := &memoNotifier{}
	trader := NewTrader(cfg, gw, gw, store, notifier, journal.Noop{})
	trader.now = func() time.Time { return testNow }
	return trader, store, notifier
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
