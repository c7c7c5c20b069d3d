package models

import "strings"

// Instrument is one tradable pair as the exchange reports it. The two
// decimal counts bound what price/quantity values an order may carry.
type Instrument struct {
	InstrumentName   string
	BaseCurrency     string
	QuoteCurrency    string
	PriceDecimals    int
	QuantityDecimals int
}

// Balance is the available amount of one currency. Never cached beyond
// a single cycle, always re-read from the exchange.
type Balance struct {
	Currency  string
	Available float64
}

type BookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook holds the top of the book for one instrument, bids and asks
// sorted best-first.
type OrderBook struct {
	InstrumentName string
	Bids           []BookLevel
	Asks           []BookLevel
}

func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// BalanceMap keys balances by upper-cased currency so "not found ⇒ skip"
// is an explicit map miss instead of a linear scan.
type BalanceMap map[string]Balance

func NewBalanceMap(balances []Balance) BalanceMap {
	m := make(BalanceMap, len(balances))
	for _, b := range balances {
		m[strings.ToUpper(b.Currency)] = b
	}
	return m
}

// Available returns the available amount for a currency, zero when the
// currency is not held at all.
func (m BalanceMap) Available(currency string) float64 {
	return m[strings.ToUpper(currency)].Available
}

// BookMap keys order books by instrument name ("BTC_USDT").
type BookMap map[string]OrderBook

// InstrumentMap keys instruments quoted in the configured quote currency
// by their upper-cased base currency.
type InstrumentMap map[string]Instrument

func NewInstrumentMap(instruments []Instrument, quote string) InstrumentMap {
	quote = strings.ToUpper(quote)
	m := make(InstrumentMap)
	for _, inst := range instruments {
		if strings.ToUpper(inst.QuoteCurrency) != quote {
			continue
		}
		m[strings.ToUpper(inst.BaseCurrency)] = inst
	}
	return m
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// TradeKind tags which top-level operation produced an order; it ends up
// in the order's client id and in the journal.
type TradeKind string

const (
	TradeInvest       TradeKind = "invest"
	TradeRebalance    TradeKind = "rebalance"
	TradeTrailingStop TradeKind = "trailingstop"
)
