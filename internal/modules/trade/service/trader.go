package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"rebalance_bot/internal/calc"
	"rebalance_bot/internal/journal"
	"rebalance_bot/internal/models"
	"rebalance_bot/internal/modules/config"
	"rebalance_bot/internal/notify"
	"rebalance_bot/internal/state"
	"rebalance_bot/pkg/logger"
)

// Exchange is the slice of the exchange client the trader needs. Buy
// takes a notional in quote currency, Sell a quantity in base currency.
type Exchange interface {
	Instruments(ctx context.Context) ([]models.Instrument, error)
	Balances(ctx context.Context) ([]models.Balance, error)
	Balance(ctx context.Context, currency string) (models.Balance, error)
	Books(ctx context.Context, coins []string) (models.BookMap, error)
	Buy(ctx context.Context, inst models.Instrument, notional float64, kind models.TradeKind) error
	Sell(ctx context.Context, inst models.Instrument, quantity float64, kind models.TradeKind) error
}

// MarketCap supplies the ranked coin universe and the stablecoin list.
type MarketCap interface {
	TopCoins(ctx context.Context) ([]string, error)
	Stablecoins(ctx context.Context) ([]string, error)
}

// Trader runs the three scheduled cycles: rebalance, invest and the
// trailing stop check. One cycle runs at a time; the runner serializes
// them.
type Trader struct {
	cfg       *config.Config
	exchange  Exchange
	marketcap MarketCap
	store     *state.Store
	notifier  notify.Notifier
	journal   journal.Journal
	now       func() time.Time
}

func NewTrader(
	cfg *config.Config,
	exchange Exchange,
	marketcap MarketCap,
	store *state.Store,
	notifier notify.Notifier,
	jr journal.Journal,
) *Trader {
	return &Trader{
		cfg:       cfg,
		exchange:  exchange,
		marketcap: marketcap,
		store:     store,
		notifier:  notifier,
		journal:   jr,
		now:       time.Now,
	}
}

func (t *Trader) universe() calc.Universe {
	return calc.Universe{
		Quote:   t.cfg.Quote,
		Include: t.cfg.Include,
		Exclude: t.cfg.Exclude,
	}
}

// snapshot is all market data one cycle works on. Fetched once at the
// start of the cycle; balances and books may be refreshed mid-cycle
// after sells.
type snapshot struct {
	raw         []models.Instrument
	stablecoins []string
	topCoins    []string

	instruments models.InstrumentMap
	balances    models.BalanceMap
	books       models.BookMap
	removal     []models.CoinRemoval

	// tradable includes every coin on the removal ledger so it stays
	// sellable; investable is the same set without the ledger union and
	// is the only set new money flows into.
	tradable   []string
	investable []string
}

// fetch pulls the full market snapshot. Any fetch error aborts the
// whole cycle; a later schedule tick retries from scratch.
func (t *Trader) fetch(ctx context.Context) (*snapshot, error) {
	stablecoins, err := t.marketcap.Stablecoins(ctx)
	if err != nil {
		return nil, err
	}
	topCoins, err := t.marketcap.TopCoins(ctx)
	if err != nil {
		return nil, err
	}
	instruments, err := t.exchange.Instruments(ctx)
	if err != nil {
		return nil, err
	}
	balances, err := t.exchange.Balances(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		raw:         instruments,
		stablecoins: stablecoins,
		topCoins:    topCoins,
		instruments: models.NewInstrumentMap(instruments, t.cfg.Quote),
		balances:    models.NewBalanceMap(balances),
		removal:     t.store.LoadRemovalList(),
	}
	snap.tradable = calc.TradableCoins(instruments, stablecoins, topCoins, snap.removal, t.universe())
	snap.investable = calc.TradableCoins(instruments, stablecoins, topCoins, nil, t.universe())

	books, err := t.exchange.Books(ctx, t.bookCoins(snap))
	if err != nil {
		return nil, err
	}
	snap.books = books

	return snap, nil
}

// refresh re-reads balances, the removal ledger and books after a phase
// moved positions, and recomputes the coin sets from the fresh ledger.
func (t *Trader) refresh(ctx context.Context, snap *snapshot) error {
	if err := t.refreshBalances(ctx, snap); err != nil {
		return err
	}
	snap.removal = t.store.LoadRemovalList()
	snap.tradable = calc.TradableCoins(snap.raw, snap.stablecoins, snap.topCoins, snap.removal, t.universe())

	books, err := t.exchange.Books(ctx, t.bookCoins(snap))
	if err != nil {
		return err
	}
	snap.books = books
	return nil
}

// bookCoins is the union of the tradable set and every held coin that
// has an instrument, so held-but-ineligible positions can still be
// valued and sold.
func (t *Trader) bookCoins(snap *snapshot) []string {
	seen := make(map[string]bool, len(snap.tradable))
	coins := make([]string, 0, len(snap.tradable))
	for _, coin := range snap.tradable {
		seen[coin] = true
		coins = append(coins, coin)
	}
	for currency := range snap.balances {
		coin := strings.ToUpper(currency)
		if seen[coin] {
			continue
		}
		if _, ok := snap.instruments[coin]; !ok {
			continue
		}
		seen[coin] = true
		coins = append(coins, coin)
	}
	return coins
}

// refreshBalances re-reads balances after a batch of sells settled.
func (t *Trader) refreshBalances(ctx context.Context, snap *snapshot) error {
	balances, err := t.exchange.Balances(ctx)
	if err != nil {
		return err
	}
	snap.balances = models.NewBalanceMap(balances)
	return nil
}

// buy submits a buy order and journals it. A rejected order is logged
// and reported back so the caller keeps its budget.
func (t *Trader) buy(ctx context.Context, inst models.Instrument, notional float64, kind models.TradeKind) bool {
	if err := t.exchange.Buy(ctx, inst, notional, kind); err != nil {
		logger.Error("buy %s for %f failed: %v", inst.InstrumentName, notional, err)
		return false
	}
	t.journal.Record(ctx, journal.Entry{
		Instrument: inst.InstrumentName,
		Side:       models.SideBuy,
		Kind:       kind,
		Amount:     notional,
		Dry:        t.cfg.Dry,
		CreatedAt:  t.now(),
	})
	return true
}

func (t *Trader) sell(ctx context.Context, inst models.Instrument, quantity float64, kind models.TradeKind) bool {
	if err := t.exchange.Sell(ctx, inst, quantity, kind); err != nil {
		logger.Error("sell %f %s failed: %v", quantity, inst.InstrumentName, err)
		return false
	}
	t.journal.Record(ctx, journal.Entry{
		Instrument: inst.InstrumentName,
		Side:       models.SideSell,
		Kind:       kind,
		Amount:     quantity,
		Dry:        t.cfg.Dry,
		CreatedAt:  t.now(),
	})
	return true
}

// sellableQuantity returns the order-ready quantity for a held coin, or
// zero when the position is dust the exchange would reject.
func sellableQuantity(inst models.Instrument, available float64) float64 {
	quantity := calc.FixQuantity(inst, available)
	if quantity < calc.MinimumSellQuantity(inst) {
		return 0
	}
	return quantity
}

func removalGrace(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// removalSlice flattens the working ledger map back into its persisted
// form with a stable order.
func removalSlice(entries map[string]models.CoinRemoval) []models.CoinRemoval {
	coins := make([]string, 0, len(entries))
	for coin := range entries {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	list := make([]models.CoinRemoval, 0, len(entries))
	for _, coin := range coins {
		list = append(list, entries[coin])
	}
	return list
}
