package service

import (
	"context"
	"math"

	"rebalance_bot/internal/calc"
	"rebalance_bot/internal/models"
	"rebalance_bot/internal/notify"
	"rebalance_bot/pkg/logger"
)

// Rebalance runs the full rebalancing cycle: the market-cap phase first
// (liquidating coins whose removal grace period expired), then the
// overperformer correction, then the optional underperformer correction.
func (t *Trader) Rebalance(ctx context.Context) error {
	ath := t.store.LoadPortfolioATH()
	if ath.Triggered {
		logger.Info("trailing stop is triggered, skipping rebalance")
		return nil
	}

	snap, err := t.fetch(ctx)
	if err != nil {
		return err
	}

	moved, err := t.rebalanceMarketCap(ctx, snap)
	if err != nil {
		return err
	}
	if moved {
		if err := t.refresh(ctx, snap); err != nil {
			return err
		}
	}

	corrected, err := t.rebalanceOverperformers(ctx, snap)
	if err != nil {
		return err
	}

	raised := false
	if t.cfg.RebalanceUnderperformers {
		if err := t.refresh(ctx, snap); err != nil {
			return err
		}
		raised, err = t.rebalanceUnderperformers(ctx, snap)
		if err != nil {
			return err
		}
	}

	if !moved && !corrected && !raised && t.cfg.IdleMessage != "" {
		logger.Info("%s", t.cfg.IdleMessage)
	}
	return nil
}

// rebalanceMarketCap walks all held positions against the current
// eligible set. Coins that fell out of it get a ledger entry with a
// grace deadline; coins whose deadline passed, and explicitly excluded
// coins, are sold and the proceeds spread over the investable set.
// Returns whether any position moved.
func (t *Trader) rebalanceMarketCap(ctx context.Context, snap *snapshot) (bool, error) {
	investable := make(map[string]bool, len(snap.investable))
	for _, coin := range snap.investable {
		investable[coin] = true
	}
	excluded := make(map[string]bool, len(t.cfg.Exclude))
	for _, coin := range t.cfg.Exclude {
		excluded[coin] = true
	}
	entries := make(map[string]models.CoinRemoval, len(snap.removal))
	for _, entry := range snap.removal {
		entries[entry.Coin] = entry
	}

	now := t.now()
	ledgerChanged := false
	due := false

	for coin := range snap.balances {
		inst, ok := snap.instruments[coin]
		if !ok || coin == t.cfg.Quote {
			continue
		}
		if sellableQuantity(inst, snap.balances.Available(coin)) == 0 {
			continue
		}

		switch {
		case excluded[coin]:
			// no grace period for operator-excluded coins
			due = true
		case investable[coin]:
			if _, ok := entries[coin]; ok {
				delete(entries, coin)
				ledgerChanged = true
				logger.Info("%s is eligible again, removal cancelled", coin)
			}
		default:
			entry, ok := entries[coin]
			if !ok {
				entries[coin] = models.CoinRemoval{
					Coin:    coin,
					Execute: now.Add(removalGrace(t.cfg.RemovalHours)),
				}
				ledgerChanged = true
				logger.Info("%s fell out of the market cap range, selling at %s", coin, entries[coin].Execute)
			} else if !now.Before(entry.Execute) {
				due = true
			}
		}
	}

	if ledgerChanged {
		if err := t.store.SaveRemovalList(removalSlice(entries)); err != nil {
			return false, err
		}
	}
	if !due {
		return false, nil
	}

	// sell pass
	var trades []notify.RebalanceTrade
	proceeds := 0.0
	sold := false

	for coin := range snap.balances {
		inst, ok := snap.instruments[coin]
		if !ok || coin == t.cfg.Quote {
			continue
		}
		quantity := sellableQuantity(inst, snap.balances.Available(coin))
		if quantity == 0 {
			continue
		}

		entry, onLedger := entries[coin]
		expired := onLedger && !now.Before(entry.Execute)
		if !excluded[coin] && !expired {
			continue
		}

		if !t.sell(ctx, inst, quantity, models.TradeRebalance) {
			continue
		}
		worth := calc.BookBidWorth(quantity, snap.books[inst.InstrumentName])
		proceeds += worth
		sold = true
		delete(entries, coin)
		trades = append(trades, notify.RebalanceTrade{
			Currency:  coin,
			Amount:    worth,
			Direction: notify.DirectionSell,
		})
	}

	if err := t.store.SaveRemovalList(removalSlice(entries)); err != nil {
		return sold, err
	}
	if !sold {
		return false, nil
	}

	// buy pass: the proceeds go back into the investable set, split
	// evenly. Balances are re-read first so the budget never exceeds
	// what actually settled.
	if err := t.refreshBalances(ctx, snap); err != nil {
		return true, err
	}
	budget := math.Min(proceeds, snap.balances.Available(t.cfg.Quote))

	if len(snap.investable) > 0 {
		share := budget / float64(len(snap.investable))
		for _, coin := range snap.investable {
			inst, ok := snap.instruments[coin]
			if !ok {
				continue
			}
			book, ok := snap.books[inst.InstrumentName]
			if !ok {
				continue
			}
			minNotional := calc.MinimumBuyNotional(inst, book)
			if minNotional > budget {
				continue
			}

			// an even share below the exchange minimum is raised to the
			// minimum, never silently dropped
			notional := share
			if notional < minNotional {
				notional = minNotional
			}
			if notional > budget {
				notional = budget
			}
			notional = calc.FixNotional(inst, notional)

			if !t.buy(ctx, inst, notional, models.TradeRebalance) {
				continue
			}
			budget -= notional
			trades = append(trades, notify.RebalanceTrade{
				Currency:  coin,
				Amount:    notional,
				Direction: notify.DirectionBuy,
			})
		}
	}

	t.notifier.Notify(notify.Event{
		Kind: notify.KindRebalanceMarketCap,
		Rebalance: &notify.RebalanceEvent{
			PortfolioWorth: calc.PortfolioWorth(snap.balances, snap.tradable, snap.books, t.cfg.Quote),
			Coins:          trades,
		},
	})
	return true, nil
}

// rebalanceOverperformers sells the part of each coin that sits more
// than the threshold above its target and spreads the raised funds over
// the coins furthest below target, worst first.
func (t *Trader) rebalanceOverperformers(ctx context.Context, snap *snapshot) (bool, error) {
	worth := calc.PortfolioWorth(snap.balances, snap.tradable, snap.books, t.cfg.Quote)
	if worth == 0 {
		return false, nil
	}
	deltas := calc.DistributionDelta(worth, snap.tradable, snap.balances, snap.books, t.cfg.Weight, t.cfg.Quote)

	var trades []notify.RebalanceTrade
	raised := 0.0

	for _, delta := range deltas {
		if delta.Percentage < t.cfg.Threshold || delta.Deviation <= 0 {
			continue
		}
		inst, ok := snap.instruments[delta.Name]
		if !ok {
			continue
		}
		book, ok := snap.books[inst.InstrumentName]
		if !ok || book.BestBid() == 0 {
			continue
		}
		quantity := calc.FixQuantity(inst, delta.Deviation/book.BestBid())
		if quantity < calc.MinimumSellQuantity(inst) {
			continue
		}
		if !t.sell(ctx, inst, quantity, models.TradeRebalance) {
			continue
		}
		raised += delta.Deviation
		trades = append(trades, notify.RebalanceTrade{
			Currency:   delta.Name,
			Amount:     delta.Deviation,
			Percentage: delta.Percentage,
			Direction:  notify.DirectionSell,
		})
	}
	if raised == 0 {
		return false, nil
	}

	if err := t.refreshBalances(ctx, snap); err != nil {
		return true, err
	}
	budget := math.Min(raised, snap.balances.Available(t.cfg.Quote))

	trades = append(trades, t.distribute(ctx, snap, deltas, budget, models.TradeRebalance)...)

	t.notifier.Notify(notify.Event{
		Kind: notify.KindRebalanceOverperformers,
		Rebalance: &notify.RebalanceEvent{
			PortfolioWorth: worth,
			Coins:          trades,
		},
	})
	return true, nil
}

// distribute buys the coins furthest below target from a fixed budget,
// worst performer first. Each buy covers the coin's full deviation when
// the budget allows, floored at the instrument's minimum notional.
func (t *Trader) distribute(ctx context.Context, snap *snapshot, deltas []models.DistributionDelta, budget float64, kind models.TradeKind) []notify.RebalanceTrade {
	var trades []notify.RebalanceTrade
	ignore := make(map[string]bool)

	for budget > 0 {
		lowest := calc.LowestPerformer(deltas, ignore)
		if lowest == nil || lowest.Deviation >= 0 {
			break
		}
		ignore[lowest.Name] = true

		inst, ok := snap.instruments[lowest.Name]
		if !ok {
			continue
		}
		book, ok := snap.books[inst.InstrumentName]
		if !ok {
			continue
		}
		minNotional := calc.MinimumBuyNotional(inst, book)
		if minNotional > budget {
			break
		}

		notional := math.Min(-lowest.Deviation, budget)
		if notional < minNotional {
			notional = minNotional
		}
		notional = calc.FixNotional(inst, notional)

		if !t.buy(ctx, inst, notional, kind) {
			continue
		}
		budget -= notional
		trades = append(trades, notify.RebalanceTrade{
			Currency:   lowest.Name,
			Amount:     notional,
			Percentage: lowest.Percentage,
			Direction:  notify.DirectionBuy,
		})
	}
	return trades
}

// rebalanceUnderperformers raises exactly the worth the coins below
// target are missing by trimming the coins above target, best performer
// first, then feeds it to the laggards. Opt-in via configuration.
func (t *Trader) rebalanceUnderperformers(ctx context.Context, snap *snapshot) (bool, error) {
	worth := calc.PortfolioWorth(snap.balances, snap.tradable, snap.books, t.cfg.Quote)
	if worth == 0 {
		return false, nil
	}
	deltas := calc.DistributionDelta(worth, snap.tradable, snap.balances, snap.books, t.cfg.Weight, t.cfg.Quote)

	required := calc.UnderperformerWorth(snap.instruments, snap.books, deltas, t.cfg.Threshold, t.cfg.Quote)
	required = math.Min(required, worth)
	if required <= 0 {
		return false, nil
	}

	var trades []notify.RebalanceTrade
	needed := required
	ignore := make(map[string]bool)
	sold := false

	for needed > 0 {
		highest := calc.HighestPerformer(deltas, ignore)
		if highest == nil || highest.Deviation <= 0 {
			break
		}
		ignore[highest.Name] = true

		inst, ok := snap.instruments[highest.Name]
		if !ok {
			continue
		}
		book, ok := snap.books[inst.InstrumentName]
		if !ok || book.BestBid() == 0 {
			continue
		}

		sellWorth := math.Min(highest.Deviation, needed)
		quantity := calc.FixQuantity(inst, sellWorth/book.BestBid())
		if quantity < calc.MinimumSellQuantity(inst) {
			continue
		}
		if !t.sell(ctx, inst, quantity, models.TradeRebalance) {
			continue
		}
		needed -= sellWorth
		sold = true
		trades = append(trades, notify.RebalanceTrade{
			Currency:   highest.Name,
			Amount:     sellWorth,
			Percentage: highest.Percentage,
			Direction:  notify.DirectionSell,
		})
	}
	if !sold {
		return false, nil
	}

	if err := t.refreshBalances(ctx, snap); err != nil {
		return true, err
	}
	budget := math.Min(required-needed, snap.balances.Available(t.cfg.Quote))

	trades = append(trades, t.distribute(ctx, snap, deltas, budget, models.TradeRebalance)...)

	t.notifier.Notify(notify.Event{
		Kind: notify.KindRebalanceUnderperformers,
		Rebalance: &notify.RebalanceEvent{
			PortfolioWorth: worth,
			Coins:          trades,
		},
	})
	return true, nil
}
