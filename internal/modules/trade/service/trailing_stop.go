package service

import (
	"context"
	"strings"

	"rebalance_bot/internal/calc"
	"rebalance_bot/internal/models"
	"rebalance_bot/internal/notify"
	"rebalance_bot/pkg/logger"
)

// TrailingStop advances the portfolio-wide trailing stop state machine:
// track the all-time high, arm once the minimum profit is reached, and
// liquidate everything when the portfolio drops far enough off the high.
// After a trigger the bot stays idle until the resume time passes.
func (t *Trader) TrailingStop(ctx context.Context) error {
	if !t.cfg.TrailingStop.Enabled {
		return nil
	}

	ath := t.store.LoadPortfolioATH()

	if ath.Triggered {
		if t.now().Before(ath.Resume) {
			return nil
		}
		ath = models.PortfolioATH{}
		if err := t.store.SavePortfolioATH(ath); err != nil {
			return err
		}
		t.notifier.Notify(notify.Event{Kind: notify.KindContinue})
		logger.Info("trailing stop pause is over, trading resumed")
	}

	// Nothing to track before the first investment seeds the basis.
	if ath.Investment == 0 {
		return nil
	}

	snap, err := t.fetch(ctx)
	if err != nil {
		return err
	}
	worth := calc.PortfolioWorth(snap.balances, snap.tradable, snap.books, t.cfg.Quote)
	if worth == 0 {
		return nil
	}

	if worth > ath.AllTimeHigh {
		ath.AllTimeHigh = worth
	}

	profit := (ath.AllTimeHigh/ath.Investment - 1) * 100
	if !ath.Active && profit >= t.cfg.TrailingStop.MinProfit {
		ath.Active = true
		t.notifier.Notify(notify.Event{Kind: notify.KindArmed})
		logger.Info("trailing stop armed at %.2f%% profit", profit)
	}

	if ath.Active {
		drop := (ath.AllTimeHigh/worth - 1) * 100
		if drop >= t.cfg.TrailingStop.MaxDrop {
			ath.Triggered = true
			ath.Resume = t.now().Add(removalGrace(t.cfg.TrailingStop.ResumeHours))

			if err := t.store.SavePortfolioATH(ath); err != nil {
				return err
			}
			t.liquidate(ctx, snap)
			if err := t.store.SaveRemovalList(nil); err != nil {
				return err
			}

			t.notifier.Notify(notify.Event{Kind: notify.KindTrailingStop})
			logger.Info("trailing stop triggered at %.2f%% drop, trading resumes at %s", drop, ath.Resume)
			return nil
		}
	}

	return t.store.SavePortfolioATH(ath)
}

// liquidate sells every sellable position. The fee currency goes last,
// with a fresh balance read right before its order, because the sells
// before it keep eating into that balance through fees.
func (t *Trader) liquidate(ctx context.Context, snap *snapshot) {
	fee := strings.ToUpper(t.cfg.FeeCurrency)

	for coin := range snap.balances {
		if coin == t.cfg.Quote || coin == fee {
			continue
		}
		inst, ok := snap.instruments[coin]
		if !ok {
			continue
		}
		quantity := sellableQuantity(inst, snap.balances.Available(coin))
		if quantity == 0 {
			continue
		}
		t.sell(ctx, inst, quantity, models.TradeTrailingStop)
	}

	inst, ok := snap.instruments[fee]
	if !ok {
		return
	}
	balance, err := t.exchange.Balance(ctx, fee)
	if err != nil {
		logger.Error("fee currency balance read failed: %v", err)
		return
	}
	if quantity := sellableQuantity(inst, balance.Available); quantity > 0 {
		t.sell(ctx, inst, quantity, models.TradeTrailingStop)
	}
}
