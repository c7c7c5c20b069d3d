package service

import (
	"context"

	"rebalance_bot/internal/calc"
	"rebalance_bot/internal/models"
	"rebalance_bot/internal/notify"
	"rebalance_bot/pkg/logger"
)

// Invest spends one configured investment amount across the investable
// set according to the target weights. Runs only when the full amount
// is available; a partial top-up never happens.
func (t *Trader) Invest(ctx context.Context) error {
	ath := t.store.LoadPortfolioATH()
	if ath.Triggered {
		logger.Info("trailing stop is triggered, skipping investment")
		return nil
	}

	snap, err := t.fetch(ctx)
	if err != nil {
		return err
	}

	funds := snap.balances.Available(t.cfg.Quote)
	if funds < t.cfg.Investment {
		if t.cfg.IdleMessage != "" {
			logger.Info("%s", t.cfg.IdleMessage)
		}
		return nil
	}
	if len(snap.tradable) == 0 {
		logger.Info("no tradable coins, skipping investment")
		return nil
	}

	invested := 0.0
	bought := 0

	for _, coin := range snap.tradable {
		inst, ok := snap.instruments[coin]
		if !ok {
			continue
		}
		book, ok := snap.books[inst.InstrumentName]
		if !ok {
			continue
		}

		target := calc.CoinTarget(t.cfg.Weight, snap.tradable, coin, t.cfg.Investment)
		notional := calc.FixNotional(inst, target)

		// a weight share below the exchange minimum is raised to the
		// minimum; only the remaining funds can veto the buy
		if minNotional := calc.MinimumBuyNotional(inst, book); notional < minNotional {
			notional = calc.FixNotional(inst, minNotional)
		}
		if notional > funds-invested {
			continue
		}
		if !t.buy(ctx, inst, notional, models.TradeInvest) {
			continue
		}
		invested += notional
		bought++
	}

	if invested == 0 {
		return nil
	}

	// The spent amount joins the trailing-stop cost basis. On the very
	// first investment the basis is seeded from the whole portfolio
	// worth so pre-existing holdings count too.
	if err := t.refreshBalances(ctx, snap); err != nil {
		return err
	}
	worth := calc.PortfolioWorth(snap.balances, snap.tradable, snap.books, t.cfg.Quote)

	if ath.Investment == 0 {
		ath.Investment = worth
	} else {
		ath.Investment += invested
	}
	if err := t.store.SavePortfolioATH(ath); err != nil {
		return err
	}

	t.notifier.Notify(notify.Event{
		Kind: notify.KindInvest,
		Invest: &notify.InvestEvent{
			Investment:     invested,
			RemainingFunds: snap.balances.Available(t.cfg.Quote),
			CoinAmount:     bought,
			PortfolioWorth: worth,
		},
	})
	return nil
}
