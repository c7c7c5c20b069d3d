package trade

import (
	"rebalance_bot/internal/journal"
	coingecko "rebalance_bot/internal/modules/coingecko/service"
	"rebalance_bot/internal/modules/config"
	exchange "rebalance_bot/internal/modules/exchange/service"
	"rebalance_bot/internal/modules/trade/service"
	"rebalance_bot/internal/notify"
	"rebalance_bot/internal/state"

	"go.uber.org/fx"
)

func newStore(cfg *config.Config) *state.Store {
	return state.NewStore(cfg.DataDir)
}

func newTrader(
	cfg *config.Config,
	ex *exchange.Client,
	mc *coingecko.Client,
	store *state.Store,
	notifier notify.Notifier,
	jr journal.Journal,
) *service.Trader {
	return service.NewTrader(cfg, ex, mc, store, notifier, jr)
}

func Module() fx.Option {
	return fx.Module("trade",
		fx.Provide(
			newStore,
			newTrader,
		),
	)
}
