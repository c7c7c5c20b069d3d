package runner

import (
	"context"

	"rebalance_bot/internal/modules/config"
	"rebalance_bot/internal/modules/trade/service"

	"go.uber.org/fx"
)

func newRunner(cfg *config.Config, trader *service.Trader) *Runner {
	return New(cfg, trader)
}

func register(lc fx.Lifecycle, r *Runner) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return r.Start(runCtx)
		},
		// stop the schedules and drain the worker first: an in-flight
		// cycle runs to completion, only then is its context released
		OnStop: func(context.Context) error {
			r.Stop()
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			newRunner,
		),
		fx.Invoke(register),
	)
}
