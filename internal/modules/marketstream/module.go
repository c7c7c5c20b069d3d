package marketstream

import (
	"context"

	"rebalance_bot/internal/models"
	"rebalance_bot/internal/modules/config"
	exchange "rebalance_bot/internal/modules/exchange/service"
	"rebalance_bot/internal/modules/marketstream/service"
	"rebalance_bot/pkg/logger"

	"go.uber.org/fx"
)

// register starts the ticker stream over every instrument in the quote
// market. Opt-in; the bot works identically without it.
func register(lc fx.Lifecycle, cfg *config.Config, client *service.Client, ex *exchange.Client) {
	if !cfg.MarketStream {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			instruments, err := ex.Instruments(startCtx)
			if err != nil {
				// stream is best-effort, never fail startup over it
				logger.Error("market stream instrument fetch failed: %v", err)
				return nil
			}

			names := make([]string, 0, len(instruments))
			for _, inst := range models.NewInstrumentMap(instruments, cfg.Quote) {
				names = append(names, inst.InstrumentName)
			}
			go client.Run(ctx, names)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("marketstream",
		fx.Provide(
			service.NewClient,
		),
		fx.Invoke(register),
	)
}
