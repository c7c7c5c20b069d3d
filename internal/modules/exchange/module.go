package exchange

import (
	"rebalance_bot/internal/modules/exchange/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			service.NewClient,
		),
	)
}
