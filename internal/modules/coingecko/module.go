package coingecko

import (
	"rebalance_bot/internal/modules/coingecko/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("coingecko",
		fx.Provide(
			service.NewClient,
		),
	)
}
