package journal

import (
	"context"

	"rebalance_bot/internal/modules/config"
	"rebalance_bot/pkg/db"
	"rebalance_bot/pkg/logger"

	"go.uber.org/fx"
)

// NewJournal wires the Postgres journal when a DSN is configured and
// falls back to the no-op journal otherwise.
func NewJournal(lc fx.Lifecycle, cfg *config.Config) (Journal, error) {
	if cfg.DB == "" {
		logger.Info("order journal disabled, no database configured")
		return Noop{}, nil
	}

	pool, err := db.NewPool(context.Background(), db.PoolConfig{DSN: cfg.DB})
	if err != nil {
		return nil, err
	}
	txManager := db.NewPgTxManager(pool)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			txManager.Close()
			return nil
		},
	})

	return NewPg(txManager), nil
}

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(
			NewJournal,
		),
	)
}
