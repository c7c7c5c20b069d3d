package notify

import (
	"rebalance_bot/internal/modules/config"
	"rebalance_bot/pkg/logger"

	"go.uber.org/fx"
)

// NewNotifier picks the Telegram notifier when a token is configured and
// falls back to plain log output otherwise. A broken Telegram setup is
// not fatal: notifications are best-effort by contract.
func NewNotifier(cfg *config.Config) Notifier {
	if cfg.Telegram.Token == "" {
		return NewStdout(cfg.Quote)
	}

	t, err := NewTelegram(cfg)
	if err != nil {
		logger.Error("telegram notifier unavailable, falling back to log: %v", err)
		return NewStdout(cfg.Quote)
	}
	return t
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			NewNotifier,
		),
	)
}
