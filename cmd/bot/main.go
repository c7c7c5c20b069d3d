package main

import (
	"context"
	"log"

	"rebalance_bot/internal/journal"
	"rebalance_bot/internal/modules/coingecko"
	"rebalance_bot/internal/modules/config"
	"rebalance_bot/internal/modules/exchange"
	"rebalance_bot/internal/modules/marketstream"
	"rebalance_bot/internal/modules/trade"
	"rebalance_bot/internal/notify"
	"rebalance_bot/internal/runner"
	"rebalance_bot/pkg/logger"
	"rebalance_bot/pkg/tracing"

	"go.uber.org/fx"
)

func initObservability(lc fx.Lifecycle, cfg *config.Config) error {
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Jaeger.Host,
		Port: cfg.Jaeger.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})

	// leave a readable record of what this run actually used
	if err := cfg.WriteSnapshot(); err != nil {
		logger.Error("config snapshot failed: %v", err)
	}
	return nil
}

func main() {
	// before any provider gets a chance to log
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		config.Module(),
		exchange.Module(),
		coingecko.Module(),
		notify.Module(),
		journal.Module(),
		trade.Module(),
		marketstream.Module(),
		runner.Module(),
		fx.Invoke(initObservability),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
