package journal

import (
	"context"
	"time"

	"rebalance_bot/internal/models"
)

// Entry is one submitted order as it went out to the exchange. Amount
// is the notional in quote currency for buys and the base quantity for
// sells.
type Entry struct {
	Instrument string
	Side       models.OrderSide
	Kind       models.TradeKind
	Amount     float64
	Dry        bool
	CreatedAt  time.Time
}

// Journal records orders for later inspection. Recording is
// best-effort: a failed write is logged by the implementation and never
// fails the trade that produced it.
type Journal interface {
	Record(ctx context.Context, entry Entry)
}

// Noop discards everything. Used when no database is configured.
type Noop struct{}

func (Noop) Record(context.Context, Entry) {}
