package journal

import (
	"context"

	"rebalance_bot/pkg/db"
	"rebalance_bot/pkg/logger"
)

const insertOrderSQL = `
	INSERT INTO orders (instrument, side, kind, amount, dry, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Pg persists order entries to Postgres, one row per submitted order.
type Pg struct {
	txManager db.TxManager
}

func NewPg(txManager db.TxManager) *Pg {
	return &Pg{
		txManager: txManager,
	}
}

func (j *Pg) Record(ctx context.Context, entry Entry) {
	err := j.txManager.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertOrderSQL,
			entry.Instrument,
			string(entry.Side),
			string(entry.Kind),
			entry.Amount,
			entry.Dry,
			entry.CreatedAt,
		)
		return err
	})
	if err != nil {
		logger.Error("journal insert failed: %v", err)
	}
}
