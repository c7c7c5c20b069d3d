package service

import (
	"context"
	"time"

	"rebalance_bot/internal/models"

	"github.com/pkg/errors"
)

// orderPacing is the fixed delay in front of every submission so bursts
// of rebalance orders stay inside the exchange rate limit.
const orderPacing = 100 * time.Millisecond

type orderResponse struct {
	Code int64  `json:"code"`
	Msg  string `json:"message"`
}

func (c *Client) submitOrder(ctx context.Context, params map[string]interface{}) error {
	select {
	case <-time.After(orderPacing):
	case <-ctx.Done():
		return ctx.Err()
	}

	// Dry mode simulates an always-successful order without touching
	// the network.
	if c.cfg.Dry {
		return nil
	}

	nonce := c.now().UnixMilli()
	req := &privateRequest{
		ID:     nonce,
		Method: "private/create-order",
		Params: params,
		Nonce:  nonce,
	}

	var payload orderResponse
	if err := c.postPrivate(ctx, req, &payload); err != nil {
		return err
	}
	if payload.Code != 0 {
		return errors.Errorf("order rejected: code %d %s", payload.Code, payload.Msg)
	}

	return nil
}

// Buy places a MARKET buy sized in quote-currency notional.
func (c *Client) Buy(ctx context.Context, inst models.Instrument, notional float64, kind models.TradeKind) error {
	return c.submitOrder(ctx, map[string]interface{}{
		"instrument_name": inst.InstrumentName,
		"side":            string(models.SideBuy),
		"type":            "MARKET",
		"notional":        notional,
		"client_oid":      "rebalance_bot_" + string(kind),
	})
}

// Sell places a MARKET sell sized in base-asset quantity.
func (c *Client) Sell(ctx context.Context, inst models.Instrument, quantity float64, kind models.TradeKind) error {
	return c.submitOrder(ctx, map[string]interface{}{
		"instrument_name": inst.InstrumentName,
		"side":            string(models.SideSell),
		"type":            "MARKET",
		"quantity":        quantity,
		"client_oid":      "rebalance_bot_" + string(kind),
	})
}
