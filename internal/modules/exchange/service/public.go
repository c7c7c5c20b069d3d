package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"rebalance_bot/internal/calc"
	"rebalance_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type instrumentsResponse struct {
	Code   int64 `json:"code"`
	Result struct {
		Instruments []struct {
			InstrumentName   string `json:"instrument_name"`
			QuoteCurrency    string `json:"quote_currency"`
			BaseCurrency     string `json:"base_currency"`
			PriceDecimals    int    `json:"price_decimals"`
			QuantityDecimals int    `json:"quantity_decimals"`
		} `json:"instruments"`
	} `json:"result"`
}

type bookResponse struct {
	Code   int64 `json:"code"`
	Result struct {
		InstrumentName string `json:"instrument_name"`
		Data           []struct {
			Bids [][]float64 `json:"bids"`
			Asks [][]float64 `json:"asks"`
		} `json:"data"`
	} `json:"result"`
}

func (c *Client) getPublic(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}

	return errors.Wrap(sonic.Unmarshal(raw, out), "decode")
}

// Instruments returns every spot pair the exchange lists. The legacy
// USD_STABLE_COIN quote alias is folded into USD.
func (c *Client) Instruments(ctx context.Context) ([]models.Instrument, error) {
	var payload instrumentsResponse
	if err := c.getPublic(ctx, "/public/get-instruments", &payload); err != nil {
		return nil, err
	}
	if payload.Code != 0 {
		return nil, errors.Errorf("exchange error code %d", payload.Code)
	}

	instruments := make([]models.Instrument, 0, len(payload.Result.Instruments))
	for _, in := range payload.Result.Instruments {
		quote := in.QuoteCurrency
		if strings.ToUpper(quote) == "USD_STABLE_COIN" {
			quote = "USD"
		}
		instruments = append(instruments, models.Instrument{
			InstrumentName:   in.InstrumentName,
			BaseCurrency:     in.BaseCurrency,
			QuoteCurrency:    quote,
			PriceDecimals:    in.PriceDecimals,
			QuantityDecimals: in.QuantityDecimals,
		})
	}

	return instruments, nil
}

// Books fetches the order book (depth 150) for every tradable coin
// against the configured quote currency.
func (c *Client) Books(ctx context.Context, coins []string) (models.BookMap, error) {
	books := make(models.BookMap, len(coins))

	for _, coin := range coins {
		pair := calc.Pair(coin, c.cfg.Quote)

		var payload bookResponse
		path := fmt.Sprintf("/public/get-book?instrument_name=%s&depth=150", url.QueryEscape(pair))
		if err := c.getPublic(ctx, path, &payload); err != nil {
			return nil, errors.Wrapf(err, "book %s", pair)
		}
		if payload.Code != 0 || len(payload.Result.Data) == 0 {
			// A pair can momentarily disappear; the valuation code
			// treats a missing book as "skip this coin".
			continue
		}

		books[pair] = models.OrderBook{
			InstrumentName: pair,
			Bids:           levels(payload.Result.Data[0].Bids),
			Asks:           levels(payload.Result.Data[0].Asks),
		}
	}

	return books, nil
}

func levels(rows [][]float64) []models.BookLevel {
	out := make([]models.BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, models.BookLevel{Price: row[0], Quantity: row[1]})
	}
	return out
}
