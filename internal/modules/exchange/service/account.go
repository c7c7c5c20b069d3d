package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"rebalance_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type accountSummaryResponse struct {
	Code   int64 `json:"code"`
	Result struct {
		Accounts []struct {
			Currency  string  `json:"currency"`
			Available float64 `json:"available"`
		} `json:"accounts"`
	} `json:"result"`
}

func (c *Client) postPrivate(ctx context.Context, req *privateRequest, out interface{}) error {
	signRequest(req, c.cfg.APIKey, c.cfg.APISecret)

	body, err := sonic.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+req.Method, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
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

	if out == nil {
		return nil
	}
	return errors.Wrap(sonic.Unmarshal(raw, out), "decode")
}

// Balances returns the available amount for every currency the account
// holds. Always re-fetched; never cached across a cycle boundary.
func (c *Client) Balances(ctx context.Context) ([]models.Balance, error) {
	nonce := c.now().UnixMilli()
	req := &privateRequest{
		ID:     nonce,
		Method: "private/get-account-summary",
		Params: map[string]interface{}{},
		Nonce:  nonce,
	}

	var payload accountSummaryResponse
	if err := c.postPrivate(ctx, req, &payload); err != nil {
		return nil, err
	}
	if payload.Code != 0 {
		return nil, errors.Errorf("exchange error code %d", payload.Code)
	}

	balances := make([]models.Balance, 0, len(payload.Result.Accounts))
	for _, acc := range payload.Result.Accounts {
		currency := acc.Currency
		if strings.ToUpper(currency) == "USD_STABLE_COIN" {
			currency = "USD"
		}
		balances = append(balances, models.Balance{
			Currency:  currency,
			Available: acc.Available,
		})
	}

	return balances, nil
}

// Balance fetches a single currency's balance. The trailing stop uses it
// to re-check the fee currency right before selling it, since fee
// deductions can shrink the amount between read and sell.
func (c *Client) Balance(ctx context.Context, currency string) (models.Balance, error) {
	nonce := c.now().UnixMilli()
	req := &privateRequest{
		ID:     nonce,
		Method: "private/get-account-summary",
		Params: map[string]interface{}{"currency": strings.ToUpper(currency)},
		Nonce:  nonce,
	}

	var payload accountSummaryResponse
	if err := c.postPrivate(ctx, req, &payload); err != nil {
		return models.Balance{}, err
	}
	if payload.Code != 0 || len(payload.Result.Accounts) == 0 {
		return models.Balance{}, errors.Errorf("no account for %s", currency)
	}

	acc := payload.Result.Accounts[0]
	return models.Balance{Currency: acc.Currency, Available: acc.Available}, nil
}
