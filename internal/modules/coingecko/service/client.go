package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rebalance_bot/internal/modules/config"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Client fetches the market-cap universe from CoinGecko. The exchange
// does not know market caps, so the tradable set is the intersection of
// what the exchange lists and what CoinGecko ranks.
type Client struct {
	cfg  *config.Config
	http *http.Client

	baseURL string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type marketCoin struct {
	Symbol        string `json:"symbol"`
	MarketCapRank int    `json:"market_cap_rank"`
}

func (c *Client) markets(ctx context.Context, category string) ([]string, error) {
	// A zero universe size means the operator trades a manual include
	// list only.
	if c.cfg.Top < 1 {
		return []string{}, nil
	}

	path := fmt.Sprintf("/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1&sparkline=false", c.cfg.Top)
	if category != "" {
		path += "&category=" + category
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}

	var coins []marketCoin
	if err := sonic.Unmarshal(raw, &coins); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	symbols := make([]string, 0, len(coins))
	for _, coin := range coins {
		// The category endpoint pages by category rank; entries ranked
		// below the configured universe are dropped here.
		if coin.MarketCapRank > c.cfg.Top || coin.MarketCapRank == 0 {
			continue
		}
		symbols = append(symbols, strings.ToUpper(coin.Symbol))
	}

	return symbols, nil
}

// TopCoins returns the top-N coins by market cap.
func (c *Client) TopCoins(ctx context.Context) ([]string, error) {
	return c.markets(ctx, "")
}

// Stablecoins returns the stablecoins ranked inside the top-N universe;
// they are pegged to the quote currency and pointless to rebalance into.
func (c *Client) Stablecoins(ctx context.Context) ([]string, error) {
	return c.markets(ctx, "stablecoins")
}
