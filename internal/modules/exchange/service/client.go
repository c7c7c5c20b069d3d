package service

import (
	"net/http"
	"time"

	"rebalance_bot/internal/modules/config"
)

const defaultBaseURL = "https://api.crypto.com/v2"

// Client talks to the crypto.com exchange v2 REST API. All methods are
// synchronous; order submission additionally paces itself so consecutive
// orders respect the exchange rate limits.
type Client struct {
	cfg  *config.Config
	http *http.Client

	baseURL string
	now     func() time.Time
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		now:     time.Now,
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}
