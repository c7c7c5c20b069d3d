package service

import (
	"context"
	"sync"
	"time"

	"rebalance_bot/internal/modules/config"
	"rebalance_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const marketStreamURL = "wss://stream.crypto.com/v2/market"

// Client keeps a live last-price cache for a set of instruments over the
// public market websocket and warns when a price draws down hard off the
// high it has seen. Purely observational: the trading cycles keep
// working off REST snapshots whether or not the stream is up.
type Client struct {
	cfg    *config.Config
	dialer *websocket.Dialer
	url    string

	mu     sync.RWMutex
	prices map[string]quote
}

// quote is the per-instrument stream state: the last trade price and the
// highest price seen since the stream connected.
type quote struct {
	last float64
	high float64
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:    cfg,
		dialer: &websocket.Dialer{},
		url:    marketStreamURL,
		prices: make(map[string]quote),
	}
}

// SetURL points the client at a test server.
func (c *Client) SetURL(u string) {
	c.url = u
}

// Price returns the last streamed price for an instrument.
func (c *Client) Price(instrument string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.prices[instrument]
	return q.last, ok
}

type streamFrame struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Result struct {
		Channel string `json:"channel"`
		Data    []struct {
			Instrument string  `json:"i"`
			Last       float64 `json:"a"`
		} `json:"data"`
	} `json:"result"`
}

// Run streams tickers for the given instruments until the context is
// cancelled, reconnecting after every broken connection.
func (c *Client) Run(ctx context.Context, instruments []string) {
	if len(instruments) == 0 {
		return
	}

	channels := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		channels = append(channels, "ticker."+inst)
	}

	for {
		if err := c.stream(ctx, channels); err != nil {
			logger.Error("market stream: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) stream(ctx context.Context, channels []string) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sub := map[string]interface{}{
		"id":     1,
		"method": "subscribe",
		"params": map[string]interface{}{"channels": channels},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	logger.Info("market stream connected, %d channels", len(channels))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var frame streamFrame
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			continue
		}

		// the server drops connections that miss a heartbeat reply
		if frame.Method == "public/heartbeat" {
			_ = conn.WriteJSON(map[string]interface{}{
				"id":     frame.ID,
				"method": "public/respond-heartbeat",
			})
			continue
		}

		for _, tick := range frame.Result.Data {
			if tick.Instrument == "" || tick.Last <= 0 {
				continue
			}
			c.update(tick.Instrument, tick.Last)
		}
	}
}

func (c *Client) update(instrument string, last float64) {
	c.mu.Lock()
	q := c.prices[instrument]
	prev := q.last
	q.last = last
	if last > q.high {
		q.high = last
	}
	c.prices[instrument] = q
	high := q.high
	c.mu.Unlock()

	maxDrop := c.cfg.TrailingStop.MaxDrop
	if maxDrop <= 0 || prev <= 0 || high <= 0 {
		return
	}
	// warn once per drawdown, when the price first crosses the floor
	floor := high * (1 - maxDrop/100)
	if last <= floor && prev > floor {
		logger.Warn("%s is down %.1f%% from its streamed high %.8f", instrument, (1-last/high)*100, high)
	}
}
