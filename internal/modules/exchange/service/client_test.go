package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rebalance_bot/internal/models"
	"rebalance_bot/internal/modules/config"

	"github.com/bytedance/sonic"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(&config.Config{
		APIKey:    "key",
		APISecret: "secret",
		Quote:     "USDT",
	})
	c.SetBaseURL(srv.URL)
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return c
}

func TestSignRequestCoversSortedParams(t *testing.T) {
	req := &privateRequest{
		ID:     42,
		Method: "private/create-order",
		Params: map[string]interface{}{
			"side":            "BUY",
			"instrument_name": "BTC_USDT",
			"notional":        12.5,
		},
		Nonce: 99,
	}
	signRequest(req, "key", "secret")

	// Params concatenated in sorted key order.
	payload := "private/create-order42key" +
		"instrument_nameBTC_USDT" + "notional12.5" + "sideBUY" + "99"
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte(payload))
	want := hex.EncodeToString(mac.Sum(nil))

	if req.Sig != want {
		t.Fatalf("sig = %s, want %s", req.Sig, want)
	}
	if req.APIKey != "key" {
		t.Fatalf("api_key not attached: %q", req.APIKey)
	}
}

func TestParamStringKeepsIntegersIntegral(t *testing.T) {
	if got := paramString(float64(25)); got != "25" {
		t.Fatalf("paramString(25.0) = %q, want \"25\"", got)
	}
	if got := paramString(25.5); got != "25.5" {
		t.Fatalf("paramString(25.5) = %q, want \"25.5\"", got)
	}
}

func TestInstrumentsMapsStablecoinAlias(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public/get-instruments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"code":0,"result":{"instruments":[
			{"instrument_name":"BTC_USDT","quote_currency":"USDT","base_currency":"BTC","price_decimals":2,"quantity_decimals":6},
			{"instrument_name":"CRO_USD-Stable","quote_currency":"USD_STABLE_COIN","base_currency":"CRO","price_decimals":4,"quantity_decimals":2}
		]}}`))
	}))

	got, err := c.Instruments(context.Background())
	if err != nil {
		t.Fatalf("instruments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instruments, want 2", len(got))
	}
	if got[0].BaseCurrency != "BTC" || got[0].PriceDecimals != 2 || got[0].QuantityDecimals != 6 {
		t.Errorf("BTC instrument mismapped: %+v", got[0])
	}
	if got[1].QuoteCurrency != "USD" {
		t.Errorf("USD_STABLE_COIN alias not folded: %+v", got[1])
	}
}

func TestBooksParsesDepthLevels(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("instrument_name"); got != "BTC_USDT" {
			t.Errorf("instrument_name = %s", got)
		}
		_, _ = w.Write([]byte(`{"code":0,"result":{"instrument_name":"BTC_USDT","data":[
			{"bids":[[50000,1.5,3],[49999,2,1]],"asks":[[50001,0.5,1]]}
		]}}`))
	}))

	books, err := c.Books(context.Background(), []string{"BTC"})
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	book, ok := books["BTC_USDT"]
	if !ok {
		t.Fatalf("BTC_USDT book missing: %v", books)
	}
	if book.BestBid() != 50000 || book.BestAsk() != 50001 {
		t.Errorf("best bid/ask = %v/%v", book.BestBid(), book.BestAsk())
	}
	if len(book.Bids) != 2 || book.Bids[1].Quantity != 2 {
		t.Errorf("bids mismapped: %+v", book.Bids)
	}
}

func TestBalancesFetch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req privateRequest
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Sig == "" || req.APIKey != "key" {
			t.Errorf("request not signed: %+v", req)
		}
		_, _ = w.Write([]byte(`{"code":0,"result":{"accounts":[
			{"currency":"BTC","available":0.5},
			{"currency":"USD_STABLE_COIN","available":100}
		]}}`))
	}))

	got, err := c.Balances(context.Background())
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(got) != 2 || got[0].Available != 0.5 || got[1].Currency != "USD" {
		t.Fatalf("balances mismapped: %+v", got)
	}
}

func TestDryRunSkipsNetwork(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("dry run must not hit the API")
	}))
	c.cfg.Dry = true

	inst := models.Instrument{InstrumentName: "BTC_USDT"}
	if err := c.Buy(context.Background(), inst, 10, models.TradeInvest); err != nil {
		t.Fatalf("dry buy: %v", err)
	}
	if err := c.Sell(context.Background(), inst, 0.1, models.TradeRebalance); err != nil {
		t.Fatalf("dry sell: %v", err)
	}
}

func TestOrderRejectionSurfacesAsError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":213,"message":"INVALID_ORDER_QUANTITY"}`))
	}))

	inst := models.Instrument{InstrumentName: "BTC_USDT"}
	err := c.Sell(context.Background(), inst, 0.0000001, models.TradeRebalance)
	if err == nil {
		t.Fatal("expected rejection error, got nil")
	}
}
