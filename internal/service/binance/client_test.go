package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domrepo "TrendSentry/internal/domain/repository"
	pkghttp "TrendSentry/pkg/http"
)

func rawKline(openMs, closeMs int64, open, high, low, cl, vol, takerBuy string) kline {
	row := []interface{}{
		openMs, open, high, low, cl, vol,
		closeMs, "1000.0", int64(42), takerBuy, "500.0", "0",
	}
	b, _ := json.Marshal(row)
	var k kline
	_ = json.Unmarshal(b, &k)
	return k
}

func TestParseKline(t *testing.T) {
	k := rawKline(1700000000000, 1700000299999, "100.5", "101.0", "99.5", "100.8", "12.34", "7.0")
	c, err := parseKline(k)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Open != 100.5 || c.High != 101.0 || c.Low != 99.5 || c.Close != 100.8 {
		t.Fatalf("OHLC mismatch: %+v", c)
	}
	if c.Volume != 12.34 || c.TakerBuyV != 7.0 || c.TradeCount != 42 {
		t.Fatalf("volume fields mismatch: %+v", c)
	}
	if c.OpenTime.UnixMilli() != 1700000000000 || c.CloseTime.UnixMilli() != 1700000299999 {
		t.Fatalf("time fields mismatch: %+v", c)
	}
}

func TestParseKlineShortRow(t *testing.T) {
	if _, err := parseKline(kline{json.RawMessage("0")}); err == nil {
		t.Fatalf("expected error for a short row")
	}
}

func TestGetCandlesDropsUnclosedBar(t *testing.T) {
	now := time.Now()
	closed := rawKline(now.Add(-10*time.Minute).UnixMilli(), now.Add(-5*time.Minute).UnixMilli(),
		"100", "101", "99", "100.5", "10", "6")
	inProgress := rawKline(now.Add(-5*time.Minute).UnixMilli(), now.Add(5*time.Minute).UnixMilli(),
		"100.5", "102", "100", "101.5", "3", "2")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "5m" {
			t.Fatalf("unexpected interval %s", got)
		}
		_ = json.NewEncoder(w).Encode([]kline{closed, inProgress})
	}))
	defer srv.Close()

	c := NewClient(pkghttp.NewClient(), nil, WithBaseURL(srv.URL))
	series, err := c.GetCandles(context.Background(), "BTCUSDT", domrepo.TF5m, 100)
	if err != nil {
		t.Fatalf("get candles: %v", err)
	}
	if len(series.Candles) != 1 {
		t.Fatalf("expected the unclosed bar dropped, got %d candles", len(series.Candles))
	}
	if series.Candles[0].Close != 100.5 {
		t.Fatalf("wrong candle kept: %+v", series.Candles[0])
	}
}

func TestGetCandlesRejectsBadTimeframe(t *testing.T) {
	c := NewClient(pkghttp.NewClient(), nil)
	if _, err := c.GetCandles(context.Background(), "BTCUSDT", domrepo.Timeframe("7m"), 10); err == nil {
		t.Fatalf("expected timeframe validation error")
	}
}

func TestGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": "BTCUSDT", "price": "64250.12000000"})
	}))
	defer srv.Close()

	c := NewClient(pkghttp.NewClient(), nil, WithBaseURL(srv.URL))
	p, err := c.GetPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if p != 64250.12 {
		t.Fatalf("expected 64250.12, got %v", p)
	}
}
