package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	"TrendSentry/internal/service/ratelimit"
	pkghttp "TrendSentry/pkg/http"
)

const DefaultBaseURL = "https://api.binance.com"

// Client implements MarketData against the Binance spot REST API. All
// calls pass through a token-bucket limiter keyed per endpoint so a burst
// of analyzers cannot trip the exchange's request weight limits.
type Client struct {
	http    *pkghttp.Client
	baseURL string
	limiter *ratelimit.Limiter
	rps     float64
	now     func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithRequestsPerSecond caps the sustained REST call rate.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.rps = rps
		}
	}
}

func NewClient(httpClient *pkghttp.Client, limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		http:    httpClient,
		baseURL: DefaultBaseURL,
		limiter: limiter,
		rps:     10,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// kline is the positional array Binance returns per bar:
// [openTime, open, high, low, close, volume, closeTime, quoteVol,
//  tradeCount, takerBuyBase, takerBuyQuote, ignore]
type kline []json.RawMessage

// GetCandles fetches up to limit closed candles. The trailing in-progress
// bar is dropped so downstream indicators only ever see finished bars.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) (models.Series, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return models.Series{}, fmt.Errorf("unsupported timeframe %q", tf)
	}
	if limit <= 0 {
		limit = 120
	}
	if err := c.acquire(ctx, "klines"); err != nil {
		return models.Series{}, err
	}

	var raw []kline
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.baseURL + "/api/v3/klines",
		QueryParams: map[string][]string{
			"symbol":   {symbol},
			"interval": {string(tf)},
			// One extra so dropping the unclosed bar still fills the window.
			"limit": {strconv.Itoa(limit + 1)},
		},
	}, &raw)
	if err != nil {
		return models.Series{}, fmt.Errorf("binance klines %s %s: %w", symbol, tf, err)
	}

	now := c.now()
	candles := make([]models.Candle, 0, len(raw))
	for _, k := range raw {
		cd, err := parseKline(k)
		if err != nil {
			return models.Series{}, fmt.Errorf("binance klines %s %s: %w", symbol, tf, err)
		}
		if !cd.Closed(now) {
			continue
		}
		candles = append(candles, cd)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return models.Series{Symbol: symbol, Candles: candles}, nil
}

// GetPrice fetches the latest spot price.
func (c *Client) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := c.acquire(ctx, "ticker"); err != nil {
		return 0, err
	}

	var out struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         c.baseURL + "/api/v3/ticker/price",
		QueryParams: map[string][]string{"symbol": {symbol}},
	}, &out)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: %w", symbol, err)
	}
	p, err := strconv.ParseFloat(out.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance price %s: parse %q: %w", symbol, out.Price, err)
	}
	return p, nil
}

// acquire blocks until a limiter token is available or ctx expires.
func (c *Client) acquire(ctx context.Context, key string) error {
	if c.limiter == nil {
		return nil
	}
	for !c.limiter.Allow("binance_"+key, c.rps, c.rps) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func parseKline(k kline) (models.Candle, error) {
	if len(k) < 11 {
		return models.Candle{}, fmt.Errorf("short kline row: %d fields", len(k))
	}
	var openMs, closeMs, trades int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(k[6], &closeMs); err != nil {
		return models.Candle{}, fmt.Errorf("close time: %w", err)
	}
	if err := json.Unmarshal(k[8], &trades); err != nil {
		return models.Candle{}, fmt.Errorf("trade count: %w", err)
	}

	open, err := parsePrice(k[1])
	if err != nil {
		return models.Candle{}, fmt.Errorf("open: %w", err)
	}
	high, err := parsePrice(k[2])
	if err != nil {
		return models.Candle{}, fmt.Errorf("high: %w", err)
	}
	low, err := parsePrice(k[3])
	if err != nil {
		return models.Candle{}, fmt.Errorf("low: %w", err)
	}
	cl, err := parsePrice(k[4])
	if err != nil {
		return models.Candle{}, fmt.Errorf("close: %w", err)
	}
	vol, err := parsePrice(k[5])
	if err != nil {
		return models.Candle{}, fmt.Errorf("volume: %w", err)
	}
	takerBuy, err := parsePrice(k[9])
	if err != nil {
		return models.Candle{}, fmt.Errorf("taker buy volume: %w", err)
	}

	return models.Candle{
		OpenTime:   time.UnixMilli(openMs),
		CloseTime:  time.UnixMilli(closeMs),
		Open:       open,
		High:       high,
		Low:        low,
		Close:      cl,
		Volume:     vol,
		TakerBuyV:  takerBuy,
		TradeCount: trades,
	}, nil
}

// parsePrice decodes Binance's quoted decimal strings.
func parsePrice(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

var _ domrepo.MarketData = (*Client)(nil)
