package scoring

import (
	"context"
	"fmt"
	"time"

	"TrendSentry/internal/domain/models"
	domsvc "TrendSentry/internal/domain/service"
)

// HTTPScorer rates candidates via an external model service. Results are
// cached briefly per (symbol, tier) since the same setup tends to
// resurface across consecutive cycles while the cooldown gate is open.
type HTTPScorer struct {
	base     *HTTPServiceBase
	cache    *TTLCache
	cacheTTL time.Duration
	attempts int
}

func NewHTTPScorer(baseURL string, timeout, cacheTTL time.Duration) *HTTPScorer {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &HTTPScorer{
		base:     NewHTTPServiceBase(baseURL, timeout),
		cache:    NewTTLCache(),
		cacheTTL: cacheTTL,
		attempts: 2,
	}
}

type scoreReq struct {
	Symbol    string             `json:"symbol"`
	Direction string             `json:"direction"`
	Tier      string             `json:"tier"`
	Entry     float64            `json:"entry"`
	Features  map[string]float64 `json:"features"`
}

type scoreResp struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

func (s *HTTPScorer) Score(ctx context.Context, c *models.Candidate) (float64, string, error) {
	key := c.Symbol + ":" + string(c.Tier) + ":" + string(c.Direction)
	if cached, ok := s.cache.Get(key); ok {
		return cached.Score, cached.Rationale, nil
	}

	req := scoreReq{
		Symbol:    c.Symbol,
		Direction: string(c.Direction),
		Tier:      string(c.Tier),
		Entry:     c.Entry,
		Features: map[string]float64{
			"trend_strength": c.Context.TrendStrength,
			"rsi":            c.Context.RSI,
			"atr":            c.Context.ATR,
			"vwap":           c.Context.VWAP,
			"volume_ratio":   c.Context.VolumeRatio,
			"flow_delta":     c.Context.FlowDelta,
		},
	}
	var resp scoreResp
	if err := s.base.PostJSONWithRetry(ctx, "/score", req, &resp, s.attempts); err != nil {
		return 0, "", fmt.Errorf("score %s: %w", c.Symbol, err)
	}
	if resp.Score < 0 || resp.Score > 100 {
		return 0, "", fmt.Errorf("score %s: out of range %.2f", c.Symbol, resp.Score)
	}

	s.cache.Set(key, scoreResult{Score: resp.Score, Rationale: resp.Rationale}, s.cacheTTL)
	return resp.Score, resp.Rationale, nil
}

var _ domsvc.Scorer = (*HTTPScorer)(nil)
