package engine

import (
	"context"
	"fmt"
	"time"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	"TrendSentry/internal/indicators"
	"TrendSentry/pkg/cache"
	"TrendSentry/pkg/logger"
)

// ErrInsufficientData aborts the cycle for one symbol when a timeframe has
// too little history to produce stable indicator values.
var ErrInsufficientData = fmt.Errorf("insufficient candle history")

// TierGates holds the rule thresholds for one quality tier.
type TierGates struct {
	TrendStrengthMin float64 // directional-strength floor on the trend timeframe
	RSILow           float64 // momentum-confirmation bounds, long side
	RSIHigh          float64
	VolumeMultiple   float64 // entry-bar volume vs trailing average
}

// PipelineConfig fixes the timeframes and gate thresholds of the funnel.
type PipelineConfig struct {
	MacroTF   domrepo.Timeframe
	TrendTF   domrepo.Timeframe
	ConfirmTF domrepo.Timeframe
	EntryTF   domrepo.Timeframe
	HigherTF  domrepo.Timeframe // strict-tier agreement horizon above macro

	CandleLimit int
	MinHistory  int

	Strict  TierGates
	Relaxed TierGates

	ADXTrendingMin float64 // macro regime: trending above this
	ADXChoppyBelow float64 // macro regime: choppy below this

	EMAFastPeriod int
	EMASlowPeriod int
	RSIPeriod     int
	ATRPeriod     int
	ADXPeriod     int
	VolumeAvgLen  int
	FlowDeltaLen  int

	StopATRMultiple float64
	TP1ATRMultiple  float64
	TP2ATRMultiple  float64

	RegimeCacheTTL time.Duration
}

// DefaultPipelineConfig mirrors the production gate setup.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MacroTF:   domrepo.TF4h,
		TrendTF:   domrepo.TF1h,
		ConfirmTF: domrepo.TF15m,
		EntryTF:   domrepo.TF5m,
		HigherTF:  domrepo.TF1d,

		CandleLimit: 120,
		MinHistory:  60,

		Strict:  TierGates{TrendStrengthMin: 30, RSILow: 52, RSIHigh: 66, VolumeMultiple: 1.8},
		Relaxed: TierGates{TrendStrengthMin: 22, RSILow: 48, RSIHigh: 72, VolumeMultiple: 1.3},

		ADXTrendingMin: 25,
		ADXChoppyBelow: 15,

		EMAFastPeriod: 9,
		EMASlowPeriod: 21,
		RSIPeriod:     14,
		ATRPeriod:     14,
		ADXPeriod:     14,
		VolumeAvgLen:  20,
		FlowDeltaLen:  10,

		StopATRMultiple: 2.0,
		TP1ATRMultiple:  2.0,
		TP2ATRMultiple:  4.0,

		RegimeCacheTTL: 10 * time.Minute,
	}
}

// Pipeline runs the tiered rule funnel for one symbol per cycle. It is the
// analyzer's only dependency on market data and indicator computation.
type Pipeline struct {
	market domrepo.MarketData
	cache  cache.Service
	cfg    PipelineConfig
	log    *logger.Logger
}

func NewPipeline(market domrepo.MarketData, c cache.Service, cfg PipelineConfig, log *logger.Logger) *Pipeline {
	return &Pipeline{market: market, cache: c, cfg: cfg, log: log}
}

// Evaluate runs one full pass for a symbol. A nil candidate with nil error
// means no opportunity this cycle. Tiers are mutually exclusive: strict is
// attempted first and the first success wins.
func (p *Pipeline) Evaluate(ctx context.Context, symbol string) (*models.Candidate, error) {
	macro, err := p.snapshot(ctx, symbol, p.cfg.MacroTF)
	if err != nil {
		return nil, err
	}
	trend, err := p.snapshot(ctx, symbol, p.cfg.TrendTF)
	if err != nil {
		return nil, err
	}
	confirm, err := p.snapshot(ctx, symbol, p.cfg.ConfirmTF)
	if err != nil {
		return nil, err
	}
	entry, err := p.snapshot(ctx, symbol, p.cfg.EntryTF)
	if err != nil {
		return nil, err
	}

	regime := p.classifyRegime(ctx, symbol, macro)
	if regime == models.RegimeChoppy {
		return nil, nil
	}

	var dir models.Direction
	switch regime {
	case models.RegimeTrendingUp:
		dir = models.Long
	case models.RegimeTrendingDown:
		dir = models.Short
	default:
		// Ranging: no directional conviction on the macro view.
		return nil, nil
	}

	tier, ok := p.runFunnel(ctx, symbol, dir, trend, confirm, entry)
	if !ok {
		return nil, nil
	}

	if !p.entryTriggered(dir, entry) {
		return nil, nil
	}

	cand := p.buildCandidate(symbol, dir, tier, regime, trend, confirm, entry)
	return cand, nil
}

// snapshot fetches candles for one timeframe and derives the indicator
// bundle. The market data client already discards an unfinished last bar.
func (p *Pipeline) snapshot(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.IndicatorSnapshot, error) {
	series, err := p.market.GetCandles(ctx, symbol, tf, p.cfg.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", symbol, tf, err)
	}
	if series.Len() < p.cfg.MinHistory {
		return nil, fmt.Errorf("%w: %s %s has %d bars, need %d", ErrInsufficientData, symbol, tf, series.Len(), p.cfg.MinHistory)
	}

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()
	takerBuy := make([]float64, series.Len())
	for i, c := range series.Candles {
		takerBuy[i] = c.TakerBuyV
	}

	di := indicators.DirectionalIndex(highs, lows, closes, p.cfg.ADXPeriod)

	return &models.IndicatorSnapshot{
		Symbol:        symbol,
		Timeframe:     string(tf),
		Close:         indicators.Last(closes),
		EMAFast:       indicators.Last(indicators.EMA(closes, p.cfg.EMAFastPeriod)),
		EMASlow:       indicators.Last(indicators.EMA(closes, p.cfg.EMASlowPeriod)),
		RSI:           indicators.Last(indicators.RSI(closes, p.cfg.RSIPeriod)),
		ATR:           indicators.Last(indicators.ATR(highs, lows, closes, p.cfg.ATRPeriod)),
		VWAP:          indicators.Last(indicators.VWAP(highs, lows, closes, volumes)),
		TrendStrength: di.ADX,
		PlusDI:        di.PlusDI,
		MinusDI:       di.MinusDI,
		Volume:        indicators.Last(volumes),
		VolumeAvg:     indicators.TrailingVolumeAverage(volumes, p.cfg.VolumeAvgLen),
		FlowDelta:     indicators.FlowDelta(volumes, takerBuy, p.cfg.FlowDeltaLen),
	}, nil
}

// classifyRegime reads the macro snapshot. The result is cached per symbol
// for a bounded TTL to keep external-call pressure down; every other
// snapshot value is recomputed fresh each cycle.
func (p *Pipeline) classifyRegime(ctx context.Context, symbol string, macro *models.IndicatorSnapshot) models.Regime {
	key := "regime:" + symbol
	if p.cache != nil {
		var cached string
		if err := p.cache.Get(ctx, key, &cached); err == nil && cached != "" {
			return models.Regime(cached)
		}
	}

	regime := ClassifyRegime(macro, p.cfg.ADXTrendingMin, p.cfg.ADXChoppyBelow)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, string(regime), p.cfg.RegimeCacheTTL); err != nil {
			p.log.Warn("regime cache set failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return regime
}

// ClassifyRegime maps macro trend-strength readings onto the four regimes.
func ClassifyRegime(macro *models.IndicatorSnapshot, trendingMin, choppyBelow float64) models.Regime {
	switch {
	case macro.TrendStrength < choppyBelow:
		return models.RegimeChoppy
	case macro.TrendStrength >= trendingMin && macro.PlusDI > macro.MinusDI:
		return models.RegimeTrendingUp
	case macro.TrendStrength >= trendingMin && macro.MinusDI > macro.PlusDI:
		return models.RegimeTrendingDown
	default:
		return models.RegimeRanging
	}
}

// runFunnel applies the strict gates first, then relaxed. First match
// wins; both tiers never fire in the same pass.
func (p *Pipeline) runFunnel(ctx context.Context, symbol string, dir models.Direction, trend, confirm, entry *models.IndicatorSnapshot) (models.Tier, bool) {
	if p.passesGates(dir, p.cfg.Strict, trend, confirm, entry) && p.strictExtras(ctx, symbol, dir, entry) {
		return models.TierStrict, true
	}
	if p.passesGates(dir, p.cfg.Relaxed, trend, confirm, entry) {
		return models.TierRelaxed, true
	}
	return "", false
}

func (p *Pipeline) passesGates(dir models.Direction, g TierGates, trend, confirm, entry *models.IndicatorSnapshot) bool {
	// Trend-strength gate on the trend timeframe.
	if trend.TrendStrength < g.TrendStrengthMin {
		return false
	}

	// Momentum confirmation: oscillator band plus moving-average-relative
	// position, both agreeing with the macro direction.
	if dir == models.Long {
		if confirm.RSI < g.RSILow || confirm.RSI > g.RSIHigh {
			return false
		}
		if confirm.Close <= confirm.EMAFast {
			return false
		}
	} else {
		low, high := 100-g.RSIHigh, 100-g.RSILow
		if confirm.RSI < low || confirm.RSI > high {
			return false
		}
		if confirm.Close >= confirm.EMAFast {
			return false
		}
	}

	// Volume confirmation on the entry timeframe.
	if entry.VolumeAvg <= 0 || entry.Volume < g.VolumeMultiple*entry.VolumeAvg {
		return false
	}

	return true
}

// strictExtras adds the strict-only checks: agreement with the horizon
// above macro, and order-flow delta sign matching the direction.
func (p *Pipeline) strictExtras(ctx context.Context, symbol string, dir models.Direction, entry *models.IndicatorSnapshot) bool {
	if dir == models.Long && entry.FlowDelta <= 0 {
		return false
	}
	if dir == models.Short && entry.FlowDelta >= 0 {
		return false
	}

	higher, err := p.snapshot(ctx, symbol, p.cfg.HigherTF)
	if err != nil {
		p.log.Debug("higher timeframe unavailable, strict tier skipped",
			logger.String("symbol", symbol), logger.Error(err))
		return false
	}
	if dir == models.Long {
		return higher.EMAFast > higher.EMASlow
	}
	return higher.EMAFast < higher.EMASlow
}

// entryTriggered requires price on the correct side of both the short
// moving average and the session VWAP on the entry timeframe.
func (p *Pipeline) entryTriggered(dir models.Direction, entry *models.IndicatorSnapshot) bool {
	if dir == models.Long {
		return entry.Close > entry.EMAFast && entry.Close > entry.VWAP
	}
	return entry.Close < entry.EMAFast && entry.Close < entry.VWAP
}

func (p *Pipeline) buildCandidate(symbol string, dir models.Direction, tier models.Tier, regime models.Regime, trend, confirm, entry *models.IndicatorSnapshot) *models.Candidate {
	price := entry.Close
	atr := trend.ATR
	if atr <= 0 {
		atr = entry.ATR
	}

	stop := price - p.cfg.StopATRMultiple*atr
	tp1 := price + p.cfg.TP1ATRMultiple*atr
	tp2 := price + p.cfg.TP2ATRMultiple*atr
	if dir == models.Short {
		stop = price + p.cfg.StopATRMultiple*atr
		tp1 = price - p.cfg.TP1ATRMultiple*atr
		tp2 = price - p.cfg.TP2ATRMultiple*atr
	}

	volRatio := 0.0
	if entry.VolumeAvg > 0 {
		volRatio = entry.Volume / entry.VolumeAvg
	}

	return &models.Candidate{
		Symbol:      symbol,
		Direction:   dir,
		Tier:        tier,
		Entry:       price,
		StopLoss:    stop,
		TakeProfit:  tp1,
		TakeProfit2: tp2,
		Context: models.TechContext{
			Regime:        regime,
			TrendStrength: trend.TrendStrength,
			RSI:           confirm.RSI,
			ATR:           atr,
			VWAP:          entry.VWAP,
			VolumeRatio:   volRatio,
			FlowDelta:     entry.FlowDelta,
		},
	}
}
