package engine

import (
	"context"
	"errors"
	"testing"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	applogger "TrendSentry/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func TestClassifyRegime(t *testing.T) {
	cases := []struct {
		name string
		adx  float64
		plus float64
		min  float64
		want models.Regime
	}{
		{"choppy", 10, 30, 20, models.RegimeChoppy},
		{"trending up", 30, 30, 20, models.RegimeTrendingUp},
		{"trending down", 30, 15, 28, models.RegimeTrendingDown},
		{"ranging", 20, 30, 20, models.RegimeRanging},
	}
	for _, tc := range cases {
		snap := &models.IndicatorSnapshot{TrendStrength: tc.adx, PlusDI: tc.plus, MinusDI: tc.min}
		if got := ClassifyRegime(snap, 25, 15); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func trendingSnapshots() (trend, confirm, entry *models.IndicatorSnapshot) {
	trend = &models.IndicatorSnapshot{TrendStrength: 35, ATR: 2}
	confirm = &models.IndicatorSnapshot{RSI: 58, Close: 101, EMAFast: 100}
	entry = &models.IndicatorSnapshot{
		Close: 101, EMAFast: 100, VWAP: 100.5,
		Volume: 2000, VolumeAvg: 1000, FlowDelta: 300, ATR: 1.5,
	}
	return
}

func TestPassesGatesLong(t *testing.T) {
	p := NewPipeline(nil, nil, DefaultPipelineConfig(), nil)
	trend, confirm, entry := trendingSnapshots()

	if !p.passesGates(models.Long, p.cfg.Strict, trend, confirm, entry) {
		t.Fatalf("expected strict gates to pass")
	}

	weakTrend := *trend
	weakTrend.TrendStrength = 25
	if p.passesGates(models.Long, p.cfg.Strict, &weakTrend, confirm, entry) {
		t.Fatalf("trend gate should reject ADX 25 on strict")
	}
	if !p.passesGates(models.Long, p.cfg.Relaxed, &weakTrend, confirm, entry) {
		t.Fatalf("relaxed should still accept ADX 25")
	}

	hotRSI := *confirm
	hotRSI.RSI = 70
	if p.passesGates(models.Long, p.cfg.Strict, trend, &hotRSI, entry) {
		t.Fatalf("RSI 70 should fail the strict long band")
	}

	thinVolume := *entry
	thinVolume.Volume = 1200
	if p.passesGates(models.Long, p.cfg.Strict, trend, confirm, &thinVolume) {
		t.Fatalf("1.2x volume should fail the strict 1.8x gate")
	}
}

func TestPassesGatesShortMirrorsBand(t *testing.T) {
	p := NewPipeline(nil, nil, DefaultPipelineConfig(), nil)
	trend := &models.IndicatorSnapshot{TrendStrength: 35}
	confirm := &models.IndicatorSnapshot{RSI: 40, Close: 99, EMAFast: 100}
	entry := &models.IndicatorSnapshot{Volume: 2000, VolumeAvg: 1000}

	if !p.passesGates(models.Short, p.cfg.Strict, trend, confirm, entry) {
		t.Fatalf("RSI 40 should sit inside the mirrored strict short band [34, 48]")
	}

	confirm.RSI = 55
	if p.passesGates(models.Short, p.cfg.Strict, trend, confirm, entry) {
		t.Fatalf("RSI 55 should fail the mirrored short band")
	}
}

func TestEntryTriggered(t *testing.T) {
	p := NewPipeline(nil, nil, DefaultPipelineConfig(), nil)

	entry := &models.IndicatorSnapshot{Close: 101, EMAFast: 100, VWAP: 100.5}
	if !p.entryTriggered(models.Long, entry) {
		t.Fatalf("price above EMA and VWAP should trigger long entry")
	}
	entry.VWAP = 102
	if p.entryTriggered(models.Long, entry) {
		t.Fatalf("price below VWAP should not trigger long entry")
	}

	entry = &models.IndicatorSnapshot{Close: 99, EMAFast: 100, VWAP: 99.5}
	if !p.entryTriggered(models.Short, entry) {
		t.Fatalf("price below EMA and VWAP should trigger short entry")
	}
}

func TestBuildCandidateLevels(t *testing.T) {
	p := NewPipeline(nil, nil, DefaultPipelineConfig(), nil)
	trend, confirm, entry := trendingSnapshots()

	c := p.buildCandidate("BTCUSDT", models.Long, models.TierStrict, models.RegimeTrendingUp, trend, confirm, entry)
	if c.Entry != 101 {
		t.Fatalf("unexpected entry %v", c.Entry)
	}
	// ATR 2 from the trend view: stop 2x below, targets 2x and 4x above.
	if c.StopLoss != 97 || c.TakeProfit != 105 || c.TakeProfit2 != 109 {
		t.Fatalf("unexpected levels sl=%v tp1=%v tp2=%v", c.StopLoss, c.TakeProfit, c.TakeProfit2)
	}
	sig := &models.Signal{Direction: c.Direction, Entry: c.Entry, StopLoss: c.StopLoss, TakeProfit: c.TakeProfit, TakeProfit2: c.TakeProfit2}
	if !sig.LevelsValid() {
		t.Fatalf("candidate levels break the direction invariant")
	}

	c = p.buildCandidate("BTCUSDT", models.Short, models.TierRelaxed, models.RegimeTrendingDown, trend, confirm, entry)
	if c.StopLoss != 105 || c.TakeProfit != 97 || c.TakeProfit2 != 93 {
		t.Fatalf("unexpected short levels sl=%v tp1=%v tp2=%v", c.StopLoss, c.TakeProfit, c.TakeProfit2)
	}
	if c.Context.VolumeRatio != 2 {
		t.Fatalf("unexpected volume ratio %v", c.Context.VolumeRatio)
	}
}

type thinMarket struct{}

func (thinMarket) GetCandles(_ context.Context, symbol string, _ domrepo.Timeframe, _ int) (models.Series, error) {
	return models.Series{Symbol: symbol, Candles: make([]models.Candle, 10)}, nil
}

func (thinMarket) GetPrice(context.Context, string) (float64, error) { return 0, nil }

func TestEvaluateInsufficientData(t *testing.T) {
	p := NewPipeline(thinMarket{}, nil, DefaultPipelineConfig(), testLogger(t))
	_, err := p.Evaluate(context.Background(), "BTCUSDT")
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
}
