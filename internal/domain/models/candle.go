package models

import "time"

// Candle is one closed interval of a price series. An in-progress candle
// must never reach the evaluation pipeline; fetchers drop the last bar
// when its close time has not elapsed yet.
type Candle struct {
	OpenTime   time.Time
	CloseTime  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	TakerBuyV  float64
	TradeCount int64
}

// Closed reports whether the candle's interval has fully elapsed at now.
func (c Candle) Closed(now time.Time) bool {
	return !c.CloseTime.IsZero() && !now.Before(c.CloseTime)
}

// Series is a time-ordered candle window for one (symbol, timeframe) pair.
type Series struct {
	Symbol  string
	Candles []Candle
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Volume
	}
	return out
}

// Last returns the most recent candle. Callers must check Len first.
func (s Series) Last() Candle { return s.Candles[len(s.Candles)-1] }

func (s Series) Len() int { return len(s.Candles) }

// IndicatorSnapshot bundles the derived values for one (symbol, timeframe)
// view. Recomputed every cycle; never persisted.
type IndicatorSnapshot struct {
	Symbol        string
	Timeframe     string
	Close         float64
	EMAFast       float64
	EMASlow       float64
	RSI           float64
	ATR           float64
	VWAP          float64
	TrendStrength float64 // ADX-style directional strength, 0-100
	PlusDI        float64
	MinusDI       float64
	Volume        float64
	VolumeAvg     float64 // trailing average excluding the current bar
	FlowDelta     float64 // taker buy volume minus implied sell volume
}
