package indicators

import "math"

// ATR computes the Wilder-smoothed average true range series.
func ATR(highs, lows, closes []float64, period int) []float64 {
	length := len(closes)
	out := make([]float64, length)
	if period <= 0 || length < period+1 {
		return out
	}

	trs := make([]float64, length)
	trs[0] = highs[0] - lows[0]
	for i := 1; i < length; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trs[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += trs[i]
	}
	out[period-1] = sum / float64(period)

	for i := period; i < length; i++ {
		out[i] = (out[i-1]*float64(period-1) + trs[i]) / float64(period)
	}
	return out
}
