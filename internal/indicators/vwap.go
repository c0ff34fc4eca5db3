package indicators

// VWAP computes the cumulative volume-weighted average price over the
// window, anchored at the start of the window (session VWAP when the
// window covers the session).
func VWAP(highs, lows, closes, volumes []float64) []float64 {
	length := len(closes)
	out := make([]float64, length)

	cumTPV := 0.0
	cumVol := 0.0
	for i := 0; i < length; i++ {
		typical := (highs[i] + lows[i] + closes[i]) / 3.0
		cumTPV += typical * volumes[i]
		cumVol += volumes[i]
		if cumVol > 0 {
			out[i] = cumTPV / cumVol
		}
	}
	return out
}
