package indicators

// TrailingVolumeAverage returns the mean volume of the `period` bars that
// precede the final bar. The current bar is excluded so a volume spike in
// it does not inflate its own baseline.
func TrailingVolumeAverage(volumes []float64, period int) float64 {
	n := len(volumes)
	if period <= 0 || n < period+1 {
		return 0
	}
	sum := 0.0
	for _, v := range volumes[n-period-1 : n-1] {
		sum += v
	}
	return sum / float64(period)
}

// FlowDelta approximates net buy pressure over the last `period` candles:
// taker buy volume minus the implied taker sell volume (total - buy).
func FlowDelta(volumes, takerBuy []float64, period int) float64 {
	n := len(volumes)
	if n == 0 || len(takerBuy) != n {
		return 0
	}
	if period <= 0 || period > n {
		period = n
	}
	delta := 0.0
	for i := n - period; i < n; i++ {
		delta += takerBuy[i] - (volumes[i] - takerBuy[i])
	}
	return delta
}
