package indicators

import "math"

// DirectionalStrength is the ADX family: trend strength plus the two
// directional index lines used to read trend direction.
type DirectionalStrength struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// DirectionalIndex computes ADX, +DI and -DI for the final bar using
// Wilder smoothing over the given period.
func DirectionalIndex(highs, lows, closes []float64, period int) DirectionalStrength {
	length := len(closes)
	if period <= 0 || length < 2*period+1 {
		return DirectionalStrength{}
	}

	plusDM := make([]float64, length)
	minusDM := make([]float64, length)
	trs := make([]float64, length)
	for i := 1; i < length; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		trs[i] = math.Max(hl, math.Max(hc, lc))
	}

	// Seed the smoothed sums over the first period.
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += trs[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := make([]float64, 0, length-period)
	var plusDI, minusDI float64
	for i := period + 1; i < length; i++ {
		smTR = smTR - smTR/float64(period) + trs[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		if smTR == 0 {
			continue
		}
		plusDI = 100 * smPlus / smTR
		minusDI = 100 * smMinus / smTR
		sum := plusDI + minusDI
		if sum == 0 {
			dx = append(dx, 0)
			continue
		}
		dx = append(dx, 100*math.Abs(plusDI-minusDI)/sum)
	}

	if len(dx) < period {
		return DirectionalStrength{PlusDI: plusDI, MinusDI: minusDI}
	}

	adx := 0.0
	for i := 0; i < period; i++ {
		adx += dx[i]
	}
	adx /= float64(period)
	for i := period; i < len(dx); i++ {
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
	}

	return DirectionalStrength{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}
}
