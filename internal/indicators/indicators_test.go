package indicators

import (
	"math"
	"testing"
)

func almost(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{0, 0, 2, 3, 4}
	for i := range want {
		if !almost(out[i], want[i]) {
			t.Fatalf("sma[%d]: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestEMA(t *testing.T) {
	// Period 3 gives k = 0.5, seeded with the simple average of the
	// first three values.
	out := EMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{0, 0, 2, 3, 4}
	for i := range want {
		if !almost(out[i], want[i]) {
			t.Fatalf("ema[%d]: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestEMAShortInput(t *testing.T) {
	out := EMA([]float64{1, 2}, 5)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("short input must yield zeros, got out[%d]=%v", i, v)
		}
	}
}

func TestLast(t *testing.T) {
	if Last(nil) != 0 {
		t.Fatalf("empty series should give 0")
	}
	if Last([]float64{1, 2, 3}) != 3 {
		t.Fatalf("expected final value 3")
	}
}

func TestRSIExtremes(t *testing.T) {
	rising := make([]float64, 30)
	falling := make([]float64, 30)
	for i := range rising {
		rising[i] = float64(100 + i)
		falling[i] = float64(100 - i)
	}

	if got := Last(RSI(rising, 14)); got != 100 {
		t.Fatalf("all gains must pin RSI at 100, got %v", got)
	}
	if got := Last(RSI(falling, 14)); got != 0 {
		t.Fatalf("all losses must pin RSI at 0, got %v", got)
	}
}

func TestRSIShortInput(t *testing.T) {
	out := RSI([]float64{1, 2, 3}, 14)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("short input must yield zeros")
		}
	}
}

func TestATRConstantRange(t *testing.T) {
	n := 30
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i], lows[i], closes[i] = 102, 100, 101
	}

	// Every bar has true range 2, so the smoothed value is exactly 2.
	if got := Last(ATR(highs, lows, closes, 14)); !almost(got, 2) {
		t.Fatalf("expected ATR 2, got %v", got)
	}
}

func TestVWAP(t *testing.T) {
	highs := []float64{12, 16}
	lows := []float64{8, 12}
	closes := []float64{10, 14}
	volumes := []float64{1, 1}

	out := VWAP(highs, lows, closes, volumes)
	if !almost(out[0], 10) {
		t.Fatalf("expected first vwap 10, got %v", out[0])
	}
	if !almost(out[1], 12) {
		t.Fatalf("equal volumes average the typical prices: expected 12, got %v", out[1])
	}
}

func TestTrailingVolumeAverageExcludesCurrentBar(t *testing.T) {
	volumes := []float64{1, 2, 3, 4, 100}
	if got := TrailingVolumeAverage(volumes, 4); !almost(got, 2.5) {
		t.Fatalf("the spiking final bar must not count: expected 2.5, got %v", got)
	}
	if got := TrailingVolumeAverage(volumes, 2); !almost(got, 3.5) {
		t.Fatalf("expected 3.5, got %v", got)
	}
	if got := TrailingVolumeAverage([]float64{1, 2}, 5); got != 0 {
		t.Fatalf("insufficient history should give 0, got %v", got)
	}
}

func TestFlowDelta(t *testing.T) {
	volumes := []float64{10, 10}
	takerBuy := []float64{7, 6}

	// (7-3) + (6-4) = 6 net buy pressure.
	if got := FlowDelta(volumes, takerBuy, 2); !almost(got, 6) {
		t.Fatalf("expected 6, got %v", got)
	}
	if got := FlowDelta(volumes, takerBuy, 1); !almost(got, 2) {
		t.Fatalf("expected 2 over the last bar, got %v", got)
	}
	if got := FlowDelta(volumes, []float64{7}, 2); got != 0 {
		t.Fatalf("mismatched lengths should give 0, got %v", got)
	}
}

func TestDirectionalIndexUptrend(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		highs[i] = float64(i + 2)
		lows[i] = float64(i)
		closes[i] = float64(i + 1)
	}

	st := DirectionalIndex(highs, lows, closes, 14)
	if st.PlusDI <= st.MinusDI {
		t.Fatalf("an uptrend must have +DI above -DI, got %+v", st)
	}
	// Pure one-directional movement drives DX, and so ADX, to 100.
	if st.ADX < 99.9 {
		t.Fatalf("expected ADX near 100, got %v", st.ADX)
	}
	if st.MinusDI != 0 {
		t.Fatalf("no downward movement, expected -DI 0, got %v", st.MinusDI)
	}
}

func TestDirectionalIndexShortInput(t *testing.T) {
	st := DirectionalIndex([]float64{1, 2}, []float64{0, 1}, []float64{1, 2}, 14)
	if st.ADX != 0 || st.PlusDI != 0 || st.MinusDI != 0 {
		t.Fatalf("short input should give zero values, got %+v", st)
	}
}
