package engine

import (
	"math"
	"testing"
	"time"

	"TrendSentry/internal/domain/models"
)

func openLong() *models.Signal {
	return &models.Signal{
		ID:          "BTCUSDT-1",
		Symbol:      "BTCUSDT",
		Direction:   models.Long,
		Entry:       100,
		StopLoss:    95,
		TakeProfit:  110,
		TakeProfit2: 120,
		Status:      models.StatusOpen,
	}
}

func TestNextTransitionTP1First(t *testing.T) {
	s := openLong()
	tr := NextTransition(s, 111, time.Now())
	if tr == nil || tr.To != models.StatusHitTP1 {
		t.Fatalf("expected HIT_TP1, got %+v", tr)
	}
	if tr.From != models.StatusOpen {
		t.Fatalf("unexpected from %s", tr.From)
	}
}

func TestNextTransitionTP2AfterTP1(t *testing.T) {
	s := openLong()
	s.Status = models.StatusHitTP1
	tr := NextTransition(s, 121, time.Now())
	if tr == nil || tr.To != models.StatusHitTP2 {
		t.Fatalf("expected HIT_TP2, got %+v", tr)
	}
}

func TestNextTransitionSingleTargetMapsToTP2(t *testing.T) {
	s := openLong()
	s.TakeProfit2 = 0
	tr := NextTransition(s, 110, time.Now())
	if tr == nil || tr.To != models.StatusHitTP2 {
		t.Fatalf("single-target hit should be HIT_TP2, got %+v", tr)
	}
}

func TestNextTransitionStopLoss(t *testing.T) {
	s := openLong()
	tr := NextTransition(s, 94, time.Now())
	if tr == nil || tr.To != models.StatusHitSL {
		t.Fatalf("expected HIT_SL, got %+v", tr)
	}
	if math.Abs(tr.PnLPercent-(-6)) > 1e-9 {
		t.Fatalf("expected -6%% pnl, got %v", tr.PnLPercent)
	}
}

func TestNextTransitionTerminalIsFinal(t *testing.T) {
	for _, st := range []models.SignalStatus{
		models.StatusHitTP2, models.StatusHitSL, models.StatusEarlyExit, models.StatusClosedEOD,
	} {
		s := openLong()
		s.Status = st
		if tr := NextTransition(s, 200, time.Now()); tr != nil {
			t.Fatalf("terminal %s produced transition %+v", st, tr)
		}
	}
}

func TestNextTransitionNoCrossing(t *testing.T) {
	s := openLong()
	if tr := NextTransition(s, 102, time.Now()); tr != nil {
		t.Fatalf("expected no transition, got %+v", tr)
	}
}

func TestNextTransitionShortSide(t *testing.T) {
	s := &models.Signal{
		ID:          "ETHUSDT-1",
		Symbol:      "ETHUSDT",
		Direction:   models.Short,
		Entry:       100,
		StopLoss:    105,
		TakeProfit:  90,
		TakeProfit2: 80,
		Status:      models.StatusOpen,
	}
	tr := NextTransition(s, 89, time.Now())
	if tr == nil || tr.To != models.StatusHitTP1 {
		t.Fatalf("expected short HIT_TP1, got %+v", tr)
	}
	if tr.PnLPercent <= 0 {
		t.Fatalf("short profit should be positive, got %v", tr.PnLPercent)
	}

	tr = NextTransition(s, 106, time.Now())
	if tr == nil || tr.To != models.StatusHitSL {
		t.Fatalf("expected short HIT_SL, got %+v", tr)
	}
}

func TestEarlyExitTerminalNil(t *testing.T) {
	s := openLong()
	s.Status = models.StatusHitSL
	if tr := EarlyExit(s, 90, time.Now()); tr != nil {
		t.Fatalf("early exit on terminal signal: %+v", tr)
	}
}

func TestForceCloseEOD(t *testing.T) {
	s := openLong()
	s.Status = models.StatusHitTP1
	tr := ForceCloseEOD(s, 103, time.Now())
	if tr == nil || tr.To != models.StatusClosedEOD {
		t.Fatalf("expected CLOSED_EOD, got %+v", tr)
	}
	if tr.From != models.StatusHitTP1 {
		t.Fatalf("unexpected from %s", tr.From)
	}
}

func TestRiskFraction(t *testing.T) {
	s := openLong()
	if f := RiskFraction(s, 102); f != 0 {
		t.Fatalf("profitable side should be 0, got %v", f)
	}
	if f := RiskFraction(s, 97.5); math.Abs(f-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", f)
	}
	if f := RiskFraction(s, 95); math.Abs(f-1) > 1e-9 {
		t.Fatalf("expected 1.0 at the stop, got %v", f)
	}
}

func TestNextBoundary(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	b := nextBoundary(now, 0)
	want := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	if !b.Equal(want) {
		t.Fatalf("expected %v, got %v", want, b)
	}

	b = nextBoundary(now, 15)
	want = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	if !b.Equal(want) {
		t.Fatalf("expected %v, got %v", want, b)
	}

	// Exactly on the boundary rolls to the next day.
	now = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	b = nextBoundary(now, 0)
	if !b.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("boundary at now should roll forward, got %v", b)
	}
}
