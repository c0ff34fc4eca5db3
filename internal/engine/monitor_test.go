package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"TrendSentry/internal/domain/models"
)

type memStore struct {
	mu      sync.Mutex
	signals map[string]*models.Signal
	failing bool
}

func newMemStore() *memStore {
	return &memStore{signals: make(map[string]*models.Signal)}
}

func (s *memStore) Init(context.Context) error { return nil }

func (s *memStore) Insert(_ context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("store down")
	}
	cp := *sig
	s.signals[sig.ID] = &cp
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, t *models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return fmt.Errorf("store down")
	}
	sig, ok := s.signals[t.SignalID]
	if !ok {
		return fmt.Errorf("signal %s not found", t.SignalID)
	}
	sig.Status = t.To
	sig.ExitPrice = t.ExitPrice
	sig.ExitReason = t.ExitReason
	sig.PnLPercent = t.PnLPercent
	if t.To.Terminal() {
		sig.ClosedAt = t.At
	}
	return nil
}

func (s *memStore) OpenSignals(context.Context) ([]*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Signal
	for _, sig := range s.signals {
		if !sig.Status.Terminal() {
			cp := *sig
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) Query(_ context.Context, symbol string, status models.SignalStatus, _ int) ([]*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Signal
	for _, sig := range s.signals {
		if symbol != "" && sig.Symbol != symbol {
			continue
		}
		if status != "" && sig.Status != status {
			continue
		}
		cp := *sig
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) SignalsSince(_ context.Context, since time.Time, _ int) ([]*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Signal
	for _, sig := range s.signals {
		if sig.CreatedAt.Before(since) {
			continue
		}
		cp := *sig
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) LatestBySymbol(_ context.Context, symbol string) (*models.Signal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Signal
	for _, sig := range s.signals {
		if sig.Symbol != symbol {
			continue
		}
		if latest == nil || sig.CreatedAt.After(latest.CreatedAt) {
			cp := *sig
			latest = &cp
		}
	}
	return latest, nil
}

func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

func (s *memStore) status(id string) models.SignalStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals[id].Status
}

type fakeMetrics struct{}

func (fakeMetrics) RecordSignalCreated(string, string)  {}
func (fakeMetrics) RecordTransition(string)             {}
func (fakeMetrics) RecordWorkerRestart(string)          {}
func (fakeMetrics) RecordError(string)                  {}
func (fakeMetrics) RecordLastPrice(string, float64)     {}
func (fakeMetrics) RecordCycleDuration(string, float64) {}

type fakePrices map[string]float64

func (p fakePrices) Last(symbol string) (float64, bool) {
	v, ok := p[symbol]
	return v, ok
}

func collect(emitted *[]Payload) func(Payload) {
	return func(p Payload) { *emitted = append(*emitted, p) }
}

func newTestMonitor(t *testing.T, store *memStore, prices fakePrices, cfg MonitorConfig) *Monitor {
	t.Helper()
	return NewMonitor(store, prices, nil, nil, fakeMetrics{}, cfg, testLogger(t))
}

func TestMonitorAppliesTP1(t *testing.T) {
	store := newMemStore()
	sig := openLong()
	if err := store.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert: %v", err)
	}

	m := newTestMonitor(t, store, fakePrices{"BTCUSDT": 111}, DefaultMonitorConfig())
	var emitted []Payload
	m.RunCycle(context.Background(), collect(&emitted))

	if got := store.status(sig.ID); got != models.StatusHitTP1 {
		t.Fatalf("expected HIT_TP1 persisted, got %s", got)
	}

	var forward *NotifyForwardPayload
	for _, p := range emitted {
		if f, ok := p.(NotifyForwardPayload); ok && f.Transition != nil {
			forward = &f
		}
	}
	if forward == nil || forward.Transition.To != models.StatusHitTP1 {
		t.Fatalf("expected transition forward, got %+v", emitted)
	}
}

func TestMonitorScanIsIdempotent(t *testing.T) {
	store := newMemStore()
	sig := openLong()
	if err := store.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Price holds between TP1 and TP2 across two cycles: exactly one
	// transition total.
	m := newTestMonitor(t, store, fakePrices{"BTCUSDT": 111}, DefaultMonitorConfig())
	var first []Payload
	m.RunCycle(context.Background(), collect(&first))
	var second []Payload
	m.RunCycle(context.Background(), collect(&second))

	for _, p := range second {
		if f, ok := p.(NotifyForwardPayload); ok && f.Transition != nil {
			t.Fatalf("second cycle re-applied transition %+v", f.Transition)
		}
	}
	if got := store.status(sig.ID); got != models.StatusHitTP1 {
		t.Fatalf("expected HIT_TP1, got %s", got)
	}
}

func TestMonitorEarlyExitAtCeiling(t *testing.T) {
	store := newMemStore()
	sig := openLong()
	sig.StopLoss = 90 // stop far enough that the loss ceiling fires first
	if err := store.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert: %v", err)
	}

	m := newTestMonitor(t, store, fakePrices{"BTCUSDT": 93.5}, DefaultMonitorConfig())
	var emitted []Payload
	m.RunCycle(context.Background(), collect(&emitted))

	if got := store.status(sig.ID); got != models.StatusEarlyExit {
		t.Fatalf("expected EARLY_EXIT at -6.5%%, got %s", got)
	}
}

func TestMonitorRiskWarningCooldown(t *testing.T) {
	store := newMemStore()
	sig := openLong()
	if err := store.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// 96 is 80% of the way to the stop but only a 4% loss: warn, not exit.
	m := newTestMonitor(t, store, fakePrices{"BTCUSDT": 96}, DefaultMonitorConfig())
	var first []Payload
	m.RunCycle(context.Background(), collect(&first))
	var second []Payload
	m.RunCycle(context.Background(), collect(&second))

	count := 0
	for _, p := range append(first, second...) {
		if _, ok := p.(RiskWarningPayload); ok {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one warning within the cooldown window, got %d", count)
	}
	if got := store.status(sig.ID); got != models.StatusOpen {
		t.Fatalf("warning must not change status, got %s", got)
	}
}

func TestMonitorEODForceClose(t *testing.T) {
	store := newMemStore()
	sig := openLong()
	if err := store.Insert(context.Background(), sig); err != nil {
		t.Fatalf("insert: %v", err)
	}

	m := newTestMonitor(t, store, fakePrices{"BTCUSDT": 102}, DefaultMonitorConfig())
	base := time.Now()
	m.now = func() time.Time { return base }
	m.nextEOD = base.Add(-time.Second) // boundary already passed

	var emitted []Payload
	m.RunCycle(context.Background(), collect(&emitted))

	if got := store.status(sig.ID); got != models.StatusClosedEOD {
		t.Fatalf("expected CLOSED_EOD, got %s", got)
	}
	if !m.nextEOD.After(base) {
		t.Fatalf("boundary should advance, got %v", m.nextEOD)
	}

	var digest *models.DailyDigest
	for _, p := range emitted {
		if f, ok := p.(NotifyForwardPayload); ok && f.Digest != nil {
			digest = f.Digest
		}
	}
	if digest == nil {
		t.Fatalf("expected a session digest")
	}
}

func TestBuildDigest(t *testing.T) {
	now := time.Now()
	signals := []*models.Signal{
		{Status: models.StatusHitTP2, PnLPercent: 4, CreatedAt: now},
		{Status: models.StatusHitSL, PnLPercent: -2, CreatedAt: now},
		{Status: models.StatusClosedEOD, PnLPercent: 0.5, CreatedAt: now},
		{Status: models.StatusOpen, CreatedAt: now},
	}
	d := BuildDigest(signals, now)
	if d.Opened != 4 || d.HitTP != 1 || d.HitSL != 1 || d.ForceClosed != 1 {
		t.Fatalf("unexpected digest %+v", d)
	}
	if d.NetPnL != 2.5 {
		t.Fatalf("expected net 2.5, got %v", d.NetPnL)
	}
}
