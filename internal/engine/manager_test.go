package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"TrendSentry/internal/domain/models"
)

type taskFunc func(ctx context.Context, emit func(Payload))

func (f taskFunc) RunCycle(ctx context.Context, emit func(Payload)) { f(ctx, emit) }

func idleTask() Task {
	return taskFunc(func(context.Context, func(Payload)) {})
}

type fakeGate struct {
	mu    sync.Mutex
	calls []*models.Candidate
}

func (g *fakeGate) Accept(_ context.Context, c *models.Candidate) (*models.Signal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	return &models.Signal{ID: c.Symbol + "-1", Symbol: c.Symbol, Status: models.StatusOpen}, nil
}

func (g *fakeGate) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGate) first() *models.Candidate {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	return g.calls[0]
}

type fakeNotifier struct {
	mu          sync.Mutex
	transitions int
	warnings    int
	digests     int
}

func (n *fakeNotifier) NotifySignal(context.Context, *models.Signal) error { return nil }

func (n *fakeNotifier) NotifyTransition(context.Context, *models.Transition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.transitions++
	return nil
}

func (n *fakeNotifier) NotifyRiskWarning(context.Context, *models.RiskWarning) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings++
	return nil
}

func (n *fakeNotifier) NotifyDigest(context.Context, *models.DailyDigest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests++
	return nil
}

func (n *fakeNotifier) counts() (int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.transitions, n.warnings, n.digests
}

func quietConfig(symbols []string) ManagerConfig {
	return ManagerConfig{
		Symbols:          symbols,
		GroupSize:        3,
		StaggerDelay:     0,
		AnalysisInterval: time.Hour,
		MonitorInterval:  time.Hour,
		RestartBudget:    2,
		RestartBackoff:   time.Millisecond,
		HealthInterval:   time.Hour,
	}
}

func waitFor(t *testing.T, cond func() bool, desc string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func shutdown(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestManagerPartitionsSymbols(t *testing.T) {
	symbols := []string{"A", "B", "C", "D", "E", "F", "G"}
	m := NewManager(quietConfig(symbols), &fakeGate{}, &fakeNotifier{}, nil, fakeMetrics{}, testLogger(t),
		func([]string) Task { return idleTask() },
		func() Task { return idleTask() })

	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer shutdown(t, m)

	st := m.Status()
	if st.Analyzers != 3 || st.Monitors != 1 {
		t.Fatalf("expected 3 analyzers and 1 monitor, got %d/%d", st.Analyzers, st.Monitors)
	}
	if st.Degraded {
		t.Fatalf("fresh pool must not be degraded")
	}

	seen := make(map[string]bool)
	for _, w := range st.Workers {
		for _, s := range w.Symbols {
			if seen[s] {
				t.Fatalf("symbol %s assigned twice", s)
			}
			seen[s] = true
		}
	}
	if len(seen) != len(symbols) {
		t.Fatalf("expected every symbol assigned, got %d of %d", len(seen), len(symbols))
	}
}

func TestManagerInitializeRequiresSymbols(t *testing.T) {
	m := NewManager(quietConfig(nil), &fakeGate{}, &fakeNotifier{}, nil, fakeMetrics{}, testLogger(t),
		func([]string) Task { return idleTask() },
		func() Task { return idleTask() })
	if err := m.Initialize(context.Background()); err == nil {
		t.Fatalf("expected error for an empty symbol universe")
	}
}

func TestManagerRoutesCandidateToGate(t *testing.T) {
	gate := &fakeGate{}
	emitOnce := func(symbols []string) Task {
		fired := false
		return taskFunc(func(_ context.Context, emit func(Payload)) {
			if fired {
				return
			}
			fired = true
			emit(NewSignalPayload{Candidate: &models.Candidate{Symbol: symbols[0], Direction: models.Long}})
		})
	}

	m := NewManager(quietConfig([]string{"BTCUSDT"}), gate, &fakeNotifier{}, nil, fakeMetrics{}, testLogger(t),
		emitOnce,
		func() Task { return idleTask() })
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer shutdown(t, m)

	waitFor(t, func() bool { return gate.count() == 1 }, "gate to receive the candidate")
	if c := gate.first(); c.Symbol != "BTCUSDT" {
		t.Fatalf("wrong candidate routed: %+v", c)
	}
}

func TestManagerForwardsNotifications(t *testing.T) {
	notifier := &fakeNotifier{}
	monitorTask := func() Task {
		fired := false
		return taskFunc(func(_ context.Context, emit func(Payload)) {
			if fired {
				return
			}
			fired = true
			emit(NotifyForwardPayload{Transition: &models.Transition{SignalID: "x", To: models.StatusHitTP1}})
			emit(NotifyForwardPayload{Digest: &models.DailyDigest{}})
			emit(RiskWarningPayload{Warning: &models.RiskWarning{SignalID: "x"}})
		})
	}

	m := NewManager(quietConfig([]string{"BTCUSDT"}), &fakeGate{}, notifier, nil, fakeMetrics{}, testLogger(t),
		func([]string) Task { return idleTask() },
		monitorTask)
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer shutdown(t, m)

	waitFor(t, func() bool {
		tr, w, d := notifier.counts()
		return tr == 1 && w == 1 && d == 1
	}, "notifier to receive transition, warning and digest")
}

func TestManagerRestartBudget(t *testing.T) {
	panicking := func([]string) Task {
		return taskFunc(func(context.Context, func(Payload)) { panic("boom") })
	}

	cfg := quietConfig([]string{"BTCUSDT"})
	m := NewManager(cfg, &fakeGate{}, &fakeNotifier{}, nil, fakeMetrics{}, testLogger(t),
		panicking,
		func() Task { return idleTask() })
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	defer shutdown(t, m)

	// Each spawn crashes on its first tick. Budget of 2 restarts means the
	// third crash removes the assignment and degrades the pool.
	waitFor(t, func() bool { return m.Status().Degraded }, "pool to degrade")

	st := m.Status()
	var analyzer *WorkerStatus
	for i := range st.Workers {
		if st.Workers[i].Kind == WorkerAnalyzer {
			analyzer = &st.Workers[i]
		}
	}
	if analyzer == nil || !analyzer.Removed {
		t.Fatalf("expected analyzer removed, got %+v", st.Workers)
	}
	if analyzer.Restarts != cfg.RestartBudget+1 {
		t.Fatalf("expected %d recorded crashes, got %d", cfg.RestartBudget+1, analyzer.Restarts)
	}

	// The monitor is untouched by the analyzer's failures.
	for _, w := range st.Workers {
		if w.Kind == WorkerMonitor && w.Removed {
			t.Fatalf("monitor must survive analyzer crashes")
		}
	}
}

func TestManagerShutdownIdempotent(t *testing.T) {
	m := NewManager(quietConfig([]string{"BTCUSDT"}), &fakeGate{}, &fakeNotifier{}, nil, fakeMetrics{}, testLogger(t),
		func([]string) Task { return idleTask() },
		func() Task { return idleTask() })
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown: %v", err)
	}
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown must be a no-op: %v", err)
	}
}

func TestPartition(t *testing.T) {
	cases := []struct {
		symbols []string
		size    int
		want    int
	}{
		{[]string{"A", "B", "C", "D", "E"}, 2, 3},
		{[]string{"A", "B", "C"}, 3, 1},
		{[]string{"A"}, 5, 1},
		{[]string{"A", "B"}, 0, 1},
	}
	for _, c := range cases {
		groups := partition(c.symbols, c.size)
		if len(groups) != c.want {
			t.Fatalf("partition(%v, %d): expected %d groups, got %d", c.symbols, c.size, c.want, len(groups))
		}
		total := 0
		for _, g := range groups {
			total += len(g)
		}
		if total != len(c.symbols) {
			t.Fatalf("partition(%v, %d) lost symbols", c.symbols, c.size)
		}
	}
}
