package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	domsvc "TrendSentry/internal/domain/service"
	"TrendSentry/pkg/logger"
)

// CandidateGate applies the coordinator-side acceptance path to a new
// candidate: cooldown, scoring, persistence, notification. A nil signal
// with nil error means the candidate was rejected by a gate.
type CandidateGate interface {
	Accept(ctx context.Context, c *models.Candidate) (*models.Signal, error)
}

// ManagerConfig tunes partitioning, supervision and health checking.
type ManagerConfig struct {
	Symbols          []string
	GroupSize        int
	StaggerDelay     time.Duration
	AnalysisInterval time.Duration
	MonitorInterval  time.Duration
	RestartBudget    int
	RestartBackoff   time.Duration
	HealthInterval   time.Duration
}

func DefaultManagerConfig(symbols []string) ManagerConfig {
	return ManagerConfig{
		Symbols:          symbols,
		GroupSize:        5,
		StaggerDelay:     2 * time.Second,
		AnalysisInterval: time.Minute,
		MonitorInterval:  30 * time.Second,
		RestartBudget:    3,
		RestartBackoff:   5 * time.Second,
		HealthInterval:   30 * time.Second,
	}
}

// WorkerStatus is one worker's supervision snapshot.
type WorkerStatus struct {
	ID            string     `json:"id"`
	Kind          WorkerKind `json:"kind"`
	Symbols       []string   `json:"symbols,omitempty"`
	Restarts      int        `json:"restarts"`
	Stale         bool       `json:"stale"`
	Removed       bool       `json:"removed"`
	LastHeartbeat time.Time  `json:"last_heartbeat"`
}

// PoolStatus is the read-only view served by the status query.
type PoolStatus struct {
	Analyzers int            `json:"analyzers"`
	Monitors  int            `json:"monitors"`
	Degraded  bool           `json:"degraded"`
	Workers   []WorkerStatus `json:"workers"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type workerRecord struct {
	worker        *Worker
	kind          WorkerKind
	symbols       []string
	restarts      int
	removed       bool
	lastHeartbeat time.Time
}

type workerExit struct {
	id  string
	err error
}

// Manager owns the full worker lifecycle and is the single consumer of
// worker output. All inbound messages are handled one at a time on the
// manager's loop goroutine, which serialises access to the cooldown gate,
// restart counters and notification dispatch without locks.
type Manager struct {
	cfg      ManagerConfig
	gate     CandidateGate
	notifier domsvc.Notifier
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	log      *logger.Logger

	newAnalyzerTask func(symbols []string) Task
	newMonitorTask  func() Task

	msgCh  chan Message
	exitCh chan workerExit
	drainq chan chan struct{}
	stopCh chan struct{}

	workers  map[string]*workerRecord
	draining atomic.Bool
	status   atomic.Pointer[PoolStatus]

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	loopDone  chan struct{}
	stopOnce  sync.Once
}

func NewManager(cfg ManagerConfig, gate CandidateGate, notifier domsvc.Notifier, events domrepo.EventPublisher, metrics domrepo.Metrics, log *logger.Logger,
	newAnalyzerTask func(symbols []string) Task, newMonitorTask func() Task) *Manager {
	m := &Manager{
		cfg:             cfg,
		gate:            gate,
		notifier:        notifier,
		events:          events,
		metrics:         metrics,
		log:             log,
		newAnalyzerTask: newAnalyzerTask,
		newMonitorTask:  newMonitorTask,
		msgCh:           make(chan Message, 256),
		exitCh:          make(chan workerExit, 16),
		drainq:          make(chan chan struct{}, 1),
		stopCh:          make(chan struct{}),
		workers:         make(map[string]*workerRecord),
		loopDone:        make(chan struct{}),
	}
	m.status.Store(&PoolStatus{UpdatedAt: time.Now()})
	return m
}

// Initialize partitions the instrument universe into fixed-size disjoint
// groups, spawns one analyzer per group with staggered start delays, then
// the single monitor. It returns once all spawns are issued; worker
// readiness is observed later via WORKER_READY messages.
func (m *Manager) Initialize(ctx context.Context) error {
	if len(m.cfg.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}

	m.runCtx, m.runCancel = context.WithCancel(ctx)

	groups := partition(m.cfg.Symbols, m.cfg.GroupSize)
	for i, group := range groups {
		id := fmt.Sprintf("analyzer-%d", i+1)
		w := NewWorker(id, WorkerAnalyzer, group, m.cfg.AnalysisInterval,
			time.Duration(i)*m.cfg.StaggerDelay, m.newAnalyzerTask(group), m.msgCh, m.log, m.metrics)
		m.workers[id] = &workerRecord{worker: w, kind: WorkerAnalyzer, symbols: group, lastHeartbeat: time.Now()}
		m.launch(w)
	}

	mw := NewWorker("monitor-1", WorkerMonitor, nil, m.cfg.MonitorInterval, 0,
		m.newMonitorTask(), m.msgCh, m.log, m.metrics)
	m.workers["monitor-1"] = &workerRecord{worker: mw, kind: WorkerMonitor, lastHeartbeat: time.Now()}
	m.launch(mw)

	m.publishStatus()
	go m.loop()

	m.log.Info("worker pool initialized",
		logger.Int("analyzers", len(groups)),
		logger.Int("symbols", len(m.cfg.Symbols)))
	return nil
}

func (m *Manager) launch(w *Worker) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := w.Run(m.runCtx)
		select {
		case m.exitCh <- workerExit{id: w.ID(), err: err}:
		case <-m.stopCh:
		}
	}()
}

// loop is the coordinator's single message-processing goroutine.
func (m *Manager) loop() {
	defer close(m.loopDone)

	health := time.NewTicker(m.cfg.HealthInterval)
	defer health.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case msg := <-m.msgCh:
			m.handleMessage(msg)
		case ex := <-m.exitCh:
			m.handleExit(ex)
		case <-health.C:
			if !m.draining.Load() {
				m.checkHealth()
			}
		case done := <-m.drainq:
			for _, rec := range m.workers {
				if !rec.removed {
					rec.worker.Control(Command{Kind: CmdShutdown, At: time.Now()})
				}
			}
			close(done)
		}
	}
}

func (m *Manager) handleMessage(msg Message) {
	// Heartbeat is implicit in all traffic.
	if rec, ok := m.workers[msg.WorkerID]; ok {
		rec.lastHeartbeat = msg.At
	}

	ctx := m.runCtx

	switch msg.Kind {
	case KindNewSignal:
		p, ok := msg.Payload.(NewSignalPayload)
		if !ok || p.Candidate == nil {
			m.log.Warn("malformed new-signal payload", logger.String("worker", msg.WorkerID))
			return
		}
		sig, err := m.gate.Accept(ctx, p.Candidate)
		if err != nil {
			m.log.Error("candidate rejected with error",
				logger.String("symbol", p.Candidate.Symbol), logger.Error(err))
			return
		}
		if sig != nil {
			m.log.Info("signal created",
				logger.String("id", sig.ID),
				logger.String("symbol", sig.Symbol),
				logger.String("tier", string(sig.Tier)))
		}

	case KindNotifyForward:
		p, ok := msg.Payload.(NotifyForwardPayload)
		if !ok {
			m.log.Warn("malformed notify-forward payload", logger.String("worker", msg.WorkerID))
			return
		}
		switch {
		case p.Transition != nil:
			if err := m.notifier.NotifyTransition(ctx, p.Transition); err != nil {
				m.log.Error("transition notify failed", logger.Error(err))
				m.metrics.RecordError("notify_transition")
			}
		case p.Digest != nil:
			if err := m.notifier.NotifyDigest(ctx, p.Digest); err != nil {
				m.log.Error("digest notify failed", logger.Error(err))
				m.metrics.RecordError("notify_digest")
			}
		}

	case KindRiskWarning:
		p, ok := msg.Payload.(RiskWarningPayload)
		if !ok || p.Warning == nil {
			return
		}
		if err := m.notifier.NotifyRiskWarning(ctx, p.Warning); err != nil {
			m.log.Error("risk warning notify failed", logger.Error(err))
			m.metrics.RecordError("notify_warning")
		}

	case KindWorkerReady:
		m.log.Info("worker ready", logger.String("worker", msg.WorkerID))
		m.publishStatus()

	case KindWorkerError:
		if p, ok := msg.Payload.(WorkerErrorPayload); ok {
			m.metrics.RecordError("worker_cycle")
			m.log.Warn("worker reported error",
				logger.String("worker", msg.WorkerID),
				logger.String("symbol", p.Symbol),
				logger.String("err", p.Err))
		}

	case KindMonitoringStatus:
		if p, ok := msg.Payload.(MonitoringStatusPayload); ok {
			m.log.Debug("monitoring status",
				logger.Int("open", p.OpenSignals),
				logger.Int("transitions", p.Transitions),
				logger.Int("warnings", p.Warnings))
		}

	case KindHeartbeat:
		// Bookkeeping done above.

	default:
		// Forward compatibility: never crash on an unknown kind.
		m.log.Warn("unrecognized message kind",
			logger.String("kind", string(msg.Kind)),
			logger.String("worker", msg.WorkerID))
	}
}

// handleExit applies the restart policy. Clean exits during a drain are
// expected; an abnormal exit outside a drain consumes restart budget and
// respawns the same assignment after a backoff. Budget exhaustion removes
// the assignment from the pool, leaving a reported degraded state.
func (m *Manager) handleExit(ex workerExit) {
	rec, ok := m.workers[ex.id]
	if !ok {
		return
	}

	if m.draining.Load() {
		return
	}

	if ex.err == nil {
		// Clean exit with no shutdown in progress: unexpected but not a
		// crash. Leave the record in place for the status view.
		m.log.Warn("worker exited cleanly outside shutdown", logger.String("worker", ex.id))
		rec.removed = true
		m.publishStatus()
		return
	}

	m.metrics.RecordWorkerRestart(ex.id)
	rec.restarts++
	m.log.Error("worker crashed",
		logger.String("worker", ex.id),
		logger.Int("restarts", rec.restarts),
		logger.Error(ex.err))

	if rec.restarts > m.cfg.RestartBudget {
		rec.removed = true
		m.log.Error("restart budget exhausted, assignment removed",
			logger.String("worker", ex.id),
			logger.Strings("symbols", rec.symbols))
		m.metrics.RecordError("worker_removed")
		m.publishStatus()
		return
	}

	// Same assignment, fresh health bookkeeping, cumulative restart count.
	var task Task
	if rec.kind == WorkerAnalyzer {
		task = m.newAnalyzerTask(rec.symbols)
	} else {
		task = m.newMonitorTask()
	}
	interval := m.cfg.AnalysisInterval
	if rec.kind == WorkerMonitor {
		interval = m.cfg.MonitorInterval
	}
	w := NewWorker(ex.id, rec.kind, rec.symbols, interval, m.cfg.RestartBackoff, task, m.msgCh, m.log, m.metrics)
	rec.worker = w
	rec.lastHeartbeat = time.Now()
	m.publishStatus()
	m.launch(w)
}

// checkHealth flags workers whose last heartbeat is older than twice the
// check interval. Staleness is reported, never acted on: only an abnormal
// exit triggers a restart, so a worker blocked on a long external call is
// not killed mid-flight.
func (m *Manager) checkHealth() {
	threshold := 2 * m.cfg.HealthInterval
	for id, rec := range m.workers {
		if rec.removed {
			continue
		}
		age := time.Since(rec.lastHeartbeat)
		if age > threshold {
			m.log.Warn("worker heartbeat stale",
				logger.String("worker", id),
				logger.Duration("age", age))
			m.metrics.RecordError("worker_stale")
			rec.worker.Control(Command{Kind: CmdHealthCheck, At: time.Now()})
		}
	}
	m.publishStatus()
}

// publishStatus refreshes the lock-free snapshot served by Status.
func (m *Manager) publishStatus() {
	threshold := 2 * m.cfg.HealthInterval
	st := &PoolStatus{UpdatedAt: time.Now()}
	for id, rec := range m.workers {
		ws := WorkerStatus{
			ID:            id,
			Kind:          rec.kind,
			Symbols:       rec.symbols,
			Restarts:      rec.restarts,
			Removed:       rec.removed,
			Stale:         time.Since(rec.lastHeartbeat) > threshold,
			LastHeartbeat: rec.lastHeartbeat,
		}
		st.Workers = append(st.Workers, ws)
		if rec.removed {
			st.Degraded = true
			continue
		}
		if rec.kind == WorkerAnalyzer {
			st.Analyzers++
		} else {
			st.Monitors++
		}
	}
	m.status.Store(st)
}

// Status returns the current pool snapshot. Read-only and non-blocking.
func (m *Manager) Status() *PoolStatus {
	return m.status.Load()
}

// Shutdown drains the pool: restarts are suppressed, every worker gets a
// termination request honoured at its next safe point, and the call
// returns when all workers have exited or ctx expires. Idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		m.draining.Store(true)

		done := make(chan struct{})
		select {
		case m.drainq <- done:
			select {
			case <-done:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}

		finished := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-ctx.Done():
			// Force-cancel stragglers past their grace period.
			m.runCancel()
			<-finished
			err = ctx.Err()
		}

		m.runCancel()
		close(m.stopCh)
		<-m.loopDone
		m.log.Info("worker pool stopped")
	})
	return err
}

// partition splits symbols into disjoint groups of at most size each.
func partition(symbols []string, size int) [][]string {
	if size <= 0 {
		size = len(symbols)
	}
	var out [][]string
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[start:end])
	}
	return out
}
