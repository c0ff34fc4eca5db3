package engine

import (
	"context"
	"time"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	"TrendSentry/pkg/logger"
)

// PriceSource serves the monitor's current-price lookups from the live
// stream table.
type PriceSource interface {
	Last(symbol string) (float64, bool)
}

// MonitorConfig fixes the risk thresholds and the session boundary.
type MonitorConfig struct {
	WarnRiskFraction float64       // warn when price travelled this far toward the stop
	WarnLossPct      float64       // or when unrealized loss exceeds this percentage
	ExitLossPct      float64       // hard ceiling: force EARLY_EXIT beyond this loss
	WarnCooldown     time.Duration // one warning per symbol per window
	EODHour          int           // UTC hour of the daily force-close
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		WarnRiskFraction: 0.7,
		WarnLossPct:      3.0,
		ExitLossPct:      6.0,
		WarnCooldown:     15 * time.Minute,
		EODHour:          0,
	}
}

// Monitor scans open signals for exit conditions each tick, applies the
// resulting transition atomically with its realized P&L, and forwards the
// event upward for notification. It is the only writer of signal status.
type Monitor struct {
	store   domrepo.SignalStore
	prices  PriceSource
	market  domrepo.MarketData
	events  domrepo.EventPublisher
	metrics domrepo.Metrics
	cfg     MonitorConfig
	log     *logger.Logger

	warned  map[string]time.Time
	nextEOD time.Time
	now     func() time.Time
}

func NewMonitor(store domrepo.SignalStore, prices PriceSource, market domrepo.MarketData, events domrepo.EventPublisher, metrics domrepo.Metrics, cfg MonitorConfig, log *logger.Logger) *Monitor {
	m := &Monitor{
		store:   store,
		prices:  prices,
		market:  market,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		log:     log,
		warned:  make(map[string]time.Time),
		now:     time.Now,
	}
	m.nextEOD = nextBoundary(m.now().UTC(), cfg.EODHour)
	return m
}

// RunCycle is one monitoring pass: TP/SL scan, the independent risk scan,
// and the EOD force-close once the session boundary has passed.
func (m *Monitor) RunCycle(ctx context.Context, emit func(Payload)) {
	open, err := m.store.OpenSignals(ctx)
	if err != nil {
		m.log.Error("open signals query failed", logger.Error(err))
		emit(WorkerErrorPayload{Err: err.Error()})
		return
	}

	transitioned := m.scanExits(ctx, open, emit)
	warnings := m.scanRisk(ctx, open, transitioned, emit)

	now := m.now().UTC()
	if !now.Before(m.nextEOD) {
		m.closeSession(ctx, emit)
		m.nextEOD = nextBoundary(now, m.cfg.EODHour)
	}

	emit(MonitoringStatusPayload{OpenSignals: len(open), Transitions: len(transitioned), Warnings: warnings})
}

// scanExits tests each open signal against TP1 -> TP2 -> SL in fixed
// precedence. At most one transition per signal per cycle; a failed
// persist is logged and retried next cycle since the price precondition
// still holds.
func (m *Monitor) scanExits(ctx context.Context, open []*models.Signal, emit func(Payload)) map[string]bool {
	done := make(map[string]bool)
	for _, s := range open {
		price, ok := m.price(ctx, s.Symbol)
		if !ok {
			continue
		}
		m.metrics.RecordLastPrice(s.Symbol, price)

		t := NextTransition(s, price, m.now())
		if t == nil {
			continue
		}
		if err := m.apply(ctx, t); err != nil {
			m.log.Error("transition persist failed, will retry",
				logger.String("signal", s.ID), logger.String("to", string(t.To)), logger.Error(err))
			continue
		}
		done[s.ID] = true
		emit(NotifyForwardPayload{Transition: t})
	}
	return done
}

// scanRisk runs independently over the same open set. Signals that just
// transitioned are skipped; the rest are measured against the warning
// thresholds and, beyond the hard ceiling, force-closed early.
func (m *Monitor) scanRisk(ctx context.Context, open []*models.Signal, transitioned map[string]bool, emit func(Payload)) int {
	warnings := 0
	for _, s := range open {
		if transitioned[s.ID] || s.Status.Terminal() {
			continue
		}
		price, ok := m.price(ctx, s.Symbol)
		if !ok {
			continue
		}

		pnl := s.PnLAt(price)
		frac := RiskFraction(s, price)

		if pnl <= -m.cfg.ExitLossPct {
			t := EarlyExit(s, price, m.now())
			if err := m.apply(ctx, t); err != nil {
				m.log.Error("early exit persist failed, will retry",
					logger.String("signal", s.ID), logger.Error(err))
				continue
			}
			emit(NotifyForwardPayload{Transition: t})
			continue
		}

		if frac < m.cfg.WarnRiskFraction && pnl > -m.cfg.WarnLossPct {
			continue
		}
		if last, ok := m.warned[s.Symbol]; ok && m.now().Sub(last) < m.cfg.WarnCooldown {
			continue
		}
		m.warned[s.Symbol] = m.now()
		warnings++
		emit(RiskWarningPayload{Warning: &models.RiskWarning{
			SignalID:     s.ID,
			Symbol:       s.Symbol,
			Price:        price,
			RiskFraction: frac,
			PnLPercent:   pnl,
			At:           m.now(),
		}})
	}
	return warnings
}

// closeSession force-closes every signal still non-terminal and emits the
// daily digest. Distinct from the exit scan: time-triggered, not
// price-triggered.
func (m *Monitor) closeSession(ctx context.Context, emit func(Payload)) {
	open, err := m.store.OpenSignals(ctx)
	if err != nil {
		m.log.Error("eod query failed", logger.Error(err))
		return
	}

	for _, s := range open {
		price, ok := m.price(ctx, s.Symbol)
		if !ok {
			price = s.Entry
		}
		t := ForceCloseEOD(s, price, m.now())
		if t == nil {
			continue
		}
		if err := m.apply(ctx, t); err != nil {
			m.log.Error("eod close persist failed", logger.String("signal", s.ID), logger.Error(err))
			continue
		}
		emit(NotifyForwardPayload{Transition: t})
	}

	since := m.now().UTC().Add(-24 * time.Hour)
	signals, err := m.store.SignalsSince(ctx, since, 500)
	if err != nil {
		m.log.Error("digest query failed", logger.Error(err))
		return
	}
	emit(NotifyForwardPayload{Digest: BuildDigest(signals, m.now().UTC())})
}

func (m *Monitor) apply(ctx context.Context, t *models.Transition) error {
	if err := m.store.UpdateStatus(ctx, t); err != nil {
		m.metrics.RecordError("transition_persist")
		return err
	}
	m.metrics.RecordTransition(string(t.To))
	if m.events != nil {
		if err := m.events.PublishTransition(ctx, t); err != nil {
			m.log.Warn("transition event publish failed", logger.String("signal", t.SignalID), logger.Error(err))
		}
	}
	return nil
}

// price prefers the streamed table and falls back to a REST lookup when
// the entry is missing or stale.
func (m *Monitor) price(ctx context.Context, symbol string) (float64, bool) {
	if p, ok := m.prices.Last(symbol); ok {
		return p, true
	}
	p, err := m.market.GetPrice(ctx, symbol)
	if err != nil || p <= 0 {
		m.log.Warn("price lookup failed", logger.String("symbol", symbol), logger.Error(err))
		return 0, false
	}
	return p, true
}

// BuildDigest summarises one session's signals for the daily report.
func BuildDigest(signals []*models.Signal, date time.Time) *models.DailyDigest {
	d := &models.DailyDigest{Date: date, Opened: len(signals)}
	for _, s := range signals {
		switch s.Status {
		case models.StatusHitTP1, models.StatusHitTP2:
			d.HitTP++
		case models.StatusHitSL, models.StatusEarlyExit:
			d.HitSL++
		case models.StatusClosedEOD:
			d.ForceClosed++
		}
		if s.Status.Terminal() || s.Status == models.StatusHitTP1 {
			d.NetPnL += s.PnLPercent
		}
	}
	return d
}

// nextBoundary returns the next session close strictly after now.
func nextBoundary(now time.Time, hour int) time.Time {
	b := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !b.After(now) {
		b = b.Add(24 * time.Hour)
	}
	return b
}
