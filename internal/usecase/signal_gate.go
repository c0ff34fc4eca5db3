package usecase

import (
	"context"
	"fmt"
	"time"

	"TrendSentry/internal/domain/models"
	domrepo "TrendSentry/internal/domain/repository"
	domsvc "TrendSentry/internal/domain/service"
	"TrendSentry/pkg/logger"
)

const neutralScore = 50

// SignalGateConfig tunes coordinator-side acceptance.
type SignalGateConfig struct {
	Cooldown       time.Duration
	ScoreThreshold float64
}

func DefaultSignalGateConfig() SignalGateConfig {
	return SignalGateConfig{
		Cooldown:       4 * time.Hour,
		ScoreThreshold: 55,
	}
}

// SignalGate turns accepted candidates into durable signals. It enforces
// the per-symbol cooldown, applies scoring with a neutral fallback, and
// performs the persist-then-notify sequence. Accept is invoked only from
// the coordinator's message loop, which is what makes the in-memory
// cooldown map safe without a lock.
type SignalGate struct {
	store    domrepo.SignalStore
	scorer   domsvc.Scorer
	notifier domsvc.Notifier
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	cfg      SignalGateConfig
	log      *logger.Logger

	lastAccepted map[string]time.Time
	now          func() time.Time
}

func NewSignalGate(store domrepo.SignalStore, scorer domsvc.Scorer, notifier domsvc.Notifier,
	events domrepo.EventPublisher, metrics domrepo.Metrics, cfg SignalGateConfig, log *logger.Logger) *SignalGate {
	return &SignalGate{
		store:        store,
		scorer:       scorer,
		notifier:     notifier,
		events:       events,
		metrics:      metrics,
		cfg:          cfg,
		log:          log,
		lastAccepted: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Accept runs the full gate. A (nil, nil) return means the candidate was
// dropped by a gate, which is the common case and not an error.
func (g *SignalGate) Accept(ctx context.Context, c *models.Candidate) (*models.Signal, error) {
	now := g.now()

	if !g.cooldownClear(ctx, c.Symbol, now) {
		g.log.Debug("candidate suppressed by cooldown", logger.String("symbol", c.Symbol))
		g.metrics.RecordError("gate_cooldown")
		return nil, nil
	}

	score, rationale, err := g.scorer.Score(ctx, c)
	if err != nil {
		// Scoring must never block creation.
		g.log.Warn("scorer unavailable, using neutral score",
			logger.String("symbol", c.Symbol), logger.Error(err))
		g.metrics.RecordError("scorer")
		score, rationale = neutralScore, "score provider unavailable"
	}
	if score < g.cfg.ScoreThreshold {
		g.log.Debug("candidate below score threshold",
			logger.String("symbol", c.Symbol), logger.Any("score", score))
		g.metrics.RecordError("gate_score")
		return nil, nil
	}

	sig := &models.Signal{
		ID:          fmt.Sprintf("%s-%d", c.Symbol, now.UnixMilli()),
		Symbol:      c.Symbol,
		Direction:   c.Direction,
		Tier:        c.Tier,
		Entry:       c.Entry,
		StopLoss:    c.StopLoss,
		TakeProfit:  c.TakeProfit,
		TakeProfit2: c.TakeProfit2,
		Score:       score,
		Rationale:   rationale,
		Status:      models.StatusOpen,
		CreatedAt:   now,
		Context:     c.Context,
	}
	if !sig.LevelsValid() {
		g.metrics.RecordError("gate_levels")
		return nil, fmt.Errorf("signal %s has inconsistent levels: entry=%.8f sl=%.8f tp=%.8f",
			sig.ID, sig.Entry, sig.StopLoss, sig.TakeProfit)
	}

	if err := g.store.Insert(ctx, sig); err != nil {
		// Cooldown is not marked: the candidate may be retried next cycle.
		return nil, fmt.Errorf("persist signal %s: %w", sig.ID, err)
	}
	g.lastAccepted[c.Symbol] = now
	g.metrics.RecordSignalCreated(sig.Symbol, string(sig.Tier))

	if err := g.events.PublishSignalCreated(ctx, sig); err != nil {
		g.log.Warn("signal event publish failed", logger.String("id", sig.ID), logger.Error(err))
		g.metrics.RecordError("publish_signal")
	}
	if err := g.notifier.NotifySignal(ctx, sig); err != nil {
		g.log.Warn("signal notify failed", logger.String("id", sig.ID), logger.Error(err))
		g.metrics.RecordError("notify_signal")
	}
	return sig, nil
}

// cooldownClear consults the in-memory map first, then corroborates
// against the store so a restart does not forget recent signals.
func (g *SignalGate) cooldownClear(ctx context.Context, symbol string, now time.Time) bool {
	if last, ok := g.lastAccepted[symbol]; ok {
		if now.Sub(last) < g.cfg.Cooldown {
			return false
		}
		delete(g.lastAccepted, symbol)
		return true
	}

	latest, err := g.store.LatestBySymbol(ctx, symbol)
	if err != nil {
		g.log.Warn("cooldown lookup failed, allowing candidate",
			logger.String("symbol", symbol), logger.Error(err))
		return true
	}
	if latest != nil && now.Sub(latest.CreatedAt) < g.cfg.Cooldown {
		g.lastAccepted[symbol] = latest.CreatedAt
		return false
	}
	return true
}
