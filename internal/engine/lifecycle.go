package engine

import (
	"time"

	"TrendSentry/internal/domain/models"
)

// NextTransition evaluates one open signal against the current price and
// returns the single transition it produces this cycle, or nil when no
// level was crossed. Precedence is fixed: TP1 (when two targets exist and
// TP1 has not been hit) -> final target -> stop-loss. A signal already in
// a terminal state never transitions again.
func NextTransition(s *models.Signal, price float64, now time.Time) *models.Transition {
	if s == nil || s.Status.Terminal() || price <= 0 {
		return nil
	}

	reached := func(level float64) bool {
		if s.Direction == models.Long {
			return price >= level
		}
		return price <= level
	}
	stopped := func() bool {
		if s.Direction == models.Long {
			return price <= s.StopLoss
		}
		return price >= s.StopLoss
	}

	// First partial target, only meaningful with two targets.
	if s.Status == models.StatusOpen && s.TakeProfit2 != 0 && reached(s.TakeProfit) {
		return transition(s, models.StatusHitTP1, price, "take-profit 1 reached", now)
	}

	// Final target: TP2 when two targets exist, otherwise the single TP.
	final := s.TakeProfit
	if s.TakeProfit2 != 0 {
		final = s.TakeProfit2
	}
	if reached(final) {
		return transition(s, models.StatusHitTP2, price, "take-profit reached", now)
	}

	if stopped() {
		return transition(s, models.StatusHitSL, price, "stop-loss hit", now)
	}

	return nil
}

// EarlyExit builds the terminal transition applied when adverse excursion
// breaches the hard ceiling. Callers decide the policy; this only shapes
// the record.
func EarlyExit(s *models.Signal, price float64, now time.Time) *models.Transition {
	if s == nil || s.Status.Terminal() {
		return nil
	}
	return transition(s, models.StatusEarlyExit, price, "adverse excursion ceiling", now)
}

// ForceCloseEOD marks a non-terminal signal closed at the session boundary.
// Time-triggered; never applied to signals already terminal.
func ForceCloseEOD(s *models.Signal, price float64, now time.Time) *models.Transition {
	if s == nil || s.Status.Terminal() {
		return nil
	}
	return transition(s, models.StatusClosedEOD, price, "end of session", now)
}

func transition(s *models.Signal, to models.SignalStatus, price float64, reason string, now time.Time) *models.Transition {
	return &models.Transition{
		SignalID:   s.ID,
		Symbol:     s.Symbol,
		From:       s.Status,
		To:         to,
		ExitPrice:  price,
		ExitReason: reason,
		PnLPercent: s.PnLAt(price),
		At:         now,
	}
}

// RiskFraction reports how far price has travelled from entry toward the
// stop, as a fraction of the total risk distance. Zero when price is on
// the profitable side of entry.
func RiskFraction(s *models.Signal, price float64) float64 {
	dist := s.Entry - s.StopLoss
	if s.Direction == models.Short {
		dist = s.StopLoss - s.Entry
	}
	if dist <= 0 {
		return 0
	}
	adverse := s.Entry - price
	if s.Direction == models.Short {
		adverse = price - s.Entry
	}
	if adverse <= 0 {
		return 0
	}
	return adverse / dist
}
