package service

import (
	"context"

	"TrendSentry/internal/domain/models"
)

// Scorer rates a candidate opportunity 0-100 with a rationale. An erroring
// provider must degrade to a fixed neutral score, never block creation.
type Scorer interface {
	Score(ctx context.Context, c *models.Candidate) (float64, string, error)
}

// Notifier pushes formatted text for the four outbound event categories.
type Notifier interface {
	NotifySignal(ctx context.Context, s *models.Signal) error
	NotifyTransition(ctx context.Context, t *models.Transition) error
	NotifyRiskWarning(ctx context.Context, w *models.RiskWarning) error
	NotifyDigest(ctx context.Context, d *models.DailyDigest) error
}
