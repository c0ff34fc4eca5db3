package repository

import (
	"context"
	"time"

	"TrendSentry/internal/domain/models"
)

// MarketData provides historical candles and spot prices for analysis.
type MarketData interface {
	GetCandles(ctx context.Context, symbol string, tf Timeframe, limit int) (models.Series, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// PriceStream pushes live last-price updates for the monitor's open set.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan *models.Tick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalStore is the durable signal collection. A duplicate insert inside a
// cooldown window is prevented by the caller via LatestBySymbol, not by the
// store itself; the store only guarantees the insert is durable.
type SignalStore interface {
	Init(ctx context.Context) error
	Insert(ctx context.Context, s *models.Signal) error
	UpdateStatus(ctx context.Context, t *models.Transition) error
	OpenSignals(ctx context.Context) ([]*models.Signal, error)
	Query(ctx context.Context, symbol string, status models.SignalStatus, limit int) ([]*models.Signal, error)
	SignalsSince(ctx context.Context, since time.Time, limit int) ([]*models.Signal, error)
	LatestBySymbol(ctx context.Context, symbol string) (*models.Signal, error)
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher emits signal lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishSignalCreated(ctx context.Context, s *models.Signal) error
	PublishTransition(ctx context.Context, t *models.Transition) error
	Close() error
}

type Metrics interface {
	RecordSignalCreated(symbol, tier string)
	RecordTransition(status string)
	RecordWorkerRestart(workerID string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordCycleDuration(workerID string, seconds float64)
}
