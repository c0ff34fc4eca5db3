package repository

import (
	"context"

	"TrendSentry/internal/domain/models"
	"TrendSentry/internal/domain/repository"
	pkgkafka "TrendSentry/pkg/kafka"
)

// KafkaEventPublisher emits signal lifecycle events keyed by symbol so a
// partition preserves per-instrument ordering.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishSignalCreated(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Symbol), map[string]interface{}{
		"event":        "signal_created",
		"id":           s.ID,
		"symbol":       s.Symbol,
		"direction":    string(s.Direction),
		"tier":         string(s.Tier),
		"entry":        s.Entry,
		"stop_loss":    s.StopLoss,
		"take_profit":  s.TakeProfit,
		"take_profit2": s.TakeProfit2,
		"score":        s.Score,
		"created_at":   s.CreatedAt.UnixMilli(),
	})
}

func (p *KafkaEventPublisher) PublishTransition(ctx context.Context, t *models.Transition) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.Symbol), map[string]interface{}{
		"event":       "signal_transition",
		"id":          t.SignalID,
		"symbol":      t.Symbol,
		"from":        string(t.From),
		"to":          string(t.To),
		"exit_price":  t.ExitPrice,
		"exit_reason": t.ExitReason,
		"pnl_percent": t.PnLPercent,
		"at":          t.At.UnixMilli(),
	})
}

// PublishMessage satisfies the logger collector's sink interface so
// aggregated error logs can ride the same broker.
func (p *KafkaEventPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
