package repository

import (
	"context"

	"TrendSentry/internal/domain/models"
	"TrendSentry/internal/domain/repository"
)

// NoopEventPublisher is used when no broker is configured.
type NoopEventPublisher struct{}

func NewNoopEventPublisher() repository.EventPublisher { return NoopEventPublisher{} }

func (NoopEventPublisher) PublishSignalCreated(context.Context, *models.Signal) error { return nil }
func (NoopEventPublisher) PublishTransition(context.Context, *models.Transition) error {
	return nil
}
func (NoopEventPublisher) Close() error { return nil }
