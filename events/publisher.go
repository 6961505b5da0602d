package events

import (
	"context"
	"errors"

	"fulfillment-service/models"
)

// OrderEventPublisher announces committed orders to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, evt models.OrderCreatedEvent) error
}

// MultiPublisher publishes to every configured sink and joins their errors.
type MultiPublisher []OrderEventPublisher

func (m MultiPublisher) PublishOrderCreated(ctx context.Context, evt models.OrderCreatedEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishOrderCreated(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NopPublisher is used when no sink is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, models.OrderCreatedEvent) error { return nil }
