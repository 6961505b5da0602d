package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
)

// SNSOrderPublisher publishes order events to an SNS topic with an
// event_type attribute for subscription filtering.
type SNSOrderPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
	log      *zap.Logger
}

func NewSNSOrderPublisher(client aws_pkg.SNSPublisher, topicArn string, log *zap.Logger) *SNSOrderPublisher {
	return &SNSOrderPublisher{client: client, topicArn: topicArn, log: log}
}

func (p *SNSOrderPublisher) PublishOrderCreated(ctx context.Context, evt models.OrderCreatedEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	if err := p.client.Publish(ctx, p.topicArn, data, map[string]string{"event_type": evt.Event}); err != nil {
		return err
	}

	p.log.Debug("order event published to sns",
		zap.String("order_number", evt.OrderNumber),
		zap.String("topic", p.topicArn),
	)
	return nil
}
