package events

import (
	"context"

	"optionvault/internal/adapters/kafka"
	"optionvault/internal/metrics"
	"optionvault/pkg/logger"
)

// Publisher publishes lifecycle events to Kafka
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishMinted publishes a contract minted event
func (p *Publisher) PublishMinted(ctx context.Context, e Minted) error {
	return p.publish(ctx, kafka.TopicOptionMinted, "minted", e.ContractID.String(), e)
}

// PublishTransferred publishes a token transferred event
func (p *Publisher) PublishTransferred(ctx context.Context, e Transferred) error {
	return p.publish(ctx, kafka.TopicOptionTransferred, "transferred", e.ContractID.String(), e)
}

// PublishExercised publishes an exercise event
func (p *Publisher) PublishExercised(ctx context.Context, e Exercised) error {
	return p.publish(ctx, kafka.TopicOptionExercised, "exercised", e.ContractID.String(), e)
}

// PublishCancelled publishes a cancellation event
func (p *Publisher) PublishCancelled(ctx context.Context, e Cancelled) error {
	return p.publish(ctx, kafka.TopicOptionCancelled, "cancelled", e.ContractID.String(), e)
}

// PublishExpired publishes an expiry event
func (p *Publisher) PublishExpired(ctx context.Context, e Expired) error {
	return p.publish(ctx, kafka.TopicOptionExpired, "expired", e.ContractID.String(), e)
}

func (p *Publisher) publish(ctx context.Context, topic, event, key string, payload interface{}) error {
	err := p.producer.Publish(ctx, topic, key, payload)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EventsPublished.WithLabelValues(event, status).Inc()
	return err
}
