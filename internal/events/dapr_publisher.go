package events

import (
	"context"
	"fmt"

	dapr "github.com/dapr/go-sdk/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/models"
)

// daprClient is the slice of dapr.Client the publisher needs.
type daprClient interface {
	PublishEvent(ctx context.Context, pubsubName, topicName string, data interface{}, opts ...dapr.PublishEventOption) error
	Close()
}

type DaprPublisher struct {
	client     daprClient
	tracer     trace.Tracer
	pubsubName string
	topic      string
}

func NewDaprPublisher(client daprClient, pubsubName, topic string) *DaprPublisher {
	return &DaprPublisher{
		client:     client,
		tracer:     otel.Tracer("dapr.publisher"),
		pubsubName: pubsubName,
		topic:      topic,
	}
}

func (p *DaprPublisher) PublishSubscriberCreated(ctx context.Context, subscriber *models.Subscriber) error {
	ctx, span := p.tracer.Start(ctx, "subscriber.events.publish",
		trace.WithAttributes(
			attribute.Int64("subscriber.id", subscriber.ID),
			attribute.String("operation", "events.publish"),
			attribute.String("dapr.pubsub", p.pubsubName),
			attribute.String("dapr.topic", p.topic),
		))
	defer span.End()

	err := p.client.PublishEvent(ctx, p.pubsubName, p.topic, NewSubscriberCreated(subscriber),
		dapr.PublishEventWithContentType("application/json"))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish to dapr pubsub %s: %w", p.pubsubName, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (p *DaprPublisher) Close() error {
	p.client.Close()
	return nil
}
