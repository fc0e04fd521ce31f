package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/logging"
	"email-list-worker/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	tracer trace.Tracer
	topic  string
}

// NewKafkaPublisher returns a publisher whose writes are queued and never
// wait on the broker. Delivery failures surface through logger only.
func NewKafkaPublisher(brokers []string, topic string, logger *logging.ContextLogger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 20 * time.Millisecond,
		Compression:  kafka.Snappy,
		Async:        true,
		Completion:   deliveryLogger(logger, topic),
	}
	return newKafkaPublisher(w, topic)
}

func deliveryLogger(logger *logging.ContextLogger, topic string) func([]kafka.Message, error) {
	return func(messages []kafka.Message, err error) {
		if err == nil {
			return
		}
		logger.WithError(err).WithFields(logrus.Fields{
			"topic":    topic,
			"messages": len(messages),
		}).Warn("Failed to deliver subscriber events")
	}
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		tracer: otel.Tracer("kafka.publisher"),
		topic:  topic,
	}
}

func (p *KafkaPublisher) PublishSubscriberCreated(ctx context.Context, subscriber *models.Subscriber) error {
	ctx, span := p.tracer.Start(ctx, "subscriber.events.publish",
		trace.WithAttributes(
			attribute.Int64("subscriber.id", subscriber.ID),
			attribute.String("operation", "events.publish"),
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", p.topic),
		))
	defer span.End()

	payload, err := json.Marshal(NewSubscriberCreated(subscriber))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(subscriber.Email),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(SubscriberCreatedType)},
			{Key: "version", Value: []byte(strconv.Itoa(SubscriberCreatedVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write to kafka topic %s: %w", p.topic, err)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
