package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/events"
	"email-list-worker/internal/logging"
	"email-list-worker/internal/metrics"
	"email-list-worker/internal/models"
	"email-list-worker/internal/repository"
)

// DefaultPublishTimeout bounds how long a subscribe request waits on the
// event publisher.
const DefaultPublishTimeout = 2 * time.Second

type SubscriberService struct {
	repo           repository.SubscriberRepository
	publisher      events.Publisher
	metrics        *metrics.Metrics
	logger         *logging.ContextLogger
	tracer         trace.Tracer
	publishTimeout time.Duration
}

func NewSubscriberService(repo repository.SubscriberRepository, publisher events.Publisher, m *metrics.Metrics, logger *logging.ContextLogger) *SubscriberService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &SubscriberService{
		repo:           repo,
		publisher:      publisher,
		metrics:        m,
		logger:         logger,
		tracer:         otel.Tracer("subscriber-service"),
		publishTimeout: DefaultPublishTimeout,
	}
}

// Subscribe stores email. It returns models.ErrInvalidEmail for an address
// without "@", models.ErrAlreadySubscribed when the store already holds it,
// and the wrapped store error otherwise.
func (s *SubscriberService) Subscribe(ctx context.Context, email string) (*models.Subscriber, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.subscribe",
		trace.WithAttributes(attribute.String("subscriber.email", email)))
	defer span.End()

	if err := models.ValidateEmail(email); err != nil {
		s.metrics.ObserveSubscribe(metrics.OutcomeInvalid)
		span.RecordError(err)
		return nil, err
	}

	subscriber, err := s.repo.Create(ctx, email)
	switch {
	case errors.Is(err, models.ErrAlreadySubscribed):
		s.metrics.ObserveSubscribe(metrics.OutcomeDuplicate)
		s.logger.InfoWithTracing(ctx, "Email already subscribed", logrus.Fields{
			"email": email,
		})
		span.SetAttributes(attribute.Bool("duplicate", true))
		return nil, err
	case err != nil:
		s.metrics.ObserveSubscribe(metrics.OutcomeError)
		s.logger.ErrorWithTracing(ctx, "Failed to save subscriber", err, logrus.Fields{
			"email": email,
		})
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveSubscribe(metrics.OutcomeSubscribed)

	s.publish(ctx, subscriber)

	s.logger.InfoWithTracing(ctx, "Subscriber stored", logrus.Fields{
		"subscriber_id": subscriber.ID,
		"email":         subscriber.Email,
	})

	span.SetAttributes(
		attribute.Int64("subscriber.id", subscriber.ID),
		attribute.Bool("success", true),
	)
	return subscriber, nil
}

// publish is best effort. The row is already stored, so a slow or failing
// publisher only costs a warning.
func (s *SubscriberService) publish(ctx context.Context, subscriber *models.Subscriber) {
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishSubscriberCreated(ctx, subscriber); err != nil {
		s.logger.WarnWithTracing(ctx, "Failed to publish subscriber event", err, logrus.Fields{
			"subscriber_id": subscriber.ID,
		})
	}
}

// RecordInvalidEmail accounts for an address rejected before it reached
// Subscribe, e.g. by request binding.
func (s *SubscriberService) RecordInvalidEmail(ctx context.Context, email string) {
	s.metrics.ObserveSubscribe(metrics.OutcomeInvalid)
	s.logger.DebugWithTracing(ctx, "Rejected email", logrus.Fields{
		"email": email,
	})
}

// ListSubscribers returns every stored subscriber, newest first.
func (s *SubscriberService) ListSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	ctx, span := s.tracer.Start(ctx, "subscriber.service.list")
	defer span.End()

	subscribers, err := s.repo.List(ctx)
	if err != nil {
		s.metrics.ObserveList(metrics.OutcomeError)
		s.logger.ErrorWithTracing(ctx, "Failed to list subscribers", err, nil)
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveList(metrics.OutcomeOK)
	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}
