package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/models"
)

// SubscriberRepository is the subscriber table. Create reports a duplicate
// address as models.ErrAlreadySubscribed; List returns newest first.
type SubscriberRepository interface {
	Create(ctx context.Context, email string) (*models.Subscriber, error)
	List(ctx context.Context) ([]*models.Subscriber, error)
	Close() error
}

type InMemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers []*models.Subscriber
	byEmail     map[string]struct{}
	nextID      int64
	now         func() time.Time
	tracer      trace.Tracer
}

func NewInMemorySubscriberRepository() *InMemorySubscriberRepository {
	return &InMemorySubscriberRepository{
		byEmail: make(map[string]struct{}),
		nextID:  1,
		now:     time.Now,
		tracer:  otel.Tracer("subscriber-repository"),
	}
}

func (r *InMemorySubscriberRepository) Create(ctx context.Context, email string) (*models.Subscriber, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.email", email),
			attribute.String("operation", "database.write"),
			attribute.String("db.system", "memory"),
		))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		span.RecordError(models.ErrAlreadySubscribed)
		return nil, models.ErrAlreadySubscribed
	}

	subscriber := &models.Subscriber{
		ID:        r.nextID,
		Email:     email,
		CreatedAt: r.now().UTC(),
	}
	r.nextID++
	r.subscribers = append(r.subscribers, subscriber)
	r.byEmail[email] = struct{}{}

	span.SetAttributes(
		attribute.Int64("subscriber.id", subscriber.ID),
		attribute.Bool("success", true),
	)
	return subscriber, nil
}

func (r *InMemorySubscriberRepository) List(ctx context.Context) ([]*models.Subscriber, error) {
	_, span := r.tracer.Start(ctx, "subscriber.repository.list",
		trace.WithAttributes(
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "memory"),
		))
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	subscribers := make([]*models.Subscriber, len(r.subscribers))
	copy(subscribers, r.subscribers)
	sortNewestFirst(subscribers)

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}

func (r *InMemorySubscriberRepository) Close() error {
	return nil
}

// sortNewestFirst mirrors ORDER BY created_at DESC, id DESC.
func sortNewestFirst(subscribers []*models.Subscriber) {
	sort.SliceStable(subscribers, func(i, j int) bool {
		a, b := subscribers[i], subscribers[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
