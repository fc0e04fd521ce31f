package events

import (
	"context"
	"time"

	"email-list-worker/internal/models"
)

const (
	SubscriberCreatedType    = "subscriber.created"
	SubscriberCreatedVersion = 1
)

type SubscriberCreated struct {
	Event   string    `json:"event"`
	Version int       `json:"version"`
	ID      int64     `json:"id"`
	Email   string    `json:"email"`
	TS      time.Time `json:"ts"`
}

func NewSubscriberCreated(subscriber *models.Subscriber) SubscriberCreated {
	return SubscriberCreated{
		Event:   SubscriberCreatedType,
		Version: SubscriberCreatedVersion,
		ID:      subscriber.ID,
		Email:   subscriber.Email,
		TS:      subscriber.CreatedAt.UTC(),
	}
}

// Publisher announces new subscribers to downstream consumers.
type Publisher interface {
	PublishSubscriberCreated(ctx context.Context, subscriber *models.Subscriber) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) PublishSubscriberCreated(context.Context, *models.Subscriber) error { return nil }

func (NopPublisher) Close() error { return nil }
