package app

import (
	"context"
	"fmt"

	dapr "github.com/dapr/go-sdk/client"

	"email-list-worker/internal/config"
	"email-list-worker/internal/events"
	"email-list-worker/internal/logging"
	"email-list-worker/internal/repository"
)

// OpenRepository connects the subscriber store selected by STORE_DRIVER.
func OpenRepository(ctx context.Context, cfg *config.Config) (repository.SubscriberRepository, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return repository.NewInMemorySubscriberRepository(), nil
	case config.StoreSQLite:
		return repository.NewSQLiteSubscriberRepository(ctx, cfg.SQLitePath)
	case config.StorePostgres:
		return repository.NewPostgresSubscriberRepository(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewPublisher builds the subscriber event publisher selected by
// EVENTS_BACKEND.
func NewPublisher(cfg *config.Config, logger *logging.ContextLogger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsNone:
		return events.NopPublisher{}, nil
	case config.EventsDapr:
		client, err := dapr.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create dapr client: %w", err)
		}
		return events.NewDaprPublisher(client, cfg.DaprPubsubName, cfg.EventsTopic), nil
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic, logger), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}
