package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/models"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS subscribers (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	postgresInsertSubscriber = `INSERT INTO subscribers (email) VALUES ($1) RETURNING id, created_at`
	postgresListSubscribers  = `SELECT id, email, created_at FROM subscribers ORDER BY created_at DESC, id DESC`
)

type PostgresSubscriberRepository struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

func NewPostgresSubscriberRepository(ctx context.Context, databaseURL string) (*PostgresSubscriberRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create subscribers table: %w", err)
	}

	return &PostgresSubscriberRepository{
		pool:   pool,
		tracer: otel.Tracer("postgres.repository"),
	}, nil
}

func (r *PostgresSubscriberRepository) Create(ctx context.Context, email string) (*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.email", email),
			attribute.String("operation", "database.write"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	subscriber := &models.Subscriber{Email: email}
	err := r.pool.QueryRow(ctx, postgresInsertSubscriber, email).Scan(&subscriber.ID, &subscriber.CreatedAt)
	if err != nil {
		span.RecordError(err)
		if IsUniqueViolation(err) {
			return nil, models.ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("failed to insert subscriber: %w", err)
	}
	subscriber.CreatedAt = subscriber.CreatedAt.UTC()

	span.SetAttributes(
		attribute.Int64("subscriber.id", subscriber.ID),
		attribute.Bool("success", true),
	)
	return subscriber, nil
}

func (r *PostgresSubscriberRepository) List(ctx context.Context) ([]*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.list",
		trace.WithAttributes(
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "postgresql"),
		))
	defer span.End()

	rows, err := r.pool.Query(ctx, postgresListSubscribers)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}

	subscribers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Subscriber, error) {
		var s models.Subscriber
		if err := row.Scan(&s.ID, &s.Email, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.CreatedAt = s.CreatedAt.UTC()
		return &s, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read subscribers: %w", err)
	}
	if subscribers == nil {
		subscribers = make([]*models.Subscriber, 0)
	}

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}

func (r *PostgresSubscriberRepository) Close() error {
	r.pool.Close()
	return nil
}
