package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/models"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS subscribers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
)`

const (
	sqliteInsertSubscriber = `INSERT INTO subscribers (email) VALUES (?) RETURNING id, created_at`
	sqliteListSubscribers  = `SELECT id, email, created_at FROM subscribers ORDER BY created_at DESC, id DESC`
)

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

type SQLiteSubscriberRepository struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewSQLiteSubscriberRepository opens path and creates the subscribers table
// if it does not exist yet. ":memory:" is accepted.
func NewSQLiteSubscriberRepository(ctx context.Context, path string) (*SQLiteSubscriberRepository, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers the way SQLite would anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create subscribers table: %w", err)
	}

	return &SQLiteSubscriberRepository{
		db:     db,
		tracer: otel.Tracer("sqlite.repository"),
	}, nil
}

// sqliteDSN appends the busy timeout to path, which may already carry
// query parameters such as "file:subs.db?mode=rwc".
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000"
}

func (r *SQLiteSubscriberRepository) Create(ctx context.Context, email string) (*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.create",
		trace.WithAttributes(
			attribute.String("subscriber.email", email),
			attribute.String("operation", "database.write"),
			attribute.String("db.system", "sqlite"),
		))
	defer span.End()

	subscriber := &models.Subscriber{Email: email}
	var createdAt sqliteTime
	err := r.db.QueryRowContext(ctx, sqliteInsertSubscriber, email).Scan(&subscriber.ID, &createdAt)
	if err != nil {
		span.RecordError(err)
		if IsUniqueViolation(err) {
			return nil, models.ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("failed to insert subscriber: %w", err)
	}
	subscriber.CreatedAt = createdAt.Time

	span.SetAttributes(
		attribute.Int64("subscriber.id", subscriber.ID),
		attribute.Bool("success", true),
	)
	return subscriber, nil
}

func (r *SQLiteSubscriberRepository) List(ctx context.Context) ([]*models.Subscriber, error) {
	ctx, span := r.tracer.Start(ctx, "subscriber.repository.list",
		trace.WithAttributes(
			attribute.String("operation", "database.read"),
			attribute.String("db.system", "sqlite"),
		))
	defer span.End()

	rows, err := r.db.QueryContext(ctx, sqliteListSubscribers)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*models.Subscriber, 0)
	for rows.Next() {
		var (
			subscriber models.Subscriber
			createdAt  sqliteTime
		)
		if err := rows.Scan(&subscriber.ID, &subscriber.Email, &createdAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subscriber.CreatedAt = createdAt.Time
		subscribers = append(subscribers, &subscriber)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate subscribers: %w", err)
	}

	span.SetAttributes(
		attribute.Int("subscriber.count", len(subscribers)),
		attribute.Bool("success", true),
	)
	return subscribers, nil
}

func (r *SQLiteSubscriberRepository) Close() error {
	return r.db.Close()
}

// sqliteTime scans a TIMESTAMP column whether the driver hands it over as
// time.Time or as the raw text SQLite stored.
type sqliteTime struct {
	time.Time
}

func (t *sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported created_at type %T", src)
	}
}

func (t *sqliteTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised created_at value %q", s)
}
