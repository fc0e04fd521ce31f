package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	EventsNone  = "none"
	EventsDapr  = "dapr"
	EventsKafka = "kafka"
)

type Config struct {
	ServiceName     string
	ServiceVersion  string
	Port            string
	GinMode         string
	LogLevel        string
	StoreDriver     string
	SQLitePath      string
	DatabaseURL     string
	EventsBackend   string
	EventsTopic     string
	DaprPubsubName  string
	KafkaBrokers    []string
	MetricsAddr     string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVICE_NAME", "email-list-worker")
	v.SetDefault("SERVICE_VERSION", "1.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("SQLITE_PATH", "subscribers.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("EVENTS_BACKEND", EventsNone)
	v.SetDefault("EVENTS_TOPIC", "subscribers.created")
	v.SetDefault("DAPR_PUBSUB_NAME", "pubsub")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")

	cfg := &Config{
		ServiceName:     v.GetString("SERVICE_NAME"),
		ServiceVersion:  v.GetString("SERVICE_VERSION"),
		Port:            v.GetString("PORT"),
		GinMode:         v.GetString("GIN_MODE"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		StoreDriver:     strings.ToLower(v.GetString("STORE_DRIVER")),
		SQLitePath:      v.GetString("SQLITE_PATH"),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		EventsBackend:   strings.ToLower(v.GetString("EVENTS_BACKEND")),
		EventsTopic:     v.GetString("EVENTS_TOPIC"),
		DaprPubsubName:  v.GetString("DAPR_PUBSUB_NAME"),
		KafkaBrokers:    splitList(v.GetString("KAFKA_BROKERS")),
		MetricsAddr:     v.GetString("METRICS_ADDR"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.EventsBackend {
	case EventsNone, EventsDapr:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND=%s", EventsKafka)
		}
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}

	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
