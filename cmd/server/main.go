package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"email-list-worker/internal/app"
	"email-list-worker/internal/config"
	"email-list-worker/internal/logging"
	"email-list-worker/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	tp, err := telemetry.InitTracing(cfg.ServiceName, cfg.ServiceVersion, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := telemetry.ShutdownTracing(context.Background(), tp); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}()

	ctx := context.Background()
	repo, err := app.OpenRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open subscriber store: %v", err)
	}

	publisher, err := app.NewPublisher(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create event publisher: %v", err)
	}

	application := app.Build(&app.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Port:           cfg.Port,
		MetricsAddr:    cfg.MetricsAddr,
		Logger:         logger,
		TracerProvider: otel.GetTracerProvider(),
		GinMode:        cfg.GinMode,
		Repository:     repo,
		Publisher:      publisher,
	})

	logger.WithField("store", cfg.StoreDriver).WithField("events", cfg.EventsBackend).Info("Email list worker configured")

	go func() {
		if err := application.Run(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
