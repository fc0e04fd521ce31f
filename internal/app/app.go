package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"email-list-worker/internal/events"
	"email-list-worker/internal/handlers"
	"email-list-worker/internal/logging"
	"email-list-worker/internal/metrics"
	"email-list-worker/internal/repository"
	"email-list-worker/internal/service"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Port           string
	MetricsAddr    string
	Logger         *logging.ContextLogger
	TracerProvider trace.TracerProvider
	GinMode        string
	Repository     repository.SubscriberRepository // nil falls back to the in-memory store
	Publisher      events.Publisher                // nil disables subscriber events
}

type Application struct {
	server        *http.Server
	metricsServer *http.Server
	config        *Config
	router        *gin.Engine
	repo          repository.SubscriberRepository
	publisher     events.Publisher
	metrics       *metrics.Metrics
}

func Build(config *Config) *Application {
	if config.GinMode != "" {
		gin.SetMode(config.GinMode)
	}

	repo := config.Repository
	if repo == nil {
		repo = repository.NewInMemorySubscriberRepository()
	}
	publisher := config.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	m := metrics.New()
	subscriberService := service.NewSubscriberService(repo, publisher, m, config.Logger)
	subscriberHandler := handlers.NewSubscriberHandler(subscriberService, config.Logger)

	router := gin.New()
	// Paths are matched exactly; anything unmatched gets the default page.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.HandleMethodNotAllowed = false

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(config.ServiceName, otelgin.WithTracerProvider(config.TracerProvider)))
	router.Use(handlers.RequestID())
	router.Use(requestLogger(config.Logger))
	router.Use(handlers.CORS())

	router.POST("/subscribe", subscriberHandler.Subscribe)
	router.Any("/subscribers", subscriberHandler.ListSubscribers)
	router.NoRoute(subscriberHandler.Default)

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsServer = &http.Server{
			Addr:              config.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return &Application{
		server:        server,
		metricsServer: metricsServer,
		config:        config,
		router:        router,
		repo:          repo,
		publisher:     publisher,
		metrics:       m,
	}
}

func requestLogger(logger *logging.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.WithTracing(c.Request.Context()).WithFields(map[string]interface{}{
			"method":     method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"request_id": handlers.GetRequestID(c),
			"user_agent": c.Request.UserAgent(),
		}).Info("HTTP request completed")
	}
}

// Run serves the public router and, when configured, the metrics listener.
// It returns when either server stops with an error other than
// http.ErrServerClosed, or when both have been shut down.
func (app *Application) Run() error {
	errCh := make(chan error, 2)

	if app.metricsServer != nil {
		go func() {
			app.config.Logger.Info("Serving metrics on " + app.metricsServer.Addr)
			errCh <- serve(app.metricsServer)
		}()
	}

	go func() {
		app.config.Logger.Info("Starting server on :" + app.config.Port)
		errCh <- serve(app.server)
	}()

	servers := 1
	if app.metricsServer != nil {
		servers++
	}
	for i := 0; i < servers; i++ {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains both listeners and then releases the store and publisher.
func (app *Application) Shutdown(ctx context.Context) error {
	app.config.Logger.Info("Shutting down server...")

	var errs []error
	if err := app.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := app.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := app.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (app *Application) GetMetrics() *metrics.Metrics {
	return app.metrics
}

func (app *Application) GetRouter() *gin.Engine {
	return app.router
}
