package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/utafrali/EcommerceGo/pkg/health"
	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	pkgkafka "github.com/utafrali/EcommerceGo/pkg/kafka"
	"github.com/utafrali/EcommerceGo/pkg/tracing"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/client"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/config"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/event"
	handler "github.com/utafrali/EcommerceGo/services/storefront/internal/handler/http"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/relay"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/session"
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	storage        *storageBackend
	registry       *session.Registry
	relayLimiter   *handler.RateLimiter
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Durable client storage.
	backend, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Browser sessions.
	registry := session.NewRegistry(backend, cfg.SessionIdleTTL, logger)
	codec := session.NewCodec(cfg.SessionSecret, cfg.SessionTTL())

	// Health checks.
	healthHandler := health.NewHandler(health.DefaultTimeout)
	healthHandler.RegisterCritical("storage", backend.Ping)

	// Cart events are optional; without Kafka the stores run unobserved.
	var producer *pkgkafka.Producer
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
		registry.OnCreate(event.NewProducer(producer, logger).Attach)
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Backend REST API, behind a circuit breaker.
	apiClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.APITimeout,
		MaxRetries:      cfg.APIMaxRetries,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 100,
		UserAgent:       "EcommerceGo-Storefront/1.0",
	})
	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "storefront-backend",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(apiClient, cbCfg, logger)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)

	// Image relay. Redirects are followed by the relay itself so that every
	// hop is checked against the allow-list.
	relayClient := httpclient.New(httpclient.Config{
		Timeout:            cfg.RelayFetchTimeout,
		MaxConnsPerHost:    50,
		UserAgent:          cfg.RelayUserAgent,
		DisableRedirects:   true,
		InsecureSkipVerify: cfg.RelayInsecureSkipVerify,
	})
	if cfg.RelayInsecureSkipVerify {
		logger.Warn("image relay skips TLS certificate verification")
	}
	imageRelay := relay.New(relay.Config{
		AllowedHosts: cfg.RelayAllowedHosts,
		MaxRedirects: cfg.RelayMaxRedirects,
		MaxBodyBytes: cfg.RelayMaxBodyBytes,
		Timeout:      cfg.RelayFetchTimeout,
		UserAgent:    cfg.RelayUserAgent,
	}, relayClient, logger)
	logger.Info("image relay initialized", slog.Any("allowed_hosts", imageRelay.Hosts()))

	relayLimiter := handler.NewRateLimiter(cfg.RelayRateLimitRPS, cfg.RelayRateLimitBurst, cfg.RelayTrustForwardedFor, logger)

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Environment:        cfg.Environment,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		PprofCIDRs:         cfg.PprofAllowedCIDRs,
		LoginPath:          cfg.LoginPath,
		SecureCookie:       cfg.CookieSecure,
	}, handler.Dependencies{
		Registry:     registry,
		Codec:        codec,
		Relay:        imageRelay,
		RelayLimiter: relayLimiter,
		Auth:         client.NewAuthClient(cbClient, cfg.APIBaseURL),
		Catalog:      client.NewCatalogClient(cbClient, cfg.APIBaseURL, relay.RoutePrefix),
		Orders:       client.NewOrderClient(cbClient, cfg.APIBaseURL),
		Settings:     client.NewSettingsClient(cbClient, cfg.APIBaseURL),
		Health:       healthHandler,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		storage:        backend,
		registry:       registry,
		relayLimiter:   relayLimiter,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.storage.purge != nil {
		go runPurge(ctx, a.storage.purge, a.cfg.StoragePurgeInterval, a.logger)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Session registry and relay limiter (stop their sweepers)
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer
// 5. Durable storage
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop the background sweepers.
	a.registry.Close()
	a.relayLimiter.Close()

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 5. Close durable storage.
	a.storage.close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
