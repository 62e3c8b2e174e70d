package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumenhq/entitlements/pkg/api"
	"github.com/lumenhq/entitlements/pkg/config"
	"github.com/lumenhq/entitlements/pkg/grants"
	"github.com/lumenhq/entitlements/pkg/httputil"
	"github.com/lumenhq/entitlements/pkg/observability"
	"github.com/lumenhq/entitlements/pkg/override"
	"github.com/lumenhq/entitlements/pkg/resolver"
	"github.com/lumenhq/entitlements/pkg/subscription"
)

const maxRequestBytes = 1 << 20 // 1 MiB

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"grants_backend":   cfg.Grants.Backend,
		"billing_provider": cfg.Billing.Provider,
		"override_backend": cfg.Override.Backend,
	}).Info("Starting entitlements server")

	ctx := context.Background()

	// Metrics registry
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// OpenTelemetry
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		os.Exit(1)
	}

	// Grant store
	grantStore, grantDB, grantFS, err := buildGrantStore(ctx, cfg.Grants)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize grant store")
		os.Exit(1)
	}
	if metrics != nil {
		grantStore = grants.NewInstrumentedStore(grantStore, cfg.Grants.Backend, metrics)
	}

	// Override store
	overrideStore, overrideRedis, err := buildOverrideStore(cfg.Override)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize override store")
		os.Exit(1)
	}

	if metrics != nil && (grantDB != nil || overrideRedis != nil) {
		go sampleConnectionStats(grantDB, overrideRedis, metrics)
	}

	// Billing push fan-out, fed by the webhook endpoint
	hub := subscription.NewHub()

	factory := func(userID string) *resolver.Resolver {
		client := subscription.NewClient(buildBillingBackend(cfg.Billing, hub), subscription.Config{
			APIKey:        cfg.Billing.APIKey,
			EntitlementID: cfg.Billing.EntitlementID,
		}, logger)

		// Initialization failures leave the client degraded, never fatal.
		if err := client.Initialize(ctx); err != nil {
			logger.WithError(err).WithField("user_id", userID).Warn("Billing client initialization failed")
		}
		if err := client.Identify(ctx, userID); err != nil {
			logger.WithError(err).WithField("user_id", userID).Warn("Billing identify failed")
		}

		return resolver.NewResolver(userID, resolver.Sources{
			Grants:       grantStore,
			Subscription: client,
			Overrides:    overrideStore,
		}, logger, metrics)
	}

	manager, err := resolver.NewManager(factory, cfg.Sessions.MaxSessions, logger, metrics)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize session manager")
		os.Exit(1)
	}
	manager.SetSessionTTL(cfg.Sessions.SessionTTL)

	serverOpts := []api.Option{}
	if cfg.Override.EnableEndpoints {
		serverOpts = append(serverOpts, api.WithOverrideEndpoints())
	}
	server := api.NewServer(manager, grantStore, overrideStore, hub, logger, metrics, serverOpts...)

	middlewares := []func(http.Handler) http.Handler{
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBytes),
	}
	if metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	handler := httputil.Chain(middlewares...)(server)

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	checker := observability.NewHealthChecker(grantDB, overrideRedis)
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.Infof("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			os.Exit(1)
		}
	}()

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc("health server", healthServer.Shutdown)
	sm.RegisterShutdownFunc("session manager", func(ctx context.Context) error {
		manager.Close()
		return nil
	})
	if grantDB != nil {
		sm.RegisterShutdownFunc("grant database", func(ctx context.Context) error {
			return grantDB.Close()
		})
	}
	if grantFS != nil {
		sm.RegisterShutdownFunc("firestore client", func(ctx context.Context) error {
			return grantFS.Close()
		})
	}
	if overrideRedis != nil {
		sm.RegisterShutdownFunc("override redis", func(ctx context.Context) error {
			return overrideRedis.Close()
		})
	}
	if otelProviders != nil {
		sm.RegisterShutdownFunc("telemetry", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// buildGrantStore selects the welcome-grant store backend. The returned DB
// and Firestore handles are non-nil only for their matching backend, so the
// caller can wire health checks and shutdown hooks.
func buildGrantStore(ctx context.Context, cfg config.GrantsConfig) (grants.Store, *sql.DB, *firestore.Client, error) {
	switch cfg.Backend {
	case config.GrantsBackendMemory:
		return grants.NewMemoryStore(), nil, nil, nil

	case config.GrantsBackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}
		db.SetMaxOpenConns(cfg.PostgresMaxConns)
		db.SetMaxIdleConns(cfg.PostgresMaxConns / 2)
		db.SetConnMaxLifetime(time.Hour)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
		}
		return grants.NewPostgresStore(db), db, nil, nil

	case config.GrantsBackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return grants.NewFirestoreStore(client), nil, client, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown grants backend %q", cfg.Backend)
	}
}

// buildOverrideStore selects the QA override store backend.
func buildOverrideStore(cfg config.OverrideConfig) (override.Store, *redis.Client, error) {
	switch cfg.Backend {
	case config.OverrideBackendMemory:
		return override.NewMemoryStore(), nil, nil

	case config.OverrideBackendFile:
		return override.NewFileStore(cfg.FilePath), nil, nil

	case config.OverrideBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		if cfg.RedisPassword != "" {
			opts.Password = cfg.RedisPassword
		}
		if cfg.RedisDB != 0 {
			opts.DB = cfg.RedisDB
		}
		client := redis.NewClient(opts)

		if err := client.Ping(context.Background()).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return override.NewRedisStore(client), client, nil

	default:
		return nil, nil, fmt.Errorf("unknown override backend %q", cfg.Backend)
	}
}

// buildBillingBackend builds a backend per session. REST backends hold
// per-user login state, so they are never shared across resolvers.
func buildBillingBackend(cfg config.BillingConfig, hub *subscription.Hub) subscription.Backend {
	if cfg.Provider == config.BillingProviderREST {
		return subscription.NewRESTBackend(cfg.BaseURL, hub)
	}
	return subscription.NewNullBackend()
}

// sampleConnectionStats feeds the pool gauges every 15 seconds for the life
// of the process.
func sampleConnectionStats(db *sql.DB, rdb *redis.Client, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if db != nil {
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
		if rdb != nil {
			metrics.RedisConnectionsActive.Set(float64(rdb.PoolStats().TotalConns))
		}
	}
}
