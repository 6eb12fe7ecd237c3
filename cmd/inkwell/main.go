package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/inkwell-hq/inkwell/pkg/access"
	"github.com/inkwell-hq/inkwell/pkg/api"
	"github.com/inkwell-hq/inkwell/pkg/config"
	"github.com/inkwell-hq/inkwell/pkg/events"
	"github.com/inkwell-hq/inkwell/pkg/hierarchy"
	"github.com/inkwell-hq/inkwell/pkg/maintenance"
	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
	"github.com/inkwell-hq/inkwell/pkg/storage/postgres"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inkwell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting inkwell")

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	db, err := postgres.Connect(postgres.ConnectionConfig{
		URL:      cfg.Storage.PostgresURL,
		MaxConns: cfg.Storage.PostgresMaxConns,
		MinConns: cfg.Storage.PostgresMinConns,
		Timeout:  cfg.Storage.PostgresTimeout,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := postgres.RunMigrations(migrateCtx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(cfg.Storage.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisClient.Close()
	}

	tenantStore := tenancy.NewPostgresStore(db)
	resourceStore := resources.NewPostgresStore(db)
	shareStore := sharing.NewPostgresStore(db)
	recorder := events.NewAsyncRecorder(events.NewDBRecorder(db, logger))

	roleCache := access.NewRoleCache(redisClient, cfg.Storage.RoleCacheTTL, logger, metrics)
	accessResolver := access.NewResolver(resourceStore, shareStore, roleCache, logger, metrics)
	tenantResolver := tenancy.NewResolver(tenantStore, logger, metrics)
	migrator := tenancy.NewMigrator(tenantStore, logger)
	issuer := sharing.NewIssuer(shareStore, logger, metrics)
	manager := hierarchy.NewManager(resourceStore, recorder, logger, metrics)
	health := observability.NewHealthChecker(db, redisClient)

	server := api.NewServer(api.Deps{
		Tenants:   tenantStore,
		Resources: resourceStore,
		Shares:    shareStore,
		Resolver:  tenantResolver,
		Access:    accessResolver,
		Hierarchy: manager,
		Links:     issuer,
		Migrator:  migrator,
		Recorder:  recorder,
		RoleCache: roleCache,
		Logger:    logger,
		Metrics:   metrics,
		Health:    health,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)

	if metrics != nil {
		statsCtx, stopStats := context.WithCancel(context.Background())
		go postgres.ReportPoolStats(statsCtx, db, metrics, 15*time.Second)
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			stopStats()
			return nil
		})
	}

	if cfg.Maintenance.Enabled {
		sweeper := maintenance.NewSweeper(shareStore, migrator, logger)
		if err := sweeper.Start(cfg.Maintenance.Schedule); err != nil {
			return fmt.Errorf("starting maintenance sweeper: %w", err)
		}
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			sweeper.Stop()
			return nil
		})
	}

	// Probes listen on their own port so load balancers and kubelets never
	// compete with API traffic.
	healthServer := startHealthServer(cfg.Server.Host+":"+cfg.Server.HealthPort, health, logger)
	shutdown.RegisterShutdownFunc(healthServer.Shutdown)

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server failed")
		}
	}()

	return shutdown.WaitForShutdown()
}

func startHealthServer(addr string, health *observability.HealthChecker, logger *observability.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", health.Liveness)
	mux.HandleFunc("/readyz", health.Readiness)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()
	return srv
}
