package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/boardsync/internal/adapter/httpserver"
	"github.com/pscheid92/boardsync/internal/adapter/memory"
	"github.com/pscheid92/boardsync/internal/adapter/metrics"
	"github.com/pscheid92/boardsync/internal/adapter/postgres"
	"github.com/pscheid92/boardsync/internal/adapter/redis"
	"github.com/pscheid92/boardsync/internal/app"
	"github.com/pscheid92/boardsync/internal/domain"
	"github.com/pscheid92/boardsync/internal/platform/config"
	"github.com/pscheid92/boardsync/internal/platform/logging"
	"github.com/pscheid92/boardsync/internal/platform/version"
)

const shutdownTimeout = 10 * time.Second

type storeSetup struct {
	store   domain.BoardStore
	healthy func(ctx context.Context) error
	close   func()
}

type brokerSetup struct {
	broker  domain.Broker
	healthy func(ctx context.Context) error
	close   func()
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config, reg prometheus.Registerer, breakers *metrics.CircuitBreakerMetrics) storeSetup {
	if cfg.StoreBackend == config.BackendMemory {
		store := memory.NewStore()
		slog.Warn("Using in-memory board store, data is lost on restart")
		return storeSetup{store: store, healthy: store.Ping, close: func() {}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnectTimeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewMetricsTracer(metrics.NewDBMetrics(reg)))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	repo := postgres.NewBoardRepo(pool)
	guarded := postgres.NewGuardedStore(repo, postgres.DefaultBreakerSettings, breakers)
	return storeSetup{store: guarded, healthy: repo.Ping, close: pool.Close}
}

func setupBroker(cfg *config.Config, reg prometheus.Registerer, breakers *metrics.CircuitBreakerMetrics) brokerSetup {
	if cfg.BrokerBackend == config.BackendMemory {
		broker := memory.NewBroker()
		slog.Warn("Using in-process broker, watchers only see writes made through this instance")
		return brokerSetup{broker: broker, healthy: broker.Ping, close: func() {}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.NewCircuitBreakerHook(redis.DefaultCircuitBreakerConfig, breakers),
		redis.NewMetricsHook(metrics.NewRedisMetrics(reg)),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	broker := redis.NewBroker(client)
	return brokerSetup{broker: broker, healthy: broker.Ping, close: func() { _ = client.Close() }}
}

func seedBoards(svc *app.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := svc.EnsureSeedBoards(ctx); err != nil {
		slog.Error("Failed to seed boards", "error", err)
		os.Exit(1)
	}
}

func runGracefulShutdown(srv *httpserver.Server) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", version.Get().String(),
		"store", cfg.StoreBackend,
		"broker", cfg.BrokerBackend,
	)

	reg := metrics.NewRegistry()
	breakers := metrics.NewCircuitBreakerMetrics(reg)

	store := setupStore(cfg, reg, breakers)
	defer store.close()

	broker := setupBroker(cfg, reg, breakers)
	defer broker.close()

	svc := app.NewService(store.store, clock)
	if cfg.SeedBoards {
		seedBoards(svc)
	}
	coordinator := app.NewCoordinator(store.store, broker.broker, metrics.NewCoordinatorMetrics(reg), clock).
		WithReadInvalidation(svc)

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Boards:      svc,
		Coordinator: coordinator,
		Broker:      broker.broker,
		Registry:    reg,
		Clock:       clock,
		HealthChecks: []httpserver.HealthCheck{
			{Name: "store", Check: store.healthy},
			{Name: "broker", Check: broker.healthy},
		},
	})

	done := runGracefulShutdown(srv)

	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
