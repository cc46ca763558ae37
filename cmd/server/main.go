package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/insightpulse/internal/adapter/httpserver"
	"github.com/pscheid92/insightpulse/internal/adapter/metrics"
	"github.com/pscheid92/insightpulse/internal/adapter/postgres"
	"github.com/pscheid92/insightpulse/internal/adapter/redis"
	"github.com/pscheid92/insightpulse/internal/adapter/websocket"
	"github.com/pscheid92/insightpulse/internal/app"
	"github.com/pscheid92/insightpulse/internal/auth"
	"github.com/pscheid92/insightpulse/internal/platform/config"
	"github.com/pscheid92/insightpulse/internal/platform/logging"
	"github.com/pscheid92/insightpulse/internal/platform/retry"
	"github.com/pscheid92/insightpulse/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func startupPolicy(dependency string) retry.Policy {
	p := retry.StartupPolicy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not ready, retrying", "dependency", dependency, "attempt", attempt, "backoff", backoff, "error", err)
	}
	return p
}

func setupDB(ctx context.Context, cfg *config.Config, m *metrics.DatabaseMetrics) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := retry.Do(ctx, startupPolicy("postgres"), retry.Always, func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

func setupRedis(ctx context.Context, cfg *config.Config, m *metrics.RedisMetrics) (*goredis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := retry.Do(ctx, startupPolicy("redis"), retry.Always, func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, m)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func instanceID(cfg *config.Config) string {
	if cfg.InstanceID != "" {
		return cfg.InstanceID
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}

func healthChecks(pool *pgxpool.Pool, rdb *goredis.Client) []httpserver.HealthCheck {
	return []httpserver.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
}

func run() error {
	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(registry)

	pool, err := setupDB(ctx, cfg, metrics.NewDatabaseMetrics(registry))
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := setupRedis(ctx, cfg, metrics.NewRedisMetrics(registry))
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	insights := postgres.NewInsightRepo(pool)
	users := postgres.NewUserRepo(pool)
	cache := redis.NewSnapshotCache(rdb)
	computer := app.NewComputer(insights, cache, clock)

	rooms := websocket.NewRegistry(clock, wsMetrics)
	relay := redis.NewUpdateRelay(rdb, rooms)

	lock := redis.NewSweepLock(rdb, instanceID(cfg), time.Duration(cfg.SweepIntervalMinutes)*time.Minute)
	scheduler := app.NewScheduler(insights, computer, relay, lock, clock, metrics.NewSchedulerMetrics(registry), app.SchedulerConfig{
		Interval:    time.Duration(cfg.SweepIntervalMinutes) * time.Minute,
		Concurrency: cfg.SweepConcurrency,
	})

	deps := websocket.SessionDeps{
		Verifier:     auth.NewVerifier(cfg.JWTSecret, clock),
		Users:        users,
		Snapshots:    cache,
		Registry:     rooms,
		Metrics:      wsMetrics,
		CacheMetrics: metrics.NewCacheMetrics(registry),
	}
	if cfg.ComputeOnJoinMiss {
		deps.Computer = computer
		deps.Broadcaster = relay
	}
	limits := websocket.NewConnectionLimits(clock, int64(cfg.MaxWebSocketConnections), cfg.MaxConnectionsPerIP, cfg.ConnectionRatePerSecond, cfg.ConnectionBurst)
	wsHandler := websocket.NewHandler(deps, limits, websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment()), clock)

	srv := httpserver.NewServer(cfg, httpserver.Deps{
		Users:            users,
		Issuer:           auth.NewIssuer(cfg.JWTSecret, clock),
		Refresher:        scheduler,
		WebSocketHandler: wsHandler,
		MetricsHandler:   metrics.Handler(registry),
		HTTPMetrics:      metrics.NewHTTPMetrics(registry),
		HealthChecks:     healthChecks(pool, rdb),
		Clock:            clock,
	})

	var wg sync.WaitGroup

	relayReady := make(chan struct{})
	relayErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		relayErr <- relay.Run(ctx, relayReady)
	}()

	select {
	case <-relayReady:
	case err := <-relayErr:
		return fmt.Errorf("update relay: %w", err)
	case <-ctx.Done():
		wg.Wait()
		return nil
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received, cleaning up...")
	case err := <-serverErr:
		if err != nil {
			slog.Error("Server error", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
	rooms.Stop()
	wg.Wait()

	if err := lock.Release(shutdownCtx); err != nil {
		slog.Warn("Failed to release sweep lock", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}
