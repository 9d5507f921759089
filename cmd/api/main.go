// Copyright (c) 2026 Vaultiq. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Vaultiq session engine host server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Resolve the per-family persistence policy.
//  4. Connect to PostgreSQL (pgxpool) — only if any family enables the store.
//  5. Connect to Redis — only if any family enables the cache.
//  6. Run database migrations (idempotent).
//  7. Assemble the session capability bundle.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/vaultiq/internal/api"
	"github.com/taibuivan/vaultiq/internal/platform/config"
	"github.com/taibuivan/vaultiq/internal/platform/constants"
	"github.com/taibuivan/vaultiq/internal/platform/migration"
	pgstore "github.com/taibuivan/vaultiq/internal/platform/postgres"
	redisstore "github.com/taibuivan/vaultiq/internal/platform/redis"
	"github.com/taibuivan/vaultiq/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "vaultiq"))
	slog.SetDefault(log)

	log.Info("[Vaultiq] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "vaultiq"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// ── 3. Persistence Policy ─────────────────────────────────────────────
	policy := session.ResolvePolicy(session.RawPolicyFromConfig(cfg))

	needStore, needCache := false, false
	for _, familyPolicy := range policy {
		needStore = needStore || familyPolicy.UseStore
		needCache = needCache || familyPolicy.UseCache
	}

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 4. PostgreSQL ─────────────────────────────────────────────────────
	var pool *pgxpool.Pool
	if needStore {
		pool, err = pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		// ── 5. Migrations ─────────────────────────────────────────────────
		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
	}

	// ── 6. Redis ──────────────────────────────────────────────────────────
	var (
		rdb      *goredis.Client
		provider session.Provider
	)
	if needCache {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		// Declare the cache names the resolved policy actually asks for;
		// anything else resolves absent and silently no-ops.
		names := make([]string, 0, len(policy))
		for _, familyPolicy := range policy {
			if familyPolicy.UseCache {
				names = append(names, familyPolicy.CacheName)
			}
		}
		provider = session.NewRedisProvider(rdb, names...)
	}

	// ── 7. Capability Bundle ──────────────────────────────────────────────
	bundle, err := session.NewBundle(session.Deps{
		Policy:         policy,
		Pool:           pool,
		Provider:       provider,
		Logger:         log,
		DeleteOnRevoke: cfg.RevokeDeletesSession,
	})
	must(log, err, "assemble session capabilities")

	// ── 8. Health handlers (wired with the tiers actually in use) ─────────
	healthDeps := api.HealthDependencies{}
	if pool != nil {
		healthDeps.CheckDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}
	}
	if rdb != nil {
		healthDeps.CheckCache = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(healthDeps, log)

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Session:   session.NewHandler(bundle),
		Validator: bundle.Validator,
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
