// Command server runs the chat persistence API: a Redis-backed write path
// with asynchronous batch sync into SQLite, exposed over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/studyloop/go-chat-store/internal/cache"
	"github.com/studyloop/go-chat-store/internal/config"
	httpapi "github.com/studyloop/go-chat-store/internal/http"
	"github.com/studyloop/go-chat-store/internal/observability"
	"github.com/studyloop/go-chat-store/internal/repo"
	"github.com/studyloop/go-chat-store/internal/services"
	"github.com/studyloop/go-chat-store/internal/sysutil"
)

// version is overridable at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	log.Info().Str("version", appVersion).Str("port", cfg.Port).Msg("starting chat store")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op when disabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Durable tier.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Warn().Err(err).Msg("gorm tracing plugin failed, continuing without it")
	}

	// Cache tier.
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
	})
	pingCtx, cancelPing := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
	}
	cancelPing()

	// Background sync: drain the pending set on a fixed interval. The
	// distributed lock makes concurrent passes (other instances, manual
	// triggers) safe.
	syncSvc := newSyncService(db, rdb, cfg)
	go runSyncLoop(ctx, syncSvc, cfg.Sync.Interval)

	// HTTP transport.
	r := gin.New()
	httpapi.RegisterRoutes(r, db, rdb, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	// Flush whatever is still pending before the process exits.
	if res := syncSvc.SyncPending(shutdownCtx); res.Synced > 0 || len(res.Errors) > 0 {
		log.Info().Int("synced", res.Synced).Strs("errors", res.Errors).Msg("final sync pass")
	}

	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}

// newSyncService assembles a sync coordinator over the shared stores.
// RegisterRoutes builds its own instance for the HTTP endpoints; both operate
// on the same Redis keys and are serialized by the sync lock.
func newSyncService(db *gorm.DB, rdb *redis.Client, cfg config.Config) *services.SyncService {
	chatCache := cache.NewChatCache(rdb, cfg.Cache.TTL, cfg.Cache.ListMax)
	pending := cache.NewPendingTracker(rdb)
	lock := cache.NewSyncLock(rdb, cfg.Sync.LockTTL)
	return services.NewSyncService(db, chatCache, pending, lock, cfg.Sync.BatchSize)
}

// runSyncLoop invokes one sync pass per tick until ctx is canceled.
func runSyncLoop(ctx context.Context, svc *services.SyncService, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res := svc.SyncPending(ctx)
			if len(res.Errors) > 0 {
				log.Warn().Strs("errors", res.Errors).Int("synced", res.Synced).Msg("sync pass finished with errors")
			} else if res.Synced > 0 {
				log.Info().Int("synced", res.Synced).Msg("sync pass finished")
			}
		}
	}
}
