package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowmetric/ingest-gateway/internal/auth"
	"github.com/flowmetric/ingest-gateway/internal/config"
	"github.com/flowmetric/ingest-gateway/internal/httpserver"
	"github.com/flowmetric/ingest-gateway/internal/pipeline"
	"github.com/flowmetric/ingest-gateway/internal/ratelimit"
	"github.com/flowmetric/ingest-gateway/internal/store"
	"github.com/flowmetric/ingest-gateway/internal/writer"
)

// main boots the gateway: config → stores → schema → limiter → writer → HTTP.
func main() {
	// Missing secrets or store URLs are fatal at startup, never recovered.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Credential table (Postgres).
	pg, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pg.Close()
	if err := pg.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	// Analytics sink (ClickHouse).
	ch, err := store.NewClickHouseStore(cfg.ClickHouseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer ch.Close()
	if err := ch.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	limiter, err := buildLimiter(cfg)
	if err != nil {
		log.Fatal(err)
	}

	w := writer.New(ch, cfg.BufferMax, cfg.FlushSize, cfg.FlushInterval, logger)
	w.Start()

	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Resolver:   auth.NewResolver(cfg.KeyLookupSecret, pg, cfg.CacheTTL, cfg.CacheCapacity, logger),
		Codec:      auth.NewTokenCodec(cfg.TokenSigningSecret, cfg.TokenTTL),
		Limiter:    limiter,
		Pipeline:   pipeline.New(cfg),
		Writer:     w,
		Postgres:   pg,
		ClickHouse: ch,
		Logger:     logger,
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain the writer with
	// a hard deadline. Undrained events past the deadline are logged and lost.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}

	w.Shutdown(15 * time.Second)
}

// buildLimiter constructs the admission controller for the configured mode.
func buildLimiter(cfg config.Config) (ratelimit.Limiter, error) {
	limits := map[ratelimit.Scope]ratelimit.Limit{
		ratelimit.ScopeKey:  {Rate: cfg.KeyRate, Burst: cfg.KeyBurst},
		ratelimit.ScopeAddr: {Rate: cfg.AddrRate, Burst: cfg.AddrBurst},
	}

	switch cfg.RateLimitMode {
	case "off":
		return ratelimit.Noop{}, nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisLimiter(redis.NewClient(opts), limits, cfg.BucketStaleAge)
	default:
		m := ratelimit.NewMemoryLimiter(limits)
		m.StartSweeper(cfg.SweepInterval, cfg.BucketStaleAge)
		return m, nil
	}
}
