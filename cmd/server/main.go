package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"habibeat/backend/internal/cache"
	"habibeat/backend/internal/config"
	"habibeat/backend/internal/feed"
	"habibeat/backend/internal/httpapi"
	"habibeat/backend/internal/ledger"
	"habibeat/backend/internal/logger"
	"habibeat/backend/internal/service"
	"habibeat/backend/internal/store"
	"habibeat/backend/internal/store/memory"
	pgstore "habibeat/backend/internal/store/postgres"
	"habibeat/backend/internal/xid"
)

func main() {
	cfg := config.Load()
	logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel})
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Info().Msg("repository: in-memory")
	}

	bus := feed.NewBus()
	var (
		publisher    feed.Publisher     = bus
		subscriber   feed.Subscriber    = bus
		closingCache cache.ClosingCache = cache.NoopClosingCache{}
	)
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-process feed and noop cache")
		} else {
			redisFeed := feed.NewRedisFeed(rdb, cfg.FeedChannel, xid.New("srv"))
			publisher, subscriber = redisFeed, redisFeed
			closingCache = cache.NewRedisClosingCache(rdb)
			closers = append(closers, rdb.Close)
			log.Info().Str("channel", cfg.FeedChannel).Msg("feed: redis")
		}
	} else {
		log.Info().Msg("feed: in-process")
	}

	resolver := ledger.NewCarryOverResolver(repo, closingCache, cfg.CarryOverCacheTTL)
	svc := service.New(repo, resolver, publisher, service.Options{
		PersistTimeout:   cfg.PersistTimeout,
		StatusClearAfter: cfg.StatusClearAfter,
	})
	if err := svc.RefreshProducts(ctx); err != nil {
		log.Warn().Err(err).Msg("initial product load failed")
	}

	feedCtx, stopFeed := context.WithCancel(context.Background())
	feedDone := make(chan struct{})
	go func() {
		defer close(feedDone)
		svc.Run(feedCtx, subscriber)
	}()

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("habibeat backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	// Edits accepted before shutdown still reach storage.
	svc.Wait()
	stopFeed()
	<-feedDone

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
}

func openRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// validateSecurityConfig requires a strong AUTH_SECRET outside development. In
// development an empty secret falls back to the auth manager's dev default.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.Development() && cfg.AuthSecret == "" {
		log.Warn().Msg("AUTH_SECRET unset, using development secret")
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
