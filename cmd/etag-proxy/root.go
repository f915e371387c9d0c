package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/gh-etag-cache/pkg/client"
	"github.com/Sternrassler/gh-etag-cache/pkg/etag"
	"github.com/Sternrassler/gh-etag-cache/pkg/logging"
	"github.com/Sternrassler/gh-etag-cache/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cfg := configFromEnv()

	cmd := &cobra.Command{
		Use:   "etag-proxy",
		Short: "GitHub API proxy with pagination-aware ETag caching",
		Long: `etag-proxy forwards GET /github/<path> to the GitHub API. First-page
requests of list endpoints are validated against a stored ETag with
If-None-Match. A 304 records a hit on the stored page before the requested
page is fetched.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	bindFlags(cmd, &cfg)

	return cmd
}

func run(ctx context.Context, cfg config) error {
	logLevel := logging.LogLevel(cfg.LogLevel)
	logCfg := logging.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)
	logger := logging.NewLogger(logging.ComponentProxy)

	etagStore, redisClient, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Str("store", cfg.Store).Msg("Failed to open etag store")
		return err
	}
	defer closeStore()
	logger.Info().Str("store", cfg.Store).Msg("Etag store ready")

	clientCfg := client.DefaultConfig(cfg.UserAgent)
	clientCfg.Token = cfg.Token
	clientCfg.Timeout = cfg.Timeout
	clientCfg.Redis = redisClient
	githubClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create GitHub client: %w", err)
	}

	helper := etag.New(githubClient, etagStore)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newMux(helper, cfg.Upstream, cfg.Timeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", server.Addr).
			Str("upstream", cfg.Upstream).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting etag proxy server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openStore returns the configured backend and, for redis, the client so the
// rate limit tracker can share it.
func openStore(ctx context.Context, cfg config) (etag.Store, redis.Cmdable, func() error, error) {
	switch cfg.Store {
	case storeRedis:
		rc, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := rc.Ping(ctx).Err(); err != nil {
			rc.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		return store.NewRedis(rc), rc, rc.Close, nil

	case storeSQLite:
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, nil, db.Close, nil

	default:
		return store.NewMemory(), nil, func() error { return nil }, nil
	}
}

// newRedisClient accepts a redis:// URL or a plain host:port address.
func newRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}
