// Command otx-etl fetches subscribed OTX pulses and upserts them into MongoDB.
// All configuration comes from the environment or a .env file.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/otx-pulse-etl/internal/config"
	"github.com/Sternrassler/otx-pulse-etl/internal/etl"
	"github.com/Sternrassler/otx-pulse-etl/pkg/cache"
	"github.com/Sternrassler/otx-pulse-etl/pkg/client"
	"github.com/Sternrassler/otx-pulse-etl/pkg/loader"
	"github.com/Sternrassler/otx-pulse-etl/pkg/logging"
	"github.com/Sternrassler/otx-pulse-etl/pkg/metrics"
	"github.com/Sternrassler/otx-pulse-etl/pkg/pagination"
	"github.com/Sternrassler/otx-pulse-etl/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	userAgent       = "otx-pulse-etl/0.1.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, config.Load)
	stop()
	os.Exit(code)
}

// execute performs one run and returns the process exit code.
func execute(ctx context.Context, load func() (config.Config, error)) int {
	cfg, err := load()
	if err != nil {
		logger := logging.Setup(logging.DefaultConfig())
		if errors.Is(err, config.ErrMissingAPIKey) {
			logger.Error().Msg("OTX_API_KEY not found in environment. Please set it in .env")
		} else {
			logger.Error().Err(err).Msg("Invalid configuration")
		}
		return 1
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.Pretty = cfg.LogPretty
	logger := logging.Setup(logCfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("ETL run failed")
		return 1
	}
	return 0
}

// run owns the store connection for the whole run and releases it on every
// exit path.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	storeCfg := store.DefaultConfig()
	storeCfg.URI = cfg.MongoURI
	storeCfg.Database = cfg.DBName
	storeCfg.Collection = cfg.CollectionName

	pulses, err := store.Connect(ctx, storeCfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := pulses.Close(closeCtx); cerr != nil {
			logger.Warn().Err(cerr).Msg("Failed to close MongoDB connection")
		}
	}()

	clientCfg := client.DefaultConfig(cfg.APIKey)
	clientCfg.Headers = map[string]string{"User-Agent": userAgent}
	clientCfg.Timeout = cfg.RequestTimeout
	clientCfg.Retry.MaxRetries = cfg.MaxRetries
	clientCfg.Retry.BackoffFactor = cfg.BackoffFactor
	clientCfg.Logger = &logger

	if cfg.CacheEnabled() {
		if redisClient := connectRedis(ctx, cfg.RedisURL, logger); redisClient != nil {
			defer redisClient.Close()
			clientCfg.Cache = cache.NewManager(redisClient)
			clientCfg.CacheTTL = cfg.PageCacheTTL
		}
	}

	otx, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	runner := etl.NewRunner(
		pagination.New(otx, cfg.BaseURL, cfg.MaxPages).WithLogger(logger),
		loader.New(pulses).WithLogger(logger),
	)

	_, err = runner.Run(ctx)

	if cfg.PushgatewayURL != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if perr := metrics.Push(pushCtx, cfg.PushgatewayURL, metrics.DefaultJob); perr != nil {
			logger.Warn().Err(perr).Msg("Failed to push metrics")
		}
	}

	return err
}

// connectRedis returns nil when the cache cannot be used; the run proceeds
// without it.
func connectRedis(ctx context.Context, redisURL string, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid REDIS_URL, page cache disabled")
		return nil
	}

	redisClient := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, page cache disabled")
		redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", opts.Addr).Msg("Page cache enabled")
	return redisClient
}
