// Package config loads the ETL configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Sternrassler/otx-pulse-etl/pkg/logging"
	"github.com/joho/godotenv"
)

// ErrMissingAPIKey is returned by Load when OTX_API_KEY is unset or empty.
var ErrMissingAPIKey = errors.New("OTX_API_KEY not found in environment")

// Environment variable names.
const (
	EnvAPIKey         = "OTX_API_KEY"
	EnvBaseURL        = "BASE_URL"
	EnvMongoURI       = "MONGO_URI"
	EnvDBName         = "DB_NAME"
	EnvCollectionName = "COLLECTION_NAME"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvMaxPages       = "MAX_PAGES"
	EnvMaxRetries     = "MAX_RETRIES"
	EnvBackoffFactor  = "BACKOFF_FACTOR"
	EnvRedisURL       = "REDIS_URL"
	EnvPageCacheTTL   = "PAGE_CACHE_TTL"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogPretty      = "LOG_PRETTY"
)

// Config is built once at process start and passed to each component.
type Config struct {
	APIKey  string
	BaseURL string

	MongoURI       string
	DBName         string
	CollectionName string

	RequestTimeout time.Duration
	MaxPages       int
	MaxRetries     int
	BackoffFactor  time.Duration

	RedisURL     string
	PageCacheTTL time.Duration

	PushgatewayURL string

	LogLevel  logging.LogLevel
	LogPretty bool
}

// Default returns the configuration used when no variables are set.
// APIKey has no default.
func Default() Config {
	return Config{
		BaseURL:        "https://otx.alienvault.com/api/v1/pulses/subscribed",
		MongoURI:       "mongodb://localhost:27017/",
		DBName:         "api_testing",
		CollectionName: "otx_pulses_raw",
		RequestTimeout: 20 * time.Second,
		MaxPages:       5,
		MaxRetries:     3,
		BackoffFactor:  2 * time.Second,
		LogLevel:       logging.LevelInfo,
	}
}

// Load reads .env (if present) and the environment. Variables already set in
// the environment win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// LoadFile is Load with an explicit .env path. A missing file is an error.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()

	cfg.APIKey = os.Getenv(EnvAPIKey)
	cfg.BaseURL = getEnv(EnvBaseURL, cfg.BaseURL)
	cfg.MongoURI = getEnv(EnvMongoURI, cfg.MongoURI)
	cfg.DBName = getEnv(EnvDBName, cfg.DBName)
	cfg.CollectionName = getEnv(EnvCollectionName, cfg.CollectionName)
	cfg.RedisURL = os.Getenv(EnvRedisURL)
	cfg.PushgatewayURL = os.Getenv(EnvPushgatewayURL)

	var err error
	if cfg.RequestTimeout, err = getSeconds(EnvRequestTimeout, cfg.RequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MaxPages, err = getInt(EnvMaxPages, cfg.MaxPages); err != nil {
		return Config{}, err
	}
	if cfg.MaxRetries, err = getInt(EnvMaxRetries, cfg.MaxRetries); err != nil {
		return Config{}, err
	}
	if cfg.BackoffFactor, err = getSeconds(EnvBackoffFactor, cfg.BackoffFactor); err != nil {
		return Config{}, err
	}
	if cfg.PageCacheTTL, err = getSeconds(EnvPageCacheTTL, cfg.PageCacheTTL); err != nil {
		return Config{}, err
	}
	if cfg.LogPretty, err = getBool(EnvLogPretty, cfg.LogPretty); err != nil {
		return Config{}, err
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		if !logging.ValidLevel(level) {
			return Config{}, fmt.Errorf("%s: unknown level %q", EnvLogLevel, level)
		}
		cfg.LogLevel = logging.LogLevel(level)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvRequestTimeout)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("%s must be positive", EnvMaxPages)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%s must be >= 0", EnvMaxRetries)
	}
	if c.BackoffFactor < 0 {
		return fmt.Errorf("%s must be >= 0", EnvBackoffFactor)
	}
	if c.PageCacheTTL < 0 {
		return fmt.Errorf("%s must be >= 0", EnvPageCacheTTL)
	}
	return nil
}

// CacheEnabled reports whether the Redis page cache should be used.
func (c Config) CacheEnabled() bool {
	return c.RedisURL != "" && c.PageCacheTTL > 0
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getSeconds parses a number of seconds; fractions are allowed.
func getSeconds(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func getBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
