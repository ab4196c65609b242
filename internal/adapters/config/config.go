package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"minerva/pkg/errors"
)

type Config struct {
	App           AppConfig
	AI            AIConfig
	MarketData    MarketDataConfig
	Router        RouterConfig
	Workers       WorkersConfig
	Session       SessionConfig
	Redis         RedisConfig
	Cache         CacheConfig
	HTTP          HTTPConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"minerva"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type AIConfig struct {
	OpenAIKey       string        `envconfig:"OPENAI_API_KEY"`
	DeepSeekKey     string        `envconfig:"DEEPSEEK_API_KEY"`
	DefaultProvider string        `envconfig:"AI_PROVIDER" default:"openai"`
	Model           string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	Timeout         time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
}

// MarketDataConfig holds credentials and tuning for the fallback chain.
// A missing optional API key removes that provider from the chain instead of
// failing startup; yahoo needs no key and terminates the chain.
type MarketDataConfig struct {
	AlphaVantageKey string        `envconfig:"ALPHAVANTAGE_API_KEY"`
	FinnhubKey      string        `envconfig:"FINNHUB_API_KEY"`
	ProviderOrder   []string      `envconfig:"PROVIDER_ORDER" default:"alphavantage,finnhub,yahoo"`
	RequestTimeout  time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	MaxRetries      int           `envconfig:"FETCH_MAX_RETRIES" default:"2"`
	InitialBackoff  time.Duration `envconfig:"FETCH_INITIAL_BACKOFF" default:"200ms"`
	MaxBackoff      time.Duration `envconfig:"FETCH_MAX_BACKOFF" default:"3s"`
}

type RouterConfig struct {
	// DepthThreshold is the depth score at which a query stops being SIMPLE.
	DepthThreshold int `envconfig:"ROUTER_DEPTH_THRESHOLD" default:"2"`
	// NarrowMargin marks SIMPLE classifications whose depth score landed
	// within this distance below DepthThreshold as escalation candidates.
	NarrowMargin int `envconfig:"ROUTER_NARROW_MARGIN" default:"1"`
}

type WorkersConfig struct {
	JuniorMaxIterations int     `envconfig:"JUNIOR_MAX_ITERATIONS" default:"5"`
	JuniorTemperature   float64 `envconfig:"JUNIOR_TEMPERATURE" default:"0.5"`
	MasterMaxIterations int     `envconfig:"MASTER_MAX_ITERATIONS" default:"10"`
	MasterTemperature   float64 `envconfig:"MASTER_TEMPERATURE" default:"0.7"`
	ExtractTemperature  float64 `envconfig:"EXTRACT_TEMPERATURE" default:"0.3"`
	// PreseedMaster runs a Junior pass before Master on multi-ticker classes
	// so the Master starts from already-fetched baseline data.
	PreseedMaster bool `envconfig:"WORKERS_PRESEED_MASTER" default:"false"`
}

type SessionConfig struct {
	MaxTurns int `envconfig:"SESSION_MAX_TURNS" default:"10"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Enabled reports whether a cache backend was configured at all.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type CacheConfig struct {
	QuoteTTL   time.Duration `envconfig:"CACHE_QUOTE_TTL" default:"30s"`
	ProfileTTL time.Duration `envconfig:"CACHE_PROFILE_TTL" default:"1h"`
	HistoryTTL time.Duration `envconfig:"CACHE_HISTORY_TTL" default:"5m"`
}

type HTTPConfig struct {
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
	Port           int  `envconfig:"HTTP_PORT" default:"8080"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MarketData.MaxRetries < 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "FETCH_MAX_RETRIES must be >= 0, got %d", c.MarketData.MaxRetries)
	}
	if c.Session.MaxTurns < 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "SESSION_MAX_TURNS must be >= 1, got %d", c.Session.MaxTurns)
	}
	if c.Router.DepthThreshold < 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "ROUTER_DEPTH_THRESHOLD must be >= 1, got %d", c.Router.DepthThreshold)
	}
	for _, name := range c.MarketData.ProviderOrder {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "alphavantage", "finnhub", "yahoo":
		default:
			return errors.Wrapf(errors.ErrInvalidInput, "unknown provider %q in PROVIDER_ORDER", name)
		}
	}
	return nil
}
