package gateway

import (
	"context"
	"fmt"
	"time"

	"minerva/internal/adapters/redis"
	"minerva/internal/domain/marketdata"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// CacheConfig contains configuration for market data caching
type CacheConfig struct {
	Enabled    bool
	QuoteTTL   time.Duration
	ProfileTTL time.Duration
	HistoryTTL time.Duration
}

// DefaultCacheConfig returns default configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:    true,
		QuoteTTL:   30 * time.Second,
		ProfileTTL: 1 * time.Hour,
		HistoryTTL: 5 * time.Minute,
	}
}

// Cache stores successful provider results in Redis so repeated look-ups
// within a short window do not burn provider quota. Cached entries keep the
// provider that originally served them.
type Cache struct {
	config CacheConfig
	redis  *redis.Client
	log    *logger.Logger
}

// NewCache creates a new market data cache
func NewCache(config CacheConfig, redisClient *redis.Client) *Cache {
	return &Cache{
		config: config,
		redis:  redisClient,
		log:    logger.Get().With("component", "marketdata_cache"),
	}
}

func (c *Cache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// Get retrieves a cached provider result. Returns nil on a miss.
func (c *Cache) Get(ctx context.Context, ticker string, kind marketdata.RequestKind, rng marketdata.HistoryRange) (*marketdata.ProviderResult, error) {
	if !c.enabled() {
		return nil, nil
	}

	key := cacheKey(ticker, kind, rng)

	var cached marketdata.ProviderResult
	if err := c.redis.Get(ctx, key, &cached); err != nil {
		if redis.IsNil(err) {
			metrics.RecordCacheOp("miss")
			return nil, nil
		}
		metrics.RecordCacheOp("error")
		return nil, errors.Wrap(err, "failed to get from cache")
	}

	cached.FromCache = true
	metrics.RecordCacheOp("hit")
	c.log.Debugw("Cache hit",
		"ticker", ticker,
		"kind", kind,
		"provider", cached.ProviderID,
		"age", time.Since(cached.Timestamp),
	)

	return &cached, nil
}

// Set stores a successful provider result in cache
func (c *Cache) Set(ctx context.Context, result marketdata.ProviderResult) error {
	if !c.enabled() || !result.Success() {
		return nil
	}

	key := cacheKey(result.Ticker, result.Kind, result.Range)

	if err := c.redis.Set(ctx, key, result, c.ttlFor(result.Kind)); err != nil {
		metrics.RecordCacheOp("error")
		return errors.Wrap(err, "failed to set cache")
	}

	metrics.RecordCacheOp("set")
	return nil
}

// Invalidate removes a cached entry
func (c *Cache) Invalidate(ctx context.Context, ticker string, kind marketdata.RequestKind, rng marketdata.HistoryRange) error {
	if !c.enabled() {
		return nil
	}
	return c.redis.Delete(ctx, cacheKey(ticker, kind, rng))
}

func (c *Cache) ttlFor(kind marketdata.RequestKind) time.Duration {
	switch kind {
	case marketdata.KindProfile:
		return c.config.ProfileTTL
	case marketdata.KindHistory:
		return c.config.HistoryTTL
	default:
		return c.config.QuoteTTL
	}
}

func cacheKey(ticker string, kind marketdata.RequestKind, rng marketdata.HistoryRange) string {
	if kind == marketdata.KindHistory {
		return fmt.Sprintf("md:%s:%s:%s", kind, ticker, rng)
	}
	return fmt.Sprintf("md:%s:%s", kind, ticker)
}
