package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"minerva/internal/adapters/providers/ratelimit"
	"minerva/internal/adapters/providers/retry"
	"minerva/internal/domain/marketdata"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Gateway routes market data requests through an ordered provider chain.
// Each provider is tried in turn; non-retryable failures advance the chain
// immediately, retryable ones advance after bounded same-provider retries.
// The first success short-circuits the remaining providers.
type Gateway struct {
	providers []marketdata.Provider
	limiter   *ratelimit.Registry
	retrier   *retry.Middleware
	cache     *Cache
	log       *logger.Logger
}

// New creates a gateway over an ordered provider chain
func New(providers []marketdata.Provider, limiter *ratelimit.Registry, cache *Cache, retryCfg retry.Config) (*Gateway, error) {
	if len(providers) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "at least one market data provider is required")
	}

	retryable := func(err error) bool {
		return marketdata.ClassifyError(err).Retryable()
	}

	return &Gateway{
		providers: providers,
		limiter:   limiter,
		retrier:   retry.New(retryCfg, retryable),
		cache:     cache,
		log:       logger.Get().With("component", "gateway"),
	}, nil
}

// Providers returns chain member names in fallback order
func (g *Gateway) Providers() []string {
	names := make([]string, len(g.providers))
	for i, p := range g.providers {
		names[i] = p.Name()
	}
	return names
}

// Fetch resolves one request against the provider chain. The returned
// outcome records every attempt in chain order, so callers can surface
// which providers failed and why even when a later one succeeded.
func (g *Gateway) Fetch(ctx context.Context, ticker string, kind marketdata.RequestKind, rng marketdata.HistoryRange) marketdata.Outcome {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	outcome := marketdata.Outcome{Ticker: ticker, Kind: kind}

	if cached, err := g.cache.Get(ctx, ticker, kind, rng); err != nil {
		g.log.Debugw("Cache lookup failed", "ticker", ticker, "kind", kind, "error", err)
	} else if cached != nil {
		outcome.Attempts = append(outcome.Attempts, *cached)
		return outcome
	}

	for _, provider := range g.providers {
		if !provider.Supports(kind) {
			outcome.Attempts = append(outcome.Attempts, marketdata.NewFailure(
				provider.Name(), ticker, kind,
				errors.Wrapf(errors.ErrUnsupportedRequest, "%s does not serve %s requests", provider.Name(), kind),
			))
			continue
		}

		attempt, err := g.try(ctx, provider, ticker, kind, rng)
		if err != nil {
			failure := marketdata.NewFailure(provider.Name(), ticker, kind, err)
			outcome.Attempts = append(outcome.Attempts, failure)
			g.log.Debugw("Provider attempt failed",
				"provider", provider.Name(),
				"ticker", ticker,
				"kind", kind,
				"failure", failure.Failure.Kind,
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		outcome.Attempts = append(outcome.Attempts, attempt)
		if err := g.cache.Set(ctx, attempt); err != nil {
			g.log.Debugw("Cache write failed", "ticker", ticker, "kind", kind, "error", err)
		}
		return outcome
	}

	g.log.Warnw("All providers failed",
		"ticker", ticker,
		"kind", kind,
		"failures", outcome.FailureSummary(),
	)
	return outcome
}

// FetchSet resolves the same request kind for several tickers concurrently.
// Results are keyed by normalized ticker.
func (g *Gateway) FetchSet(ctx context.Context, tickers []string, kind marketdata.RequestKind, rng marketdata.HistoryRange) map[string]marketdata.Outcome {
	results := make(map[string]marketdata.Outcome, len(tickers))
	if len(tickers) == 0 {
		return results
	}

	ch := make(chan marketdata.Outcome, len(tickers))
	var wg sync.WaitGroup
	for _, ticker := range tickers {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			ch <- g.Fetch(ctx, t, kind, rng)
		}(ticker)
	}
	wg.Wait()
	close(ch)

	for outcome := range ch {
		results[outcome.Ticker] = outcome
	}
	return results
}

// try runs a single provider with rate limiting and bounded retries
func (g *Gateway) try(ctx context.Context, provider marketdata.Provider, ticker string, kind marketdata.RequestKind, rng marketdata.HistoryRange) (marketdata.ProviderResult, error) {
	var (
		quote   *marketdata.Quote
		profile *marketdata.Profile
		history *marketdata.History
	)

	calls := 0
	start := time.Now()
	err := g.retrier.Do(ctx, func() error {
		calls++
		if err := g.limiter.Wait(ctx, provider.Name()); err != nil {
			return err
		}

		var err error
		switch kind {
		case marketdata.KindQuote:
			quote, err = provider.FetchQuote(ctx, ticker)
		case marketdata.KindProfile:
			profile, err = provider.FetchProfile(ctx, ticker)
		case marketdata.KindHistory:
			history, err = provider.FetchHistory(ctx, ticker, rng)
		default:
			err = errors.Wrapf(errors.ErrInvalidInput, "unknown request kind %q", kind)
		}
		return err
	})
	latency := time.Since(start)

	if calls > 1 {
		metrics.FetchRetries.WithLabelValues(provider.Name()).Add(float64(calls - 1))
	}

	if err != nil {
		metrics.RecordProviderFetch(provider.Name(), string(kind), string(marketdata.ClassifyError(err)), latency)
		return marketdata.ProviderResult{}, err
	}
	metrics.RecordProviderFetch(provider.Name(), string(kind), "success", latency)

	result := marketdata.NewSuccess(provider.Name(), ticker, kind)
	result.Quote = quote
	result.Profile = profile
	result.History = history
	if kind == marketdata.KindHistory {
		result.Range = rng
	}
	return result, nil
}
