package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"minerva/pkg/errors"
)

// Limiter provides client-side rate limiting for market-data API calls
type Limiter struct {
	limiter *rate.Limiter
	name    string
}

// NewLimiter creates a new rate limiter
// requestsPerMinute: maximum number of requests allowed per minute
func NewLimiter(name string, requestsPerMinute int) *Limiter {
	// Convert to requests per second
	rps := float64(requestsPerMinute) / 60.0

	// Allow burst of 10% of per-minute limit
	burst := requestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		name:    name,
	}
}

// Wait blocks until the rate limiter allows the request
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "rate limiter %s", l.name)
	}
	return nil
}

// Allow checks if a request is allowed without blocking
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Registry holds one limiter per market-data provider
type Registry struct {
	limiters map[string]*Limiter
	mu       sync.RWMutex
}

// NewRegistry creates limiters tuned to each provider's published tier.
// Alpha Vantage free tier is effectively 5 req/min; finnhub allows 60;
// yahoo's chart endpoint tolerates far more but stays conservative here.
func NewRegistry() *Registry {
	r := &Registry{limiters: make(map[string]*Limiter)}
	r.Add("alphavantage", NewLimiter("alphavantage", 5))
	r.Add("finnhub", NewLimiter("finnhub", 60))
	r.Add("yahoo", NewLimiter("yahoo", 120))
	return r
}

// Add registers a limiter for a provider name
func (r *Registry) Add(name string, limiter *Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[name] = limiter
}

// Wait blocks on the named provider's limiter; unknown names pass through
func (r *Registry) Wait(ctx context.Context, name string) error {
	r.mu.RLock()
	l, ok := r.limiters[name]
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
