package retry

import (
	"context"
	"math"
	"time"

	"minerva/pkg/errors"
)

// Strategy defines the backoff strategy
type Strategy string

const (
	// StrategyExponential uses exponential backoff
	StrategyExponential Strategy = "exponential"
	// StrategyLinear uses linear backoff
	StrategyLinear Strategy = "linear"
	// StrategyFixed uses fixed delay
	StrategyFixed Strategy = "fixed"
)

// Config contains retry configuration. MaxRetries counts retries after the
// first attempt, so a call makes at most MaxRetries+1 attempts.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     Strategy
	Multiplier   float64 // For exponential backoff
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
	}
}

// Middleware retries a call while the injected classifier reports the error
// as retryable. Each Do call owns its attempt counter, so concurrent fetches
// never share backoff state.
type Middleware struct {
	config    Config
	retryable func(error) bool
}

// New creates a retry middleware. MaxRetries of 0 is valid and means a
// single attempt. retryable decides which failures are worth repeating
// against the same target.
func New(config Config, retryable func(error) bool) *Middleware {
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 200 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 3 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Strategy == "" {
		config.Strategy = StrategyExponential
	}
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	return &Middleware{config: config, retryable: retryable}
}

// Do executes the function with retry logic
func (m *Middleware) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !m.retryable(err) {
			return err
		}

		// Don't sleep after last attempt
		if attempt == m.config.MaxRetries {
			break
		}

		delay := m.calculateDelay(attempt)

		// Wait with context cancellation support
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry cancelled")
		case <-time.After(delay):
			// Continue to next attempt
		}
	}

	return errors.Wrapf(lastErr, "max retries (%d) exceeded", m.config.MaxRetries)
}

// calculateDelay calculates the backoff delay based on the strategy
func (m *Middleware) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch m.config.Strategy {
	case StrategyExponential:
		// Exponential: delay = initial * (multiplier ^ attempt)
		delay = time.Duration(float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(attempt)))

	case StrategyLinear:
		// Linear: delay = initial * (1 + attempt)
		delay = m.config.InitialDelay * time.Duration(1+attempt)

	case StrategyFixed:
		// Fixed: always use initial delay
		delay = m.config.InitialDelay

	default:
		delay = m.config.InitialDelay
	}

	// Cap at max delay
	if delay > m.config.MaxDelay {
		delay = m.config.MaxDelay
	}

	return delay
}
