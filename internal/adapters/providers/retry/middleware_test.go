package retry

import (
	"context"
	"strings"
	"testing"
	"time"

	"minerva/pkg/errors"
)

var errFlaky = errors.New("flaky upstream")

func fastConfig(maxRetries int) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Strategy:     StrategyFixed,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	m := New(fastConfig(3), func(error) bool { return true })

	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDoNonRetryableFailsFast(t *testing.T) {
	m := New(fastConfig(3), func(error) bool { return false })

	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected original error, got %v", err)
	}
	if strings.Contains(err.Error(), "max retries") {
		t.Fatalf("non-retryable error should not be wrapped: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call for non-retryable error, got %d", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	m := New(fastConfig(3), func(error) bool { return true })

	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	m := New(fastConfig(2), func(error) bool { return true })

	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected wrapped original error, got %v", err)
	}
	if !strings.Contains(err.Error(), "max retries (2) exceeded") {
		t.Fatalf("expected exhaustion message, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 1+2 calls, got %d", calls)
	}
}

func TestDoZeroRetriesMeansSingleAttempt(t *testing.T) {
	m := New(fastConfig(0), func(error) bool { return true })

	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("expected wrapped original error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single attempt, got %d", calls)
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = time.Second
	m := New(cfg, func(error) bool { return true })

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := m.Do(ctx, func() error {
		calls++
		cancel()
		return errFlaky
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		attempt int
		want    time.Duration
	}{
		{
			name:    "exponential grows",
			config:  Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Minute, Strategy: StrategyExponential, Multiplier: 2},
			attempt: 2,
			want:    400 * time.Millisecond,
		},
		{
			name:    "exponential capped",
			config:  Config{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Strategy: StrategyExponential, Multiplier: 2},
			attempt: 4,
			want:    300 * time.Millisecond,
		},
		{
			name:    "linear",
			config:  Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Minute, Strategy: StrategyLinear, Multiplier: 2},
			attempt: 2,
			want:    300 * time.Millisecond,
		},
		{
			name:    "fixed",
			config:  Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Minute, Strategy: StrategyFixed, Multiplier: 2},
			attempt: 4,
			want:    100 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.config, nil)
			if got := m.calculateDelay(tt.attempt); got != tt.want {
				t.Fatalf("calculateDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestNewNormalizesConfig(t *testing.T) {
	m := New(Config{MaxRetries: -1}, nil)

	if m.config.MaxRetries != 0 {
		t.Fatalf("expected negative retries clamped to 0, got %d", m.config.MaxRetries)
	}
	if m.config.Strategy != StrategyExponential {
		t.Fatalf("expected exponential default, got %s", m.config.Strategy)
	}
	if m.config.Multiplier != 2.0 {
		t.Fatalf("expected multiplier default 2.0, got %f", m.config.Multiplier)
	}

	// Nil classifier means nothing is retryable.
	calls := 0
	err := m.Do(context.Background(), func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 1 {
		t.Fatalf("expected single non-retried attempt, got calls=%d err=%v", calls, err)
	}
}
