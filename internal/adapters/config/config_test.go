package config

import (
	"testing"
	"time"

	"minerva/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := cfg.MarketData.ProviderOrder; len(got) != 3 || got[0] != "alphavantage" || got[1] != "finnhub" || got[2] != "yahoo" {
		t.Fatalf("unexpected default provider order: %v", got)
	}
	if cfg.MarketData.MaxRetries != 2 {
		t.Fatalf("expected 2 retries by default, got %d", cfg.MarketData.MaxRetries)
	}
	if cfg.Router.DepthThreshold != 2 || cfg.Router.NarrowMargin != 1 {
		t.Fatalf("unexpected router defaults: %+v", cfg.Router)
	}
	if cfg.Workers.JuniorMaxIterations != 5 || cfg.Workers.MasterMaxIterations != 10 {
		t.Fatalf("unexpected worker iteration defaults: %+v", cfg.Workers)
	}
	if cfg.Session.MaxTurns != 10 {
		t.Fatalf("expected 10 session turns by default, got %d", cfg.Session.MaxTurns)
	}
	if cfg.Cache.QuoteTTL != 30*time.Second {
		t.Fatalf("expected 30s quote TTL, got %s", cfg.Cache.QuoteTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PROVIDER_ORDER", "yahoo")
	t.Setenv("SESSION_MAX_TURNS", "25")
	t.Setenv("JUNIOR_TEMPERATURE", "0.9")
	t.Setenv("CACHE_QUOTE_TTL", "45s")
	t.Setenv("WORKERS_PRESEED_MASTER", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := cfg.MarketData.ProviderOrder; len(got) != 1 || got[0] != "yahoo" {
		t.Fatalf("expected single yahoo provider, got %v", got)
	}
	if cfg.Session.MaxTurns != 25 {
		t.Fatalf("expected 25 session turns, got %d", cfg.Session.MaxTurns)
	}
	if cfg.Workers.JuniorTemperature != 0.9 {
		t.Fatalf("expected junior temperature 0.9, got %f", cfg.Workers.JuniorTemperature)
	}
	if cfg.Cache.QuoteTTL != 45*time.Second {
		t.Fatalf("expected 45s quote TTL, got %s", cfg.Cache.QuoteTTL)
	}
	if !cfg.Workers.PreseedMaster {
		t.Fatal("expected master preseed enabled")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("PROVIDER_ORDER", "alphavantage,bloomberg")

	if _, err := Load(); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown provider, got %v", err)
	}
}

func TestLoadRejectsBadBounds(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero session turns", key: "SESSION_MAX_TURNS", value: "0"},
		{name: "zero depth threshold", key: "ROUTER_DEPTH_THRESHOLD", value: "0"},
		{name: "negative retries", key: "FETCH_MAX_RETRIES", value: "-1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); !errors.Is(err, errors.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRedisConfigAddr(t *testing.T) {
	cfg := RedisConfig{Host: "localhost", Port: 6380}
	if cfg.Addr() != "localhost:6380" {
		t.Fatalf("unexpected addr: %s", cfg.Addr())
	}
	if !cfg.Enabled() {
		t.Fatal("expected cache enabled with host set")
	}
	if (RedisConfig{}).Enabled() {
		t.Fatal("expected cache disabled without host")
	}
}
