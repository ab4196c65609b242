package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"minerva/internal/domain/marketdata"
	"minerva/pkg/errors"
)

// SystemStatus reports what the engine can currently do
type SystemStatus struct {
	Service        string              `json:"service"`
	Version        string              `json:"version"`
	Uptime         string              `json:"uptime"`
	ActiveSessions int                 `json:"active_sessions"`
	DataProviders  []string            `json:"data_providers"`
	ChatModels     map[string][]string `json:"chat_models"`
	CacheEnabled   bool                `json:"cache_enabled"`
}

// Status assembles the live capability snapshot: the provider chain in its
// fallback order, the chat models each registered provider serves, and the
// session count.
func (s *Service) Status(ctx context.Context) (*SystemStatus, error) {
	count, err := s.sessions.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count sessions")
	}

	models, err := s.registry.ListModels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list chat models")
	}

	chatModels := make(map[string][]string, len(models))
	for provider, infos := range models {
		names := make([]string, 0, len(infos))
		for _, m := range infos {
			names = append(names, m.Name)
		}
		chatModels[provider] = names
	}

	return &SystemStatus{
		Service:        s.serviceName,
		Version:        s.version,
		Uptime:         time.Since(s.startTime).Round(time.Second).String(),
		ActiveSessions: count,
		DataProviders:  s.gateway.Providers(),
		ChatModels:     chatModels,
		CacheEnabled:   s.cacheEnabled,
	}, nil
}

// WorkerTier describes one analysis tier and the tools it may call
type WorkerTier struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Tools []string `json:"tools"`
}

// Capabilities lists the worker tiers in dispatch order
func (s *Service) Capabilities() []WorkerTier {
	out := make([]WorkerTier, len(s.tiers))
	copy(out, s.tiers)
	return out
}

// probeTicker is a liquid symbol every provider should know
const probeTicker = "AAPL"

// ProbeResult reports one connectivity check
type ProbeResult struct {
	Target  string `json:"target"`
	OK      bool   `json:"ok"`
	Detail  string `json:"detail"`
	Elapsed string `json:"elapsed"`
}

// TestConnectivity exercises the live dependencies: one quote through the
// provider chain and a model listing per chat provider. Intended for the
// CLI test command, not for probes on a hot path.
func (s *Service) TestConnectivity(ctx context.Context) []ProbeResult {
	results := make([]ProbeResult, 0, 3)

	start := time.Now()
	outcome := s.gateway.Fetch(ctx, probeTicker, marketdata.KindQuote, "")
	if res, ok := outcome.Success(); ok && res.Quote != nil {
		results = append(results, ProbeResult{
			Target:  "market_data",
			OK:      true,
			Detail:  fmt.Sprintf("%s quote %s via %s", probeTicker, res.Quote.Price.StringFixed(2), res.ProviderID),
			Elapsed: time.Since(start).Round(time.Millisecond).String(),
		})
	} else {
		results = append(results, ProbeResult{
			Target:  "market_data",
			OK:      false,
			Detail:  outcome.FailureSummary(),
			Elapsed: time.Since(start).Round(time.Millisecond).String(),
		})
	}

	chatProviders := s.registry.List()
	sort.Slice(chatProviders, func(i, j int) bool {
		return chatProviders[i].Name() < chatProviders[j].Name()
	})

	for _, provider := range chatProviders {
		providerStart := time.Now()
		models, err := provider.ListModels(ctx)
		if err != nil {
			results = append(results, ProbeResult{
				Target:  provider.Name(),
				OK:      false,
				Detail:  err.Error(),
				Elapsed: time.Since(providerStart).Round(time.Millisecond).String(),
			})
			continue
		}
		results = append(results, ProbeResult{
			Target:  provider.Name(),
			OK:      true,
			Detail:  fmt.Sprintf("%d models available", len(models)),
			Elapsed: time.Since(providerStart).Round(time.Millisecond).String(),
		})
	}

	return results
}
