package market

import (
	"context"
	"time"

	"minerva/internal/domain/marketdata"
	"minerva/internal/tools"
	"minerva/pkg/errors"
)

// NewHistoryTool loads a daily price series for a ticker.
func NewHistoryTool(deps Deps) tools.Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": tickerProperty(),
			"range":  rangeProperty(),
		},
		"required": []string{"ticker"},
	}

	return tools.New("get_price_history", "Get daily OHLCV candles for a stock ticker over a lookback window", schema,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if !deps.HasGateway() {
				return nil, errors.Wrapf(errors.ErrInternal, "get_price_history: data gateway not configured")
			}

			ticker := tickerArg(args)
			if ticker == "" {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "get_price_history: ticker is required")
			}
			rng := rangeArg(args, marketdata.Range3M)

			outcome := deps.Gateway.Fetch(ctx, ticker, marketdata.KindHistory, rng)
			record(ctx, outcome)

			success, ok := outcome.Success()
			if !ok {
				return nil, errors.Wrapf(errors.ErrUnavailable,
					"no provider could serve %s history for %s (%s)", rng, outcome.Ticker, outcome.FailureSummary())
			}

			h := success.History
			candles := make([]map[string]interface{}, 0, h.Len())
			for _, c := range h.Candles {
				candles = append(candles, map[string]interface{}{
					"date":   c.Time.Format("2006-01-02"),
					"open":   c.Open,
					"high":   c.High,
					"low":    c.Low,
					"close":  c.Close,
					"volume": c.Volume,
				})
			}

			first, last := time.Time{}, time.Time{}
			if h.Len() > 0 {
				first = h.Candles[0].Time
				last = h.Candles[h.Len()-1].Time
			}

			return map[string]interface{}{
				"ticker":  h.Ticker,
				"range":   string(h.Range),
				"from":    first.Format("2006-01-02"),
				"to":      last.Format("2006-01-02"),
				"candles": candles,
				"source":  success.ProviderID,
			}, nil
		})
}
