package market

import (
	"context"

	"minerva/internal/analysis"
	"minerva/internal/domain/marketdata"
	"minerva/internal/tools"
	"minerva/pkg/errors"
)

// NewTechnicalsTool computes indicator state from a ticker's price history.
// One call covers moving averages, RSI, trend and support/resistance so the
// model does not need to request raw candles and do the math itself.
func NewTechnicalsTool(deps Deps) tools.Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": tickerProperty(),
			"range":  rangeProperty(),
		},
		"required": []string{"ticker"},
	}

	return tools.New("analyze_technicals", "Compute SMA20/SMA50, RSI, trend direction and support/resistance levels for a stock ticker", schema,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if !deps.HasGateway() {
				return nil, errors.Wrapf(errors.ErrInternal, "analyze_technicals: data gateway not configured")
			}

			ticker := tickerArg(args)
			if ticker == "" {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "analyze_technicals: ticker is required")
			}
			rng := rangeArg(args, marketdata.Range3M)

			outcome := deps.Gateway.Fetch(ctx, ticker, marketdata.KindHistory, rng)
			record(ctx, outcome)

			success, ok := outcome.Success()
			if !ok {
				return nil, errors.Wrapf(errors.ErrUnavailable,
					"no provider could serve %s history for %s (%s)", rng, outcome.Ticker, outcome.FailureSummary())
			}

			report, err := analysis.Technicals(success.History)
			if err != nil {
				return nil, errors.Wrap(err, "analyze_technicals")
			}

			return map[string]interface{}{
				"ticker":     report.Ticker,
				"price":      report.Price,
				"sma_20":     report.SMA20,
				"sma_50":     report.SMA50,
				"rsi_14":     report.RSI14,
				"momentum":   report.Momentum,
				"trend":      report.Trend,
				"support":    report.Support,
				"resistance": report.Resistance,
				"change_pct": report.ChangePct,
				"atr_pct":    report.ATRPct,
				"summary":    report.Summary(),
				"source":     success.ProviderID,
			}, nil
		})
}
