package market

import (
	"context"
	"time"

	"minerva/internal/domain/marketdata"
	"minerva/internal/tools"
	"minerva/pkg/errors"
)

// NewQuoteTool returns the latest price snapshot for a ticker.
func NewQuoteTool(deps Deps) tools.Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": tickerProperty(),
		},
		"required": []string{"ticker"},
	}

	return tools.New("get_stock_quote", "Get the current price, change and volume for a stock ticker", schema,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if !deps.HasGateway() {
				return nil, errors.Wrapf(errors.ErrInternal, "get_stock_quote: data gateway not configured")
			}

			ticker := tickerArg(args)
			if ticker == "" {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "get_stock_quote: ticker is required")
			}

			outcome := deps.Gateway.Fetch(ctx, ticker, marketdata.KindQuote, "")
			record(ctx, outcome)

			success, ok := outcome.Success()
			if !ok {
				return nil, errors.Wrapf(errors.ErrUnavailable,
					"no provider could serve a quote for %s (%s)", outcome.Ticker, outcome.FailureSummary())
			}

			q := success.Quote
			return map[string]interface{}{
				"ticker":         q.Ticker,
				"price":          q.Price,
				"currency":       q.Currency,
				"change":         q.Change,
				"change_percent": q.ChangePercent,
				"volume":         q.Volume,
				"as_of":          q.Timestamp.Format(time.RFC3339),
				"source":         success.ProviderID,
			}, nil
		})
}
