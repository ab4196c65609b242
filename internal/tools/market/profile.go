package market

import (
	"context"

	"github.com/dustin/go-humanize"

	"minerva/internal/domain/marketdata"
	"minerva/internal/tools"
	"minerva/pkg/errors"
)

// NewProfileTool returns company fundamentals for a ticker.
func NewProfileTool(deps Deps) tools.Tool {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": tickerProperty(),
		},
		"required": []string{"ticker"},
	}

	return tools.New("get_company_profile", "Get company name, sector, industry and market cap for a stock ticker", schema,
		func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			if !deps.HasGateway() {
				return nil, errors.Wrapf(errors.ErrInternal, "get_company_profile: data gateway not configured")
			}

			ticker := tickerArg(args)
			if ticker == "" {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "get_company_profile: ticker is required")
			}

			outcome := deps.Gateway.Fetch(ctx, ticker, marketdata.KindProfile, "")
			record(ctx, outcome)

			success, ok := outcome.Success()
			if !ok {
				return nil, errors.Wrapf(errors.ErrUnavailable,
					"no provider could serve a profile for %s (%s)", outcome.Ticker, outcome.FailureSummary())
			}

			p := success.Profile
			result := map[string]interface{}{
				"ticker":   p.Ticker,
				"name":     p.Name,
				"exchange": p.Exchange,
				"sector":   p.Sector,
				"industry": p.Industry,
				"source":   success.ProviderID,
			}
			if p.MarketCap > 0 {
				result["market_cap"] = humanize.SIWithDigits(p.MarketCap, 2, "")
			}
			if p.PERatio > 0 {
				result["pe_ratio"] = p.PERatio
			}
			if p.Description != "" {
				result["description"] = p.Description
			}
			return result, nil
		})
}
