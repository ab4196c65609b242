package market

import (
	"minerva/internal/domain/marketdata"
	"minerva/internal/gateway"
)

// Deps carries shared dependencies for market data tools
type Deps struct {
	Gateway *gateway.Gateway
}

// HasGateway reports whether the data gateway is wired
func (d Deps) HasGateway() bool {
	return d.Gateway != nil
}

func tickerArg(args map[string]interface{}) string {
	ticker, _ := args["ticker"].(string)
	return ticker
}

func rangeArg(args map[string]interface{}, fallback marketdata.HistoryRange) marketdata.HistoryRange {
	raw, _ := args["range"].(string)
	switch marketdata.HistoryRange(raw) {
	case marketdata.Range1M, marketdata.Range3M, marketdata.Range6M, marketdata.Range1Y:
		return marketdata.HistoryRange(raw)
	}
	return fallback
}

func tickerProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Stock ticker symbol, e.g. AAPL",
	}
}

func rangeProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"1mo", "3mo", "6mo", "1y"},
		"description": "How far back the price series reaches (default 3mo)",
	}
}
