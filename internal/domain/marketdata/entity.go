package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestKind identifies one provider capability
type RequestKind string

const (
	KindQuote   RequestKind = "quote"
	KindProfile RequestKind = "profile"
	KindHistory RequestKind = "history"
)

// HistoryRange selects how far back a price series reaches
type HistoryRange string

const (
	Range1M HistoryRange = "1mo"
	Range3M HistoryRange = "3mo"
	Range6M HistoryRange = "6mo"
	Range1Y HistoryRange = "1y"
)

// Days returns the approximate calendar span of the range
func (r HistoryRange) Days() int {
	switch r {
	case Range1M:
		return 30
	case Range3M:
		return 90
	case Range6M:
		return 180
	case Range1Y:
		return 365
	default:
		return 90
	}
}

// Quote represents a point-in-time price snapshot
type Quote struct {
	Ticker        string          `json:"ticker"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent float64         `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Profile represents static company information
type Profile struct {
	Ticker      string  `json:"ticker"`
	Name        string  `json:"name"`
	Exchange    string  `json:"exchange,omitempty"`
	Sector      string  `json:"sector,omitempty"`
	Industry    string  `json:"industry,omitempty"`
	MarketCap   float64 `json:"market_cap,omitempty"`
	PERatio     float64 `json:"pe_ratio,omitempty"`
	Description string  `json:"description,omitempty"`
}

// Candle is one bar of a daily price series
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// History is an ordered (oldest first) price series for one ticker
type History struct {
	Ticker  string       `json:"ticker"`
	Range   HistoryRange `json:"range"`
	Candles []Candle     `json:"candles"`
}

// Closes extracts the chronological close series for indicator math
func (h *History) Closes() []float64 {
	out := make([]float64, len(h.Candles))
	for i, c := range h.Candles {
		out[i] = c.Close
	}
	return out
}

// Len returns the number of candles
func (h *History) Len() int { return len(h.Candles) }
