package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"

	"minerva/internal/domain/marketdata"
	"minerva/pkg/errors"
)

// MinCandles is the shortest history that still yields SMA20 and RSI14
const MinCandles = 21

// TechnicalReport summarizes indicator state for one ticker
type TechnicalReport struct {
	Ticker     string  `json:"ticker"`
	Price      float64 `json:"price"`
	SMA20      float64 `json:"sma_20"`
	SMA50      float64 `json:"sma_50,omitempty"`
	RSI14      float64 `json:"rsi_14"`
	Momentum   string  `json:"momentum"` // oversold|bearish|neutral|bullish|overbought
	Trend      string  `json:"trend"`    // uptrend|downtrend|sideways
	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`
	ChangePct  float64 `json:"change_pct"`           // over the whole window
	ATRPct     float64 `json:"atr_pct,omitempty"`    // ATR(14) as percent of price
	Candles    int     `json:"candles"`
}

// Technicals computes the indicator report from a chronological price series
func Technicals(h *marketdata.History) (*TechnicalReport, error) {
	if h == nil || h.Len() < MinCandles {
		got := 0
		if h != nil {
			got = h.Len()
		}
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"technical analysis requires at least %d candles, got %d", MinCandles, got)
	}

	closes := h.Closes()
	price := closes[len(closes)-1]

	report := &TechnicalReport{
		Ticker:  h.Ticker,
		Price:   round2(price),
		Candles: h.Len(),
	}

	report.SMA20 = round2(last(talib.Sma(closes, 20)))
	if h.Len() >= 50 {
		report.SMA50 = round2(last(talib.Sma(closes, 50)))
	}

	rsi := last(talib.Rsi(closes, 14))
	report.RSI14 = round2(rsi)
	report.Momentum = momentumSignal(rsi)
	report.Trend = trendSignal(price, report.SMA20, report.SMA50)

	report.Support, report.Resistance = supportResistance(h.Candles)

	first := closes[0]
	if first > 0 {
		report.ChangePct = round2((price - first) / first * 100)
	}

	if h.Len() >= 15 && price > 0 {
		high := make([]float64, h.Len())
		low := make([]float64, h.Len())
		for i, c := range h.Candles {
			high[i] = c.High
			low[i] = c.Low
		}
		atr := last(talib.Atr(high, low, closes, 14))
		report.ATRPct = round2(atr / price * 100)
	}

	return report, nil
}

// Summary renders the report as one compact line for model consumption
func (r *TechnicalReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: price %.2f, SMA20 %.2f", r.Ticker, r.Price, r.SMA20)
	if r.SMA50 > 0 {
		fmt.Fprintf(&b, ", SMA50 %.2f", r.SMA50)
	}
	fmt.Fprintf(&b, ", RSI14 %.1f (%s), trend %s, support %.2f, resistance %.2f, window change %+.1f%%",
		r.RSI14, r.Momentum, r.Trend, r.Support, r.Resistance, r.ChangePct)
	if r.ATRPct > 0 {
		fmt.Fprintf(&b, ", ATR %.1f%%", r.ATRPct)
	}
	return b.String()
}

func momentumSignal(rsi float64) string {
	switch {
	case rsi < 30:
		return "oversold"
	case rsi > 70:
		return "overbought"
	case rsi > 50:
		return "bullish"
	case rsi > 0:
		return "bearish"
	default:
		return "neutral"
	}
}

func trendSignal(price, sma20, sma50 float64) string {
	// Without SMA50 fall back to price vs SMA20 with a 1% dead zone
	if sma50 == 0 {
		switch {
		case price > sma20*1.01:
			return "uptrend"
		case price < sma20*0.99:
			return "downtrend"
		default:
			return "sideways"
		}
	}

	switch {
	case price > sma20 && sma20 > sma50:
		return "uptrend"
	case price < sma20 && sma20 < sma50:
		return "downtrend"
	default:
		return "sideways"
	}
}

// supportResistance derives naive levels from the recent window extremes
func supportResistance(candles []marketdata.Candle) (float64, float64) {
	lookback := 20
	if len(candles) < lookback {
		lookback = len(candles)
	}
	recent := candles[len(candles)-lookback:]

	support := recent[0].Low
	resistance := recent[0].High
	for _, c := range recent {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}
	return round2(support), round2(resistance)
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
