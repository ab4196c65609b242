package yahoo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"minerva/internal/domain/marketdata"
	"minerva/pkg/errors"
)

const (
	baseURL        = "https://query1.finance.yahoo.com/v8/finance/chart"
	defaultTimeout = 10 * time.Second
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

// Config configures the Yahoo Finance chart client. No API key: this is the
// keyless terminal fallback of the provider chain.
type Config struct {
	HTTPClient *http.Client
}

// NewClient creates a new Yahoo Finance adapter instance.
func NewClient(cfg Config) marketdata.Provider {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return &client{cfg: cfg}
}

type client struct {
	cfg Config
}

func (c *client) Name() string { return "yahoo" }

// Supports excludes PROFILE: the public chart endpoint carries no company
// fundamentals, so profile requests classify as UNSUPPORTED and the chain
// moves on.
func (c *client) Supports(kind marketdata.RequestKind) bool {
	return kind == marketdata.KindQuote || kind == marketdata.KindHistory
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamps []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Opens   []float64 `json:"open"`
					Highs   []float64 `json:"high"`
					Lows    []float64 `json:"low"`
					Closes  []float64 `json:"close"`
					Volumes []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *client) FetchQuote(ctx context.Context, ticker string) (*marketdata.Quote, error) {
	res, err := c.chart(ctx, ticker, url.Values{
		"range":    []string{"5d"},
		"interval": []string{"1d"},
	})
	if err != nil {
		return nil, err
	}

	meta := res.Chart.Result[0].Meta
	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	prev := decimal.NewFromFloat(meta.PreviousClose)
	change := price.Sub(prev)
	changePct := 0.0
	if meta.PreviousClose != 0 {
		pct, _ := change.Div(prev).Mul(decimal.NewFromInt(100)).Float64()
		changePct = pct
	}

	return &marketdata.Quote{
		Ticker:        meta.Symbol,
		Price:         price,
		Currency:      meta.Currency,
		Change:        change,
		ChangePercent: changePct,
		Timestamp:     time.Unix(meta.RegularMarketTime, 0).UTC(),
	}, nil
}

func (c *client) FetchProfile(_ context.Context, ticker string) (*marketdata.Profile, error) {
	return nil, errors.Wrapf(errors.ErrUnsupportedRequest, "yahoo chart API has no profile for %s", ticker)
}

func (c *client) FetchHistory(ctx context.Context, ticker string, rng marketdata.HistoryRange) (*marketdata.History, error) {
	res, err := c.chart(ctx, ticker, url.Values{
		"range":    []string{string(rng)},
		"interval": []string{"1d"},
	})
	if err != nil {
		return nil, err
	}

	result := res.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamps) == 0 {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "yahoo has no candles for %s", ticker)
	}

	bars := result.Indicators.Quote[0]
	candles := make([]marketdata.Candle, 0, len(result.Timestamps))
	for i, ts := range result.Timestamps {
		candles = append(candles, marketdata.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(bars.Opens, i),
			High:   at(bars.Highs, i),
			Low:    at(bars.Lows, i),
			Close:  at(bars.Closes, i),
			Volume: at(bars.Volumes, i),
		})
	}

	return &marketdata.History{Ticker: ticker, Range: rng, Candles: candles}, nil
}

func (c *client) chart(ctx context.Context, ticker string, params url.Values) (*chartResponse, error) {
	reqURL := baseURL + "/" + url.PathEscape(ticker) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create yahoo request")
	}
	// Yahoo throttles default Go user agents aggressively
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "yahoo request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "read yahoo response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.Wrap(errors.ErrRateLimitExceeded, "yahoo throttled the request")
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "yahoo does not know %s", ticker)
	case resp.StatusCode >= 500:
		return nil, errors.Wrapf(errors.ErrUnavailable, "yahoo http %d", resp.StatusCode)
	}

	var res chartResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, errors.Wrap(err, "decode yahoo response")
	}
	if res.Chart.Error != nil {
		if res.Chart.Error.Code == "Not Found" {
			return nil, errors.Wrapf(errors.ErrSymbolNotFound, "yahoo: %s", res.Chart.Error.Description)
		}
		return nil, errors.Wrapf(errors.ErrExternal, "yahoo: %s: %s", res.Chart.Error.Code, res.Chart.Error.Description)
	}
	if len(res.Chart.Result) == 0 {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "yahoo returned empty chart for %s", ticker)
	}
	return &res, nil
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
