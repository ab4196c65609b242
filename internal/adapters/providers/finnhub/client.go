package finnhub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"minerva/internal/domain/marketdata"
	"minerva/pkg/errors"
)

const (
	baseURL        = "https://finnhub.io/api/v1"
	defaultTimeout = 10 * time.Second
)

// Config configures the Finnhub client.
type Config struct {
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Finnhub adapter instance.
func NewClient(cfg Config) (marketdata.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "finnhub API key is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return &client{cfg: cfg}, nil
}

type client struct {
	cfg Config
}

func (c *client) Name() string { return "finnhub" }

func (c *client) Supports(kind marketdata.RequestKind) bool {
	switch kind {
	case marketdata.KindQuote, marketdata.KindProfile, marketdata.KindHistory:
		return true
	}
	return false
}

func (c *client) FetchQuote(ctx context.Context, ticker string) (*marketdata.Quote, error) {
	var res struct {
		Current       float64 `json:"c"`
		Change        float64 `json:"d"`
		ChangePercent float64 `json:"dp"`
		High          float64 `json:"h"`
		Low           float64 `json:"l"`
		Open          float64 `json:"o"`
		PrevClose     float64 `json:"pc"`
		Timestamp     int64   `json:"t"`
	}

	params := url.Values{"symbol": []string{ticker}}
	if err := c.get(ctx, "/quote", params, &res); err != nil {
		return nil, err
	}
	// Finnhub answers unknown symbols with an all-zero quote body
	if res.Current == 0 && res.Timestamp == 0 {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "finnhub has no quote for %s", ticker)
	}

	return &marketdata.Quote{
		Ticker:        ticker,
		Price:         decimal.NewFromFloat(res.Current),
		Currency:      "USD",
		Change:        decimal.NewFromFloat(res.Change),
		ChangePercent: res.ChangePercent,
		Timestamp:     time.Unix(res.Timestamp, 0).UTC(),
	}, nil
}

func (c *client) FetchProfile(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	var res struct {
		Name      string  `json:"name"`
		Ticker    string  `json:"ticker"`
		Exchange  string  `json:"exchange"`
		Industry  string  `json:"finnhubIndustry"`
		MarketCap float64 `json:"marketCapitalization"` // reported in millions
		Currency  string  `json:"currency"`
		WebURL    string  `json:"weburl"`
	}

	params := url.Values{"symbol": []string{ticker}}
	if err := c.get(ctx, "/stock/profile2", params, &res); err != nil {
		return nil, err
	}
	if res.Ticker == "" && res.Name == "" {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "finnhub has no profile for %s", ticker)
	}

	return &marketdata.Profile{
		Ticker:    ticker,
		Name:      res.Name,
		Exchange:  res.Exchange,
		Industry:  res.Industry,
		MarketCap: res.MarketCap * 1_000_000,
	}, nil
}

func (c *client) FetchHistory(ctx context.Context, ticker string, rng marketdata.HistoryRange) (*marketdata.History, error) {
	var res struct {
		Status  string    `json:"s"`
		Opens   []float64 `json:"o"`
		Highs   []float64 `json:"h"`
		Lows    []float64 `json:"l"`
		Closes  []float64 `json:"c"`
		Volumes []float64 `json:"v"`
		Times   []int64   `json:"t"`
	}

	to := time.Now()
	from := to.AddDate(0, 0, -rng.Days())
	params := url.Values{
		"symbol":     []string{ticker},
		"resolution": []string{"D"},
		"from":       []string{strconv.FormatInt(from.Unix(), 10)},
		"to":         []string{strconv.FormatInt(to.Unix(), 10)},
	}
	if err := c.get(ctx, "/stock/candle", params, &res); err != nil {
		return nil, err
	}
	if res.Status == "no_data" || len(res.Times) == 0 {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "finnhub has no candles for %s", ticker)
	}

	candles := make([]marketdata.Candle, 0, len(res.Times))
	for i, ts := range res.Times {
		candles = append(candles, marketdata.Candle{
			Time:   time.Unix(ts, 0).UTC(),
			Open:   at(res.Opens, i),
			High:   at(res.Highs, i),
			Low:    at(res.Lows, i),
			Close:  at(res.Closes, i),
			Volume: at(res.Volumes, i),
		})
	}

	return &marketdata.History{Ticker: ticker, Range: rng, Candles: candles}, nil
}

func (c *client) get(ctx context.Context, path string, params url.Values, target interface{}) error {
	params.Set("token", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "create finnhub request")
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "finnhub request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrUnavailable, "read finnhub response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrRateLimitExceeded, "finnhub throttled the request")
	case resp.StatusCode == http.StatusForbidden:
		// Free-tier keys get 403 on endpoints outside their plan (candles)
		return errors.Wrapf(errors.ErrUnsupportedRequest, "finnhub plan denies %s", path)
	case resp.StatusCode >= 500:
		return errors.Wrapf(errors.ErrUnavailable, "finnhub http %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return errors.Wrapf(errors.ErrExternal, "finnhub http %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.Wrap(err, "decode finnhub response")
	}
	return nil
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
