package alphavantage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"minerva/internal/domain/marketdata"
	"minerva/pkg/errors"
)

const (
	baseURL        = "https://www.alphavantage.co/query"
	defaultTimeout = 10 * time.Second
)

// Config configures the Alpha Vantage client.
type Config struct {
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Alpha Vantage adapter instance.
func NewClient(cfg Config) (marketdata.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "alphavantage API key is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	return &client{cfg: cfg}, nil
}

type client struct {
	cfg Config
}

func (c *client) Name() string { return "alphavantage" }

func (c *client) Supports(kind marketdata.RequestKind) bool {
	switch kind {
	case marketdata.KindQuote, marketdata.KindProfile, marketdata.KindHistory:
		return true
	}
	return false
}

func (c *client) FetchQuote(ctx context.Context, ticker string) (*marketdata.Quote, error) {
	var res struct {
		GlobalQuote struct {
			Symbol        string `json:"01. symbol"`
			Price         string `json:"05. price"`
			Volume        string `json:"06. volume"`
			LatestTrading string `json:"07. latest trading day"`
			Change        string `json:"09. change"`
			ChangePercent string `json:"10. change percent"`
		} `json:"Global Quote"`
	}

	params := url.Values{
		"function": []string{"GLOBAL_QUOTE"},
		"symbol":   []string{ticker},
	}
	if err := c.get(ctx, params, &res); err != nil {
		return nil, err
	}
	if res.GlobalQuote.Symbol == "" {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "alphavantage has no quote for %s", ticker)
	}

	ts, err := time.Parse("2006-01-02", res.GlobalQuote.LatestTrading)
	if err != nil {
		ts = time.Now().UTC()
	}
	volume, _ := strconv.ParseInt(res.GlobalQuote.Volume, 10, 64)
	changePct, _ := strconv.ParseFloat(strings.TrimSuffix(res.GlobalQuote.ChangePercent, "%"), 64)

	return &marketdata.Quote{
		Ticker:        res.GlobalQuote.Symbol,
		Price:         dec(res.GlobalQuote.Price),
		Currency:      "USD",
		Change:        dec(res.GlobalQuote.Change),
		ChangePercent: changePct,
		Volume:        volume,
		Timestamp:     ts,
	}, nil
}

func (c *client) FetchProfile(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	var res struct {
		Symbol      string `json:"Symbol"`
		Name        string `json:"Name"`
		Exchange    string `json:"Exchange"`
		Sector      string `json:"Sector"`
		Industry    string `json:"Industry"`
		MarketCap   string `json:"MarketCapitalization"`
		PERatio     string `json:"PERatio"`
		Description string `json:"Description"`
	}

	params := url.Values{
		"function": []string{"OVERVIEW"},
		"symbol":   []string{ticker},
	}
	if err := c.get(ctx, params, &res); err != nil {
		return nil, err
	}
	if res.Symbol == "" {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "alphavantage has no overview for %s", ticker)
	}

	marketCap, _ := strconv.ParseFloat(res.MarketCap, 64)
	peRatio, _ := strconv.ParseFloat(res.PERatio, 64)

	return &marketdata.Profile{
		Ticker:      res.Symbol,
		Name:        res.Name,
		Exchange:    res.Exchange,
		Sector:      res.Sector,
		Industry:    res.Industry,
		MarketCap:   marketCap,
		PERatio:     peRatio,
		Description: res.Description,
	}, nil
}

func (c *client) FetchHistory(ctx context.Context, ticker string, rng marketdata.HistoryRange) (*marketdata.History, error) {
	var res struct {
		Series map[string]struct {
			Open   string `json:"1. open"`
			High   string `json:"2. high"`
			Low    string `json:"3. low"`
			Close  string `json:"4. close"`
			Volume string `json:"5. volume"`
		} `json:"Time Series (Daily)"`
	}

	outputSize := "compact" // last ~100 trading days
	if rng.Days() > 100 {
		outputSize = "full"
	}
	params := url.Values{
		"function":   []string{"TIME_SERIES_DAILY"},
		"symbol":     []string{ticker},
		"outputsize": []string{outputSize},
	}
	if err := c.get(ctx, params, &res); err != nil {
		return nil, err
	}
	if len(res.Series) == 0 {
		return nil, errors.Wrapf(errors.ErrSymbolNotFound, "alphavantage has no daily series for %s", ticker)
	}

	cutoff := time.Now().AddDate(0, 0, -rng.Days())
	candles := make([]marketdata.Candle, 0, len(res.Series))
	for day, bar := range res.Series {
		t, err := time.Parse("2006-01-02", day)
		if err != nil || t.Before(cutoff) {
			continue
		}
		candles = append(candles, marketdata.Candle{
			Time:   t,
			Open:   f64(bar.Open),
			High:   f64(bar.High),
			Low:    f64(bar.Low),
			Close:  f64(bar.Close),
			Volume: f64(bar.Volume),
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })

	return &marketdata.History{Ticker: ticker, Range: rng, Candles: candles}, nil
}

// get performs one API call and maps transport plus throttle conditions onto
// the classified error sentinels. Alpha Vantage signals its soft rate limit
// as HTTP 200 with a "Note"/"Information" body, so that is sniffed before
// decoding the target.
func (c *client) get(ctx context.Context, params url.Values, target interface{}) error {
	params.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "create alphavantage request")
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "alphavantage request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.ErrUnavailable, "read alphavantage response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrRateLimitExceeded, "alphavantage throttled the request")
	case resp.StatusCode >= 500:
		return errors.Wrapf(errors.ErrUnavailable, "alphavantage http %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return errors.Wrapf(errors.ErrExternal, "alphavantage http %d: %s", resp.StatusCode, string(body))
	}

	var throttle struct {
		Note        string `json:"Note"`
		Information string `json:"Information"`
		ErrMessage  string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &throttle); err == nil {
		if throttle.Note != "" || throttle.Information != "" {
			return errors.Wrap(errors.ErrRateLimitExceeded, "alphavantage daily/minute quota reached")
		}
		if throttle.ErrMessage != "" {
			return errors.Wrapf(errors.ErrSymbolNotFound, "alphavantage: %s", throttle.ErrMessage)
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.Wrap(err, "decode alphavantage response")
	}
	return nil
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func f64(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}
