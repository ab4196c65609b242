package finnhub

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"minerva/internal/domain/marketdata"
	"minerva/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newClient(t *testing.T, status int, body string, lastURL *string) marketdata.Provider {
	t.Helper()

	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if lastURL != nil {
			*lastURL = r.URL.String()
		}
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	})}

	c, err := NewClient(Config{APIKey: "test-key", HTTPClient: httpClient})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without key, got %v", err)
	}
}

func TestFetchQuote(t *testing.T) {
	body := `{"c": 230.1, "d": 2.15, "dp": 0.94, "h": 231.5, "l": 228.2, "o": 229.0, "pc": 227.95, "t": 1748894400}`
	var lastURL string
	c := newClient(t, http.StatusOK, body, &lastURL)

	quote, err := c.FetchQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("fetch quote: %v", err)
	}

	if quote.Ticker != "AAPL" {
		t.Fatalf("expected ticker AAPL, got %s", quote.Ticker)
	}
	if quote.Price.StringFixed(2) != "230.10" {
		t.Fatalf("expected price 230.10, got %s", quote.Price)
	}
	if quote.ChangePercent != 0.94 {
		t.Fatalf("expected change percent 0.94, got %f", quote.ChangePercent)
	}
	if quote.Timestamp.Unix() != 1748894400 {
		t.Fatalf("expected unix timestamp carried, got %d", quote.Timestamp.Unix())
	}

	if !strings.Contains(lastURL, "/quote?") || !strings.Contains(lastURL, "token=test-key") {
		t.Fatalf("unexpected request URL: %s", lastURL)
	}
}

func TestFetchQuoteZeroBodyMeansUnknownSymbol(t *testing.T) {
	c := newClient(t, http.StatusOK, `{"c": 0, "d": 0, "dp": 0, "t": 0}`, nil)

	if _, err := c.FetchQuote(context.Background(), "ZZZZ"); !errors.Is(err, errors.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound for zero quote, got %v", err)
	}
}

func TestFetchProfileScalesMarketCap(t *testing.T) {
	body := `{"name": "Apple Inc", "ticker": "AAPL", "exchange": "NASDAQ NMS", "finnhubIndustry": "Technology", "marketCapitalization": 3500000, "currency": "USD"}`
	c := newClient(t, http.StatusOK, body, nil)

	profile, err := c.FetchProfile(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}

	// Finnhub reports cap in millions.
	if profile.MarketCap != 3.5e12 {
		t.Fatalf("expected market cap scaled to 3.5e12, got %f", profile.MarketCap)
	}
	if profile.Industry != "Technology" {
		t.Fatalf("unexpected industry: %s", profile.Industry)
	}
}

func TestFetchProfileEmptyMeansUnknownSymbol(t *testing.T) {
	c := newClient(t, http.StatusOK, `{}`, nil)

	if _, err := c.FetchProfile(context.Background(), "ZZZZ"); !errors.Is(err, errors.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound for empty profile, got %v", err)
	}
}

func TestFetchHistoryZipsArrays(t *testing.T) {
	body := `{"s": "ok",
		"t": [1748822400, 1748908800],
		"o": [100.0, 102.0],
		"h": [103.0, 105.0],
		"l": [99.0, 101.0],
		"c": [102.0, 104.0],
		"v": [1000, 1100]}`
	var lastURL string
	c := newClient(t, http.StatusOK, body, &lastURL)

	history, err := c.FetchHistory(context.Background(), "AAPL", marketdata.Range1M)
	if err != nil {
		t.Fatalf("fetch history: %v", err)
	}

	if len(history.Candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(history.Candles))
	}
	first := history.Candles[0]
	if first.Open != 100 || first.High != 103 || first.Low != 99 || first.Close != 102 || first.Volume != 1000 {
		t.Fatalf("unexpected first candle: %+v", first)
	}
	for _, fragment := range []string{"resolution=D", "from=", "to="} {
		if !strings.Contains(lastURL, fragment) {
			t.Fatalf("expected request URL to contain %s, got %s", fragment, lastURL)
		}
	}
}

func TestFetchHistoryNoData(t *testing.T) {
	c := newClient(t, http.StatusOK, `{"s": "no_data"}`, nil)

	if _, err := c.FetchHistory(context.Background(), "ZZZZ", marketdata.Range1M); !errors.Is(err, errors.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound for no_data, got %v", err)
	}
}

func TestPlanDenialMapsToUnsupported(t *testing.T) {
	c := newClient(t, http.StatusForbidden, `{"error": "You don't have access to this resource."}`, nil)

	if _, err := c.FetchHistory(context.Background(), "AAPL", marketdata.Range1M); !errors.Is(err, errors.ErrUnsupportedRequest) {
		t.Fatalf("expected ErrUnsupportedRequest for 403, got %v", err)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "throttled", status: http.StatusTooManyRequests, sentinel: errors.ErrRateLimitExceeded},
		{name: "server error", status: http.StatusInternalServerError, sentinel: errors.ErrUnavailable},
		{name: "client error", status: http.StatusUnauthorized, sentinel: errors.ErrExternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, tt.status, "{}", nil)

			if _, err := c.FetchQuote(context.Background(), "AAPL"); !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v for http %d, got %v", tt.sentinel, tt.status, err)
			}
		})
	}
}
