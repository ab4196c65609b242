package agents

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"minerva/internal/adapters/config"
	"minerva/internal/domain/conversation"
	"minerva/internal/domain/marketdata"
	"minerva/pkg/errors"
)

func TestParseVerdict(t *testing.T) {
	testCases := []struct {
		name           string
		text           string
		wantConfidence conversation.Confidence
		wantReason     string
		wantCleaned    string
	}{
		{
			name:           "no verdict block",
			text:           "AAPL looks strong this quarter.",
			wantConfidence: conversation.ConfidenceHigh,
			wantCleaned:    "AAPL looks strong this quarter.",
		},
		{
			name:           "trailing low verdict",
			text:           "AAPL looks strong.\n{\"confidence\": \"LOW\", \"reason\": \"needs fundamental data\"}",
			wantConfidence: conversation.ConfidenceLow,
			wantReason:     "needs fundamental data",
			wantCleaned:    "AAPL looks strong.",
		},
		{
			name:           "trailing high verdict stripped",
			text:           "MSFT is fairly valued.\n{\"confidence\": \"HIGH\"}",
			wantConfidence: conversation.ConfidenceHigh,
			wantCleaned:    "MSFT is fairly valued.",
		},
		{
			name:           "lowercase low",
			text:           "Unsure here. {\"confidence\": \"low\"}",
			wantConfidence: conversation.ConfidenceLow,
			wantCleaned:    "Unsure here.",
		},
		{
			name:           "data json without confidence key survives",
			text:           "Figures: {\"price\": 230.1, \"volume\": 1000} as fetched.",
			wantConfidence: conversation.ConfidenceHigh,
			wantCleaned:    "Figures: {\"price\": 230.1, \"volume\": 1000} as fetched.",
		},
		{
			name:           "data json kept when verdict follows",
			text:           "Figures: {\"price\": 230.1}.\n{\"confidence\": \"LOW\", \"reason\": \"stale data\"}",
			wantConfidence: conversation.ConfidenceLow,
			wantReason:     "stale data",
			wantCleaned:    "Figures: {\"price\": 230.1}.",
		},
		{
			name:           "verdict only leaves empty answer",
			text:           "{\"confidence\": \"LOW\", \"reason\": \"scope\"}",
			wantConfidence: conversation.ConfidenceLow,
			wantReason:     "scope",
			wantCleaned:    "",
		},
		{
			name:           "nested verdict payload",
			text:           "Done.\n{\"confidence\": \"LOW\", \"reason\": \"complex\", \"detail\": {\"depth\": 2}}",
			wantConfidence: conversation.ConfidenceLow,
			wantReason:     "complex",
			wantCleaned:    "Done.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			confidence, reason, cleaned := parseVerdict(tc.text)
			if confidence != tc.wantConfidence {
				t.Errorf("confidence = %s, want %s", confidence, tc.wantConfidence)
			}
			if reason != tc.wantReason {
				t.Errorf("reason = %q, want %q", reason, tc.wantReason)
			}
			if cleaned != tc.wantCleaned {
				t.Errorf("cleaned = %q, want %q", cleaned, tc.wantCleaned)
			}
		})
	}
}

func TestMissingTickers(t *testing.T) {
	results := []marketdata.ProviderResult{
		marketdata.NewSuccess("finnhub", "AAPL", marketdata.KindQuote),
		marketdata.NewFailure("finnhub", "MSFT", marketdata.KindQuote,
			errors.Wrap(errors.ErrSymbolNotFound, "unknown")),
	}

	missing := missingTickers([]string{"AAPL", "MSFT"}, results)
	if len(missing) != 1 || missing[0] != "MSFT" {
		t.Errorf("missing = %v, want [MSFT]", missing)
	}

	// Requested casing is irrelevant; results are keyed normalized.
	missing = missingTickers([]string{"aapl"}, results)
	if len(missing) != 0 {
		t.Errorf("lowercase request should match normalized result, got %v", missing)
	}

	missing = missingTickers([]string{"NVDA"}, nil)
	if len(missing) != 1 {
		t.Errorf("no results means everything is missing, got %v", missing)
	}

	if missing := missingTickers(nil, results); missing != nil {
		t.Errorf("no requested tickers means nothing is missing, got %v", missing)
	}
}

func TestOutcomeLine(t *testing.T) {
	quote := marketdata.NewSuccess("finnhub", "AAPL", marketdata.KindQuote)
	quote.Quote = &marketdata.Quote{
		Ticker:        "AAPL",
		Price:         decimal.NewFromFloat(230.10),
		Currency:      "USD",
		Change:        decimal.NewFromFloat(2.15),
		ChangePercent: 0.94,
		Volume:        54123000,
	}
	line := outcomeLine(marketdata.Outcome{Ticker: "AAPL", Kind: marketdata.KindQuote, Attempts: []marketdata.ProviderResult{quote}})
	want := "AAPL quote: 230.10 USD, change 2.15 (+0.94%), volume 54,123,000 [finnhub]"
	if line != want {
		t.Errorf("quote line = %q, want %q", line, want)
	}

	history := marketdata.NewSuccess("yahoo", "NVDA", marketdata.KindHistory)
	history.History = &marketdata.History{
		Ticker: "NVDA",
		Range:  marketdata.Range3M,
		Candles: []marketdata.Candle{
			{Time: time.Now(), Close: 110.50},
			{Time: time.Now(), Close: 121.25},
		},
	}
	line = outcomeLine(marketdata.Outcome{Ticker: "NVDA", Kind: marketdata.KindHistory, Attempts: []marketdata.ProviderResult{history}})
	want = "NVDA history (3mo): 2 candles, close 110.50 -> 121.25 [yahoo]"
	if line != want {
		t.Errorf("history line = %q, want %q", line, want)
	}

	profile := marketdata.NewSuccess("alphavantage", "MSFT", marketdata.KindProfile)
	profile.Profile = &marketdata.Profile{
		Ticker:  "MSFT",
		Name:    "Microsoft Corporation",
		Sector:  "Technology",
		PERatio: 35.4,
	}
	line = outcomeLine(marketdata.Outcome{Ticker: "MSFT", Kind: marketdata.KindProfile, Attempts: []marketdata.ProviderResult{profile}})
	for _, part := range []string{"MSFT profile: Microsoft Corporation", "Technology", "P/E 35.4", "[alphavantage]"} {
		if !strings.Contains(line, part) {
			t.Errorf("profile line %q missing %q", line, part)
		}
	}

	failed := marketdata.Outcome{
		Ticker: "ZZZZ",
		Kind:   marketdata.KindQuote,
		Attempts: []marketdata.ProviderResult{
			marketdata.NewFailure("alphavantage", "ZZZZ", marketdata.KindQuote,
				errors.Wrap(errors.ErrRateLimitExceeded, "throttled")),
			marketdata.NewFailure("finnhub", "ZZZZ", marketdata.KindQuote,
				errors.Wrap(errors.ErrSymbolNotFound, "unknown")),
		},
	}
	line = outcomeLine(failed)
	want = "ZZZZ quote: unavailable (alphavantage: RATE_LIMITED; finnhub: NOT_FOUND)"
	if line != want {
		t.Errorf("failure line = %q, want %q", line, want)
	}
}

func TestDeriveConfidence(t *testing.T) {
	success := []marketdata.ProviderResult{marketdata.NewSuccess("finnhub", "AAPL", marketdata.KindQuote)}
	failure := []marketdata.ProviderResult{marketdata.NewFailure("finnhub", "AAPL", marketdata.KindQuote,
		errors.Wrap(errors.ErrSymbolNotFound, "unknown"))}

	testCases := []struct {
		name            string
		tickers         []string
		results         []marketdata.ProviderResult
		budgetExhausted bool
		modelConfidence conversation.Confidence
		modelReason     string
		wantConfidence  conversation.Confidence
		wantReason      conversation.LowReason
	}{
		{
			name:            "all signals clean",
			tickers:         []string{"AAPL"},
			results:         success,
			modelConfidence: conversation.ConfidenceHigh,
			wantConfidence:  conversation.ConfidenceHigh,
			wantReason:      conversation.LowReasonNone,
		},
		{
			name:            "missing data wins over everything",
			tickers:         []string{"AAPL"},
			results:         failure,
			budgetExhausted: true,
			modelConfidence: conversation.ConfidenceHigh,
			wantConfidence:  conversation.ConfidenceLow,
			wantReason:      conversation.LowReasonDataUnavailable,
		},
		{
			name:            "budget wins over model self-report",
			tickers:         []string{"AAPL"},
			results:         success,
			budgetExhausted: true,
			modelConfidence: conversation.ConfidenceHigh,
			wantConfidence:  conversation.ConfidenceLow,
			wantReason:      conversation.LowReasonBudgetExhausted,
		},
		{
			name:            "model low with data wording",
			tickers:         []string{"AAPL"},
			results:         success,
			modelConfidence: conversation.ConfidenceLow,
			modelReason:     "the fetch failed for key figures",
			wantConfidence:  conversation.ConfidenceLow,
			wantReason:      conversation.LowReasonDataUnavailable,
		},
		{
			name:            "model low defaults to scope",
			tickers:         []string{"AAPL"},
			results:         success,
			modelConfidence: conversation.ConfidenceLow,
			modelReason:     "this needs a much deeper dive",
			wantConfidence:  conversation.ConfidenceLow,
			wantReason:      conversation.LowReasonScopeExceeded,
		},
		{
			name:            "no tickers skips the data check",
			modelConfidence: conversation.ConfidenceHigh,
			wantConfidence:  conversation.ConfidenceHigh,
			wantReason:      conversation.LowReasonNone,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			confidence, reason := deriveConfidence(tc.tickers, tc.results, tc.budgetExhausted, tc.modelConfidence, tc.modelReason)
			if confidence != tc.wantConfidence {
				t.Errorf("confidence = %s, want %s", confidence, tc.wantConfidence)
			}
			if reason != tc.wantReason {
				t.Errorf("reason = %s, want %s", reason, tc.wantReason)
			}
		})
	}
}

func TestRenderHistory(t *testing.T) {
	if got := renderHistory(nil, 3); got != "" {
		t.Errorf("empty history should render empty, got %q", got)
	}

	turns := []conversation.Turn{
		{Query: conversation.Query{Text: "first question"}, Response: conversation.SynthesizedResponse{Text: "first answer"}},
		{Query: conversation.Query{Text: "second question"}, Response: conversation.SynthesizedResponse{Text: "second answer"}},
		{Query: conversation.Query{Text: "third question"}, Response: conversation.SynthesizedResponse{Text: "third answer"}},
		{Query: conversation.Query{Text: "fourth question"}, Response: conversation.SynthesizedResponse{Text: "fourth answer"}},
	}

	got := renderHistory(turns, 2)
	if strings.Contains(got, "first question") || strings.Contains(got, "second question") {
		t.Errorf("history window should keep only the newest turns: %q", got)
	}
	if !strings.Contains(got, "User: third question") || !strings.Contains(got, "Analyst: fourth answer") {
		t.Errorf("history window lost recent turns: %q", got)
	}

	long := conversation.Turn{
		Query:    conversation.Query{Text: "q"},
		Response: conversation.SynthesizedResponse{Text: strings.Repeat("x", historyAnswerLimit+50)},
	}
	got = renderHistory([]conversation.Turn{long}, 0)
	if !strings.Contains(got, "xxx...") {
		t.Errorf("overlong answers should be truncated: %d chars rendered", len(got))
	}
}

func TestRenderOutcomes(t *testing.T) {
	b := marketdata.NewSuccess("finnhub", "MSFT", marketdata.KindQuote)
	b.Quote = &marketdata.Quote{Ticker: "MSFT", Price: decimal.NewFromInt(415), Currency: "USD"}
	a := marketdata.NewSuccess("finnhub", "AAPL", marketdata.KindQuote)
	a.Quote = &marketdata.Quote{Ticker: "AAPL", Price: decimal.NewFromInt(230), Currency: "USD"}

	got := renderOutcomes([]marketdata.Outcome{
		{Ticker: "MSFT", Kind: marketdata.KindQuote, Attempts: []marketdata.ProviderResult{b}},
		{Ticker: "AAPL", Kind: marketdata.KindQuote, Attempts: []marketdata.ProviderResult{a}},
	})

	if !strings.HasPrefix(got, "Fetched market data:\n") {
		t.Errorf("missing header: %q", got)
	}
	if strings.Index(got, "AAPL") > strings.Index(got, "MSFT") {
		t.Errorf("outcomes should render in ticker order: %q", got)
	}

	if got := renderOutcomes(nil); got != "" {
		t.Errorf("no outcomes should render empty, got %q", got)
	}
}

func TestWorkerConfigs(t *testing.T) {
	configs := WorkerConfigs("gpt-4o-mini", config.WorkersConfig{
		JuniorMaxIterations: 3,
		MasterTemperature:   0.9,
	})

	junior := configs[conversation.WorkerJunior]
	if junior.Model != "gpt-4o-mini" {
		t.Errorf("junior model = %q", junior.Model)
	}
	if junior.MaxIterations != 3 {
		t.Errorf("junior max iterations override lost: %d", junior.MaxIterations)
	}
	if junior.Temperature != DefaultWorkerConfigs[conversation.WorkerJunior].Temperature {
		t.Errorf("unset junior temperature should keep the default, got %v", junior.Temperature)
	}

	master := configs[conversation.WorkerMaster]
	if master.Temperature != 0.9 {
		t.Errorf("master temperature override lost: %v", master.Temperature)
	}
	if master.MaxIterations != DefaultWorkerConfigs[conversation.WorkerMaster].MaxIterations {
		t.Errorf("unset master iterations should keep the default, got %d", master.MaxIterations)
	}
}
