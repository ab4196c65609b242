package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"minerva/internal/adapters/ai"
	"minerva/internal/domain/conversation"
	"minerva/internal/domain/marketdata"
	"minerva/internal/tools"
)

func masterConfig() WorkerConfig {
	cfg := DefaultWorkerConfigs[conversation.WorkerMaster]
	cfg.Model = "test-model"
	return cfg
}

func TestMasterWorkerRunPrefetchesQuoteAndProfile(t *testing.T) {
	provider := newStubProvider(map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(230.10)})
	chat := &scriptedChat{responses: []*ai.ChatResponse{
		textResponse("Deep dive on AAPL complete.\n{\"confidence\": \"HIGH\"}"),
	}}

	worker := NewMasterWorker(masterConfig(), NewEngine(chat), newTestGateway(t, provider), tools.NewRegistry())

	out, err := worker.Run(context.Background(), Task{Query: conversation.Query{
		Text:    "Give me a deep dive on AAPL",
		Class:   conversation.ClassComprehensive,
		Tickers: []string{"AAPL"},
	}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.WorkerID != conversation.WorkerMaster {
		t.Errorf("worker id = %q", out.WorkerID)
	}

	kinds := map[string]bool{}
	for _, r := range out.DataUsed {
		kinds[r.Ticker+"/"+string(r.Kind)] = true
	}
	if !kinds["AAPL/quote"] || !kinds["AAPL/profile"] {
		t.Errorf("master prefetch should cover quote and profile, got %v", kinds)
	}
}

func TestMasterWorkerRunCarriesPriorOutput(t *testing.T) {
	provider := newStubProvider(map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(230.10)})
	chat := &scriptedChat{responses: []*ai.ChatResponse{
		textResponse("Corrected and extended the first pass."),
	}}

	worker := NewMasterWorker(masterConfig(), NewEngine(chat), newTestGateway(t, provider), tools.NewRegistry())

	prior := &conversation.WorkerOutput{
		WorkerID:   conversation.WorkerJunior,
		Summary:    "AAPL is up today on volume.",
		Confidence: conversation.ConfidenceLow,
		LowReason:  conversation.LowReasonScopeExceeded,
	}

	_, err := worker.Run(context.Background(), Task{
		Query: conversation.Query{
			Text:    "Should I buy AAPL?",
			Class:   conversation.ClassSimple,
			Tickers: []string{"AAPL"},
		},
		PriorOutput: prior,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var userPrompt string
	for _, msg := range chat.requests[0].Messages {
		if msg.Role == ai.RoleUser {
			userPrompt = msg.Content
		}
	}
	for _, part := range []string{
		"A first-pass answer from the junior analyst:",
		"AAPL is up today on volume.",
		"low confidence (scope_exceeded)",
	} {
		if !strings.Contains(userPrompt, part) {
			t.Errorf("user prompt missing %q:\n%s", part, userPrompt)
		}
	}
}

func TestMasterWorkerReusesPriorFetches(t *testing.T) {
	provider := newStubProvider(map[string]decimal.Decimal{"AAPL": decimal.NewFromFloat(230.10)})
	chat := &scriptedChat{responses: []*ai.ChatResponse{
		textResponse("Going deeper on AAPL.\n{\"confidence\": \"HIGH\"}"),
	}}

	worker := NewMasterWorker(masterConfig(), NewEngine(chat), newTestGateway(t, provider), tools.NewRegistry())

	prior := &conversation.WorkerOutput{
		WorkerID:   conversation.WorkerJunior,
		Summary:    "AAPL trades at 230.10 USD.",
		Confidence: conversation.ConfidenceHigh,
		DataUsed: []marketdata.ProviderResult{{
			ProviderID: "earlier",
			Ticker:     "AAPL",
			Kind:       marketdata.KindQuote,
			Timestamp:  time.Now().UTC(),
			Quote: &marketdata.Quote{
				Ticker:   "AAPL",
				Price:    decimal.NewFromFloat(230.10),
				Currency: "USD",
			},
		}},
	}

	out, err := worker.Run(context.Background(), Task{
		Query: conversation.Query{
			Text:    "Should I buy AAPL?",
			Class:   conversation.ClassSimple,
			Tickers: []string{"AAPL"},
		},
		PriorOutput: prior,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var quoteProviders []string
	profiles := 0
	for _, r := range out.DataUsed {
		if r.Ticker == "AAPL" && r.Kind == marketdata.KindQuote {
			quoteProviders = append(quoteProviders, r.ProviderID)
		}
		if r.Ticker == "AAPL" && r.Kind == marketdata.KindProfile {
			profiles++
		}
	}
	if len(quoteProviders) != 1 || quoteProviders[0] != "earlier" {
		t.Errorf("quote should come from the prior pass only, got providers %v", quoteProviders)
	}
	if profiles != 1 {
		t.Errorf("profile fetch count = %d, want 1", profiles)
	}

	// The reused quote still reaches the model's data block.
	var userPrompt string
	for _, msg := range chat.requests[0].Messages {
		if msg.Role == ai.RoleUser {
			userPrompt = msg.Content
		}
	}
	if !strings.Contains(userPrompt, "AAPL quote: 230.10 USD") {
		t.Errorf("user prompt missing reused quote line:\n%s", userPrompt)
	}
}

func TestMasterWorkerClassInstruction(t *testing.T) {
	testCases := []struct {
		class conversation.ComplexityClass
		want  string
	}{
		{conversation.ClassComparative, "head-to-head"},
		{conversation.ClassPortfolio, "portfolio"},
		{conversation.ClassComprehensive, "comprehensive"},
		{conversation.ClassSimple, "full depth"},
	}

	for _, tc := range testCases {
		got := classInstruction(tc.class)
		if !strings.Contains(strings.ToLower(got), tc.want) {
			t.Errorf("classInstruction(%s) = %q, missing %q", tc.class, got, tc.want)
		}
	}
}
