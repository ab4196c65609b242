package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"minerva/pkg/errors"
)

func newTestDeepSeek(t *testing.T, handler http.HandlerFunc) *DeepSeekProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewDeepSeekProvider("test-key", time.Second)
	if err != nil {
		t.Fatalf("create deepseek provider: %v", err)
	}
	provider.baseURL = server.URL
	return provider
}

func TestDeepSeekChatRoundTrip(t *testing.T) {
	var got wireRequest
	var auth, contentType string

	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		_ = json.NewEncoder(w).Encode(wireResponse{
			ID:    "cmpl-1",
			Model: ModelDeepSeekChat,
			Choices: []wireChoice{{
				Message:      wireMessage{Role: "assistant", Content: "NVDA looks strong."},
				FinishReason: "stop",
			}},
			Usage: wireUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	})

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model:       ModelDeepSeekChat,
		Temperature: 0.2,
		Messages: []Message{
			{Role: RoleSystem, Content: "You are an analyst."},
			{Role: RoleUser, Content: "How is NVDA doing?"},
		},
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	if auth != "Bearer test-key" {
		t.Fatalf("expected bearer auth, got %q", auth)
	}
	if contentType != "application/json" {
		t.Fatalf("expected JSON content type, got %q", contentType)
	}
	if got.Model != ModelDeepSeekChat {
		t.Fatalf("expected model %s on the wire, got %s", ModelDeepSeekChat, got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected wire messages: %+v", got.Messages)
	}
	if got.MaxTokens != 4096 {
		t.Fatalf("expected default max_tokens 4096, got %d", got.MaxTokens)
	}
	if got.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %f", got.Temperature)
	}

	if resp.ID != "cmpl-1" {
		t.Fatalf("expected response ID cmpl-1, got %s", resp.ID)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Message.Content != "NVDA looks strong." {
		t.Fatalf("unexpected choices: %+v", resp.Choices)
	}
	if resp.Choices[0].FinishReason != FinishReasonStop {
		t.Fatalf("expected stop finish reason, got %s", resp.Choices[0].FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestDeepSeekChatCarriesToolConversation(t *testing.T) {
	var got wireRequest

	provider := newTestDeepSeek(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}

		_ = json.NewEncoder(w).Encode(wireResponse{
			ID:    "cmpl-2",
			Model: ModelDeepSeekChat,
			Choices: []wireChoice{{
				Message: wireMessage{
					Role: "assistant",
					ToolCalls: []wireToolCall{{
						ID:   "call-9",
						Type: "function",
						Function: wireFunctionCall{
							Name:      "get_stock_quote",
							Arguments: `{"ticker":"AAPL"}`,
						},
					}},
				},
				FinishReason: "tool_calls",
			}},
		})
	})

	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model: ModelDeepSeekChat,
		Messages: []Message{
			{Role: RoleUser, Content: "Price of AAPL?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{
				ID:       "call-1",
				Type:     "function",
				Function: FunctionCall{Name: "get_stock_quote", Arguments: `{"ticker":"AAPL"}`},
			}}},
			{Role: RoleTool, ToolCallID: "call-1", Name: "get_stock_quote", Content: `{"price":230.1}`},
		},
		Tools: []ToolDefinition{{
			Type: "function",
			Function: FunctionDefinition{
				Name:        "get_stock_quote",
				Description: "Fetch the latest quote",
				Parameters:  map[string]interface{}{"type": "object"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 wire messages, got %d", len(got.Messages))
	}
	assistant := got.Messages[1]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call-1" {
		t.Fatalf("assistant tool calls not carried: %+v", assistant)
	}
	toolMsg := got.Messages[2]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call-1" {
		t.Fatalf("tool result message not carried: %+v", toolMsg)
	}
	if len(got.Tools) != 1 || got.Tools[0].Function.Name != "get_stock_quote" {
		t.Fatalf("tool definitions not carried: %+v", got.Tools)
	}

	choice := resp.Choices[0]
	if choice.FinishReason != FinishReasonToolCalls {
		t.Fatalf("expected tool_calls finish reason, got %s", choice.FinishReason)
	}
	if len(choice.Message.ToolCalls) != 1 {
		t.Fatalf("expected one mapped tool call, got %d", len(choice.Message.ToolCalls))
	}
	tc := choice.Message.ToolCalls[0]
	if tc.ID != "call-9" || tc.Function.Name != "get_stock_quote" || tc.Function.Arguments != `{"ticker":"AAPL"}` {
		t.Fatalf("tool call mapped wrong: %+v", tc)
	}
}

func TestDeepSeekChatClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		contains string
	}{
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"slow down"}}`,
			sentinel: errors.ErrRateLimitExceeded,
			contains: "slow down",
		},
		{
			name:     "server error",
			status:   http.StatusServiceUnavailable,
			body:     `upstream exploded`,
			sentinel: errors.ErrUnavailable,
			contains: "upstream exploded",
		},
		{
			name:     "bad request",
			status:   http.StatusBadRequest,
			body:     `{"error":{"message":"unknown model"}}`,
			sentinel: errors.ErrExternal,
			contains: "unknown model",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestDeepSeek(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := provider.Chat(context.Background(), ChatRequest{
				Model:    ModelDeepSeekChat,
				Messages: []Message{{Role: RoleUser, Content: "hello"}},
			})
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected sentinel %v, got %v", tt.sentinel, err)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Fatalf("expected message to contain %q, got %v", tt.contains, err)
			}
		})
	}
}

func TestDeepSeekChatNetworkFailure(t *testing.T) {
	provider, err := NewDeepSeekProvider("test-key", time.Second)
	if err != nil {
		t.Fatalf("create deepseek provider: %v", err)
	}
	// Point at a closed port so the transport fails fast.
	server := httptest.NewServer(http.NotFoundHandler())
	provider.baseURL = server.URL
	server.Close()

	if _, err := provider.Chat(context.Background(), ChatRequest{
		Model:    ModelDeepSeekChat,
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}); err == nil {
		t.Fatal("expected transport error for closed server")
	}
}
