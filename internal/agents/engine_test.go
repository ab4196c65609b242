package agents

import (
	"context"
	"strings"
	"testing"

	"minerva/internal/adapters/ai"
	"minerva/internal/tools"
	"minerva/pkg/errors"
)

// scriptedChat replays a fixed response sequence and records every request,
// so tests can assert on the exact message history the engine built. The
// last response repeats once the script runs out.
type scriptedChat struct {
	responses []*ai.ChatResponse
	err       error
	requests  []ai.ChatRequest
}

func (s *scriptedChat) Name() string        { return "scripted" }
func (s *scriptedChat) SupportsTools() bool { return true }

func (s *scriptedChat) GetModel(_ context.Context, model string) (ai.ModelInfo, error) {
	return ai.ModelInfo{Name: model}, nil
}

func (s *scriptedChat) ListModels(_ context.Context) ([]ai.ModelInfo, error) {
	return nil, nil
}

func (s *scriptedChat) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	idx := len(s.requests) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func textResponse(text string) *ai.ChatResponse {
	return &ai.ChatResponse{
		Choices: []ai.Choice{{
			Message:      ai.Message{Role: ai.RoleAssistant, Content: text},
			FinishReason: ai.FinishReasonStop,
		}},
		Usage: ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func toolCallResponse(id, name, args string) *ai.ChatResponse {
	return &ai.ChatResponse{
		Choices: []ai.Choice{{
			Message: ai.Message{
				Role: ai.RoleAssistant,
				ToolCalls: []ai.ToolCall{{
					ID:       id,
					Type:     "function",
					Function: ai.FunctionCall{Name: name, Arguments: args},
				}},
			},
			FinishReason: ai.FinishReasonToolCalls,
		}},
		Usage: ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func TestEngineRunPlainAnswer(t *testing.T) {
	chat := &scriptedChat{responses: []*ai.ChatResponse{textResponse("AAPL closed at 230.10 USD.")}}
	engine := NewEngine(chat)

	result, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		SystemPrompt:  "You are an analyst.",
		UserPrompt:    "What is the price of AAPL?",
		MaxIterations: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Text != "AAPL closed at 230.10 USD." {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Iterations != 1 {
		t.Errorf("expected 1 iteration, got %d", result.Iterations)
	}
	if result.ToolCallsMade != 0 {
		t.Errorf("expected no tool calls, got %d", result.ToolCallsMade)
	}

	req := chat.requests[0]
	if len(req.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != ai.RoleSystem || req.Messages[1].Role != ai.RoleUser {
		t.Errorf("unexpected message roles: %s, %s", req.Messages[0].Role, req.Messages[1].Role)
	}
}

func TestEngineRunRequiresModel(t *testing.T) {
	engine := NewEngine(&scriptedChat{})

	_, err := engine.Run(context.Background(), EngineRequest{UserPrompt: "hello"})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEngineRunToolCallLoop(t *testing.T) {
	var gotArgs map[string]interface{}
	registry := tools.NewRegistry()
	registry.Register(tools.New("get_stock_quote", "Current quote", nil,
		func(_ context.Context, args map[string]interface{}) (interface{}, error) {
			gotArgs = args
			return map[string]interface{}{"ticker": "AAPL", "price": 230.10}, nil
		}))

	chat := &scriptedChat{responses: []*ai.ChatResponse{
		toolCallResponse("call-1", "get_stock_quote", `{"ticker": "AAPL"}`),
		textResponse("AAPL trades at 230.10 USD."),
	}}
	engine := NewEngine(chat)

	result, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		UserPrompt:    "Price of AAPL?",
		Tools:         registry,
		MaxIterations: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Text != "AAPL trades at 230.10 USD." {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if result.ToolCallsMade != 1 {
		t.Errorf("expected 1 tool call, got %d", result.ToolCallsMade)
	}
	if gotArgs["ticker"] != "AAPL" {
		t.Errorf("tool received wrong args: %v", gotArgs)
	}

	// Second request must carry the assistant tool-call message plus the
	// tool result, in that order.
	second := chat.requests[1]
	n := len(second.Messages)
	if n < 3 {
		t.Fatalf("expected grown message history, got %d messages", n)
	}
	assistant := second.Messages[n-2]
	toolMsg := second.Messages[n-1]
	if len(assistant.ToolCalls) != 1 {
		t.Errorf("assistant message lost its tool calls")
	}
	if toolMsg.Role != ai.RoleTool {
		t.Errorf("expected tool role, got %s", toolMsg.Role)
	}
	if toolMsg.ToolCallID != "call-1" || toolMsg.Name != "get_stock_quote" {
		t.Errorf("tool message misattributed: id=%q name=%q", toolMsg.ToolCallID, toolMsg.Name)
	}
	if !strings.Contains(toolMsg.Content, `"price":230.1`) {
		t.Errorf("tool result not serialized into message: %q", toolMsg.Content)
	}

	// Tool definitions must be offered on every iteration.
	if len(second.Tools) != 1 || second.Tools[0].Function.Name != "get_stock_quote" {
		t.Errorf("tool definitions missing from follow-up request")
	}
}

func TestEngineRunToolFailureBecomesText(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(tools.New("get_stock_quote", "Current quote", nil,
		func(_ context.Context, _ map[string]interface{}) (interface{}, error) {
			return nil, errors.Wrap(errors.ErrUnavailable, "provider down")
		}))

	chat := &scriptedChat{responses: []*ai.ChatResponse{
		toolCallResponse("call-1", "get_stock_quote", `{"ticker": "AAPL"}`),
		textResponse("I could not fetch live data."),
	}}
	engine := NewEngine(chat)

	result, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		UserPrompt:    "Price of AAPL?",
		Tools:         registry,
		MaxIterations: 5,
	})
	if err != nil {
		t.Fatalf("tool failure must not abort the run: %v", err)
	}
	if result.Text != "I could not fetch live data." {
		t.Errorf("unexpected text: %q", result.Text)
	}

	second := chat.requests[1]
	toolMsg := second.Messages[len(second.Messages)-1]
	if !strings.HasPrefix(toolMsg.Content, "Error:") {
		t.Errorf("tool failure should surface as error text, got %q", toolMsg.Content)
	}
	if !strings.Contains(toolMsg.Content, "provider down") {
		t.Errorf("error detail lost: %q", toolMsg.Content)
	}
}

func TestEngineRunUnknownToolBecomesText(t *testing.T) {
	chat := &scriptedChat{responses: []*ai.ChatResponse{
		toolCallResponse("call-1", "no_such_tool", `{}`),
		textResponse("done"),
	}}
	engine := NewEngine(chat)

	_, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		UserPrompt:    "anything",
		Tools:         tools.NewRegistry(),
		MaxIterations: 3,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	toolMsg := chat.requests[1].Messages[len(chat.requests[1].Messages)-1]
	if !strings.Contains(toolMsg.Content, "not registered") {
		t.Errorf("expected unknown-tool error text, got %q", toolMsg.Content)
	}
}

func TestEngineRunBudgetExhausted(t *testing.T) {
	chat := &scriptedChat{responses: []*ai.ChatResponse{
		toolCallResponse("call-1", "no_such_tool", `{}`),
	}}
	engine := NewEngine(chat)

	result, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		UserPrompt:    "anything",
		Tools:         tools.NewRegistry(),
		MaxIterations: 2,
	})
	if !errors.Is(err, errors.ErrIterationBudget) {
		t.Fatalf("expected ErrIterationBudget, got %v", err)
	}
	if result == nil {
		t.Fatal("budget exhaustion must still return the partial result")
	}
	if !result.BudgetExhausted {
		t.Error("BudgetExhausted not set")
	}
	if result.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", result.Iterations)
	}
	if result.ToolCallsMade != 2 {
		t.Errorf("expected 2 tool calls, got %d", result.ToolCallsMade)
	}
}

func TestEngineRunProviderFailure(t *testing.T) {
	chat := &scriptedChat{err: errors.Wrap(errors.ErrUnavailable, "api down")}
	engine := NewEngine(chat)

	result, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		UserPrompt:    "anything",
		MaxIterations: 3,
	})
	if !errors.Is(err, errors.ErrReasoningUnavailable) {
		t.Fatalf("expected ErrReasoningUnavailable, got %v", err)
	}
	if result != nil {
		t.Error("provider failure must not produce a result")
	}
}

func TestEngineRunAccumulatesUsage(t *testing.T) {
	chat := &scriptedChat{responses: []*ai.ChatResponse{
		toolCallResponse("call-1", "no_such_tool", `{}`),
		textResponse("done"),
	}}
	engine := NewEngine(chat)

	result, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		UserPrompt:    "anything",
		Tools:         tools.NewRegistry(),
		MaxIterations: 5,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Usage.TotalTokens != 30 {
		t.Errorf("expected usage summed across iterations, got %d", result.Usage.TotalTokens)
	}
}

func TestEngineRunNilRegistryToolCall(t *testing.T) {
	chat := &scriptedChat{responses: []*ai.ChatResponse{
		toolCallResponse("call-1", "get_stock_quote", `{}`),
		textResponse("done"),
	}}
	engine := NewEngine(chat)

	_, err := engine.Run(context.Background(), EngineRequest{
		Model:         "test-model",
		UserPrompt:    "anything",
		MaxIterations: 3,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(chat.requests[0].Tools) != 0 {
		t.Error("nil registry should offer no tool definitions")
	}
	toolMsg := chat.requests[1].Messages[len(chat.requests[1].Messages)-1]
	if !strings.Contains(toolMsg.Content, "not available in this run") {
		t.Errorf("expected unavailable-tool text, got %q", toolMsg.Content)
	}
}

func TestExtractStructuredOutput(t *testing.T) {
	out, err := ExtractStructuredOutput(`Analysis done. {"verdict": "buy", "score": 7}`)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if out["verdict"] != "buy" {
		t.Errorf("unexpected verdict: %v", out["verdict"])
	}

	out, err = ExtractStructuredOutput("no json here at all")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if out["raw_response"] != "no json here at all" {
		t.Errorf("plain text should round-trip as raw_response, got %v", out)
	}
}
