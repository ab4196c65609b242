package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"minerva/internal/adapters/ai"
	"minerva/internal/tools"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Engine drives one tool-calling conversation against a chat provider: send
// messages, execute any tool calls the model requests, feed results back, and
// repeat until the model answers in plain text or the iteration budget runs
// out. The engine is stateless; each Run call owns its own message history.
type Engine struct {
	provider ai.ChatProvider
	log      *logger.Logger
}

// NewEngine creates an engine bound to one chat provider
func NewEngine(provider ai.ChatProvider) *Engine {
	return &Engine{
		provider: provider,
		log:      logger.Get().With("component", "reasoning_engine"),
	}
}

// EngineRequest describes a single reasoning run
type EngineRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	// Tools is the registry exposed to the model for this run; nil disables
	// tool calling and makes the run a plain completion.
	Tools         *tools.Registry
	Temperature   float64
	MaxTokens     int
	MaxIterations int
}

// EngineResult is the outcome of a reasoning run. When the iteration budget
// is exhausted, Run returns the partial result together with
// errors.ErrIterationBudget so callers can degrade instead of discarding
// whatever the model produced.
type EngineResult struct {
	// Text is the model's final plain-text answer, or the last assistant
	// content seen before the budget ran out.
	Text            string
	Iterations      int
	ToolCallsMade   int
	Usage           ai.Usage
	BudgetExhausted bool
}

// Run executes the reasoning loop until a final answer or the budget bound.
// Provider failures surface as errors.ErrReasoningUnavailable; the caller
// decides whether the surrounding turn can continue without the model.
func (e *Engine) Run(ctx context.Context, req EngineRequest) (*EngineResult, error) {
	if req.Model == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "engine run requires a model")
	}
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	messages := make([]ai.Message, 0, 2+maxIterations*2)
	if req.SystemPrompt != "" {
		messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: req.UserPrompt})

	toolDefs := toolDefinitions(req.Tools)
	result := &EngineResult{}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		result.Iterations = iteration

		resp, err := e.provider.Chat(ctx, ai.ChatRequest{
			Model:       req.Model,
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "reasoning run cancelled")
			}
			return nil, errors.Wrapf(errors.ErrReasoningUnavailable, "chat call failed on iteration %d: %v", iteration, err)
		}
		if len(resp.Choices) == 0 {
			return nil, errors.Wrap(errors.ErrReasoningUnavailable, "chat provider returned no choices")
		}

		choice := resp.Choices[0]
		result.Usage.PromptTokens += resp.Usage.PromptTokens
		result.Usage.CompletionTokens += resp.Usage.CompletionTokens
		result.Usage.TotalTokens += resp.Usage.TotalTokens

		if len(choice.Message.ToolCalls) == 0 {
			result.Text = choice.Message.Content
			e.log.Debugw("Reasoning run complete",
				"iterations", iteration,
				"tool_calls", result.ToolCallsMade,
				"tokens", result.Usage.TotalTokens,
			)
			return result, nil
		}

		// Keep the last assistant content around so a budget-exhausted run
		// still surfaces whatever reasoning the model had written down.
		if choice.Message.Content != "" {
			result.Text = choice.Message.Content
		}

		messages = append(messages, choice.Message)
		messages = append(messages, e.executeToolCalls(ctx, req.Tools, choice.Message.ToolCalls)...)
		result.ToolCallsMade += len(choice.Message.ToolCalls)
	}

	result.BudgetExhausted = true
	e.log.Warnw("Reasoning iteration budget exhausted",
		"iterations", maxIterations,
		"tool_calls", result.ToolCallsMade,
	)
	return result, errors.Wrapf(errors.ErrIterationBudget, "no final answer after %d iterations", maxIterations)
}

// executeToolCalls runs every requested tool and renders one tool-role
// message per call. Tool failures become error text the model can read and
// work around; they never abort the run.
func (e *Engine) executeToolCalls(ctx context.Context, registry *tools.Registry, calls []ai.ToolCall) []ai.Message {
	out := make([]ai.Message, 0, len(calls))

	for _, call := range calls {
		content := e.runTool(ctx, registry, call)
		out = append(out, ai.Message{
			Role:       ai.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			Name:       call.Function.Name,
		})
	}

	return out
}

func (e *Engine) runTool(ctx context.Context, registry *tools.Registry, call ai.ToolCall) string {
	if registry == nil {
		return fmt.Sprintf("Error: tool %s is not available in this run", call.Function.Name)
	}

	args := map[string]interface{}{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments for %s: %v", call.Function.Name, err)
		}
	}

	result, err := registry.Execute(ctx, call.Function.Name, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Error: failed to encode result of %s: %v", call.Function.Name, err)
	}
	return string(data)
}

// toolDefinitions renders a registry as chat tool definitions
func toolDefinitions(registry *tools.Registry) []ai.ToolDefinition {
	if registry == nil {
		return nil
	}

	all := registry.All()
	defs := make([]ai.ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, ai.ToolDefinition{
			Type: "function",
			Function: ai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// ExtractStructuredOutput extracts structured data from a worker's final response
func ExtractStructuredOutput(response string) (map[string]interface{}, error) {
	// Workers are asked to end with a JSON block containing their verdict

	// Look for JSON block (between { and })
	start := -1
	braceCount := 0

	for i, ch := range response {
		if ch == '{' {
			if start == -1 {
				start = i
			}
			braceCount++
		} else if ch == '}' {
			braceCount--
			if braceCount == 0 && start != -1 {
				// Found complete JSON block
				jsonStr := response[start : i+1]
				var result map[string]interface{}
				if err := json.Unmarshal([]byte(jsonStr), &result); err == nil {
					return result, nil
				}
			}
		}
	}

	// If no JSON found, return response as plain text
	return map[string]interface{}{
		"raw_response": response,
		"error":        "no structured output found",
	}, nil
}
