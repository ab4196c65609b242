package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Ensure OpenAIProvider implements ChatProvider
var _ ChatProvider = (*OpenAIProvider)(nil)

// OpenAIProvider implements chat completions using the official OpenAI Go SDK
type OpenAIProvider struct {
	client  openai.Client // NewClient returns Client (not *Client)
	timeout time.Duration
	models  []ModelInfo
	log     *logger.Logger
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider(apiKey string, timeout time.Duration) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAIProvider{
		client:  client,
		timeout: timeout,
		models:  openAIModels(),
		log:     logger.Get().With("component", "openai_provider"),
	}, nil
}

// Name returns provider name.
func (p *OpenAIProvider) Name() string { return ProviderNameOpenAI.String() }

// GetModel returns model info by name.
func (p *OpenAIProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	for _, m := range p.models {
		if strings.EqualFold(m.Name, model) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "openai model %s not found", model)
}

// ListModels lists available models.
func (p *OpenAIProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// SupportsTools indicates tool calling support.
func (p *OpenAIProvider) SupportsTools() bool { return true }

// Chat sends a chat completion request through the official SDK.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	for _, msg := range req.Messages {
		params.Messages = append(params.Messages, convertMessage(msg))
	}

	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  openai.FunctionParameters(tool.Function.Parameters),
		}))
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)

	if err != nil {
		metrics.RecordChatCall(p.Name(), req.Model, latency, 0, 0, err)
		return nil, p.classifyError(err)
	}

	chatResp := &ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}

	for _, choice := range resp.Choices {
		msg := Message{
			Role:    RoleAssistant,
			Content: choice.Message.Content,
		}
		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		chatResp.Choices = append(chatResp.Choices, Choice{
			Index:        int(choice.Index),
			Message:      msg,
			FinishReason: mapFinishReason(string(choice.FinishReason)),
		})
	}

	metrics.RecordChatCall(p.Name(), req.Model, latency, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens, nil)
	return chatResp, nil
}

// convertMessage maps our message format onto SDK param unions
func convertMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case RoleSystem:
		return openai.SystemMessage(msg.Content)
	case RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID)
	case RoleAssistant:
		if len(msg.ToolCalls) == 0 {
			return openai.AssistantMessage(msg.Content)
		}
		assistant := openai.ChatCompletionAssistantMessageParam{}
		if msg.Content != "" {
			assistant.Content.OfString = openai.String(msg.Content)
		}
		for _, tc := range msg.ToolCalls {
			assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				},
			})
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
	default:
		return openai.UserMessage(msg.Content)
	}
}

func mapFinishReason(reason string) FinishReason {
	switch reason {
	case "length":
		return FinishReasonLength
	case "tool_calls", "function_call":
		return FinishReasonToolCalls
	default:
		return FinishReasonStop
	}
}

// classifyError maps SDK failures onto domain sentinels
func (p *OpenAIProvider) classifyError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests:
			return errors.Wrapf(errors.ErrRateLimitExceeded, "openai: %v", apierr.Message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrapf(errors.ErrExternal, "openai authentication failed: %v", apierr.Message)
		default:
			if apierr.StatusCode >= 500 {
				return errors.Wrapf(errors.ErrUnavailable, "openai server error (%d): %v", apierr.StatusCode, apierr.Message)
			}
			return errors.Wrapf(errors.ErrExternal, "openai API error (%d): %v", apierr.StatusCode, apierr.Message)
		}
	}
	return errors.Wrap(err, "openai request failed")
}

func openAIModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameOpenAI,
			Name:            ModelGPT4oMini,
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.00015,
			OutputCostPer1K: 0.0006,
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            ModelGPT4o,
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.0025,
			OutputCostPer1K: 0.01,
			SupportsTools:   true,
		},
	}
}
