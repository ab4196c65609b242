package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

const deepseekAPIURL = "https://api.deepseek.com/v1/chat/completions"

// Ensure DeepSeekProvider implements ChatProvider
var _ ChatProvider = (*DeepSeekProvider)(nil)

// DeepSeekProvider implements chat completions against the DeepSeek API,
// which speaks the OpenAI wire format.
type DeepSeekProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	models     []ModelInfo
	log        *logger.Logger
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey string, timeout time.Duration) (*DeepSeekProvider, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "deepseek API key is required")
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &DeepSeekProvider{
		apiKey:     apiKey,
		baseURL:    deepseekAPIURL,
		httpClient: &http.Client{Timeout: timeout},
		models:     deepSeekModels(),
		log:        logger.Get().With("component", "deepseek_provider"),
	}, nil
}

// Name returns provider name.
func (p *DeepSeekProvider) Name() string { return ProviderNameDeepSeek.String() }

// GetModel returns model info by name.
func (p *DeepSeekProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	for _, m := range p.models {
		if strings.EqualFold(m.Name, model) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "deepseek model %s not found", model)
}

// ListModels lists available models.
func (p *DeepSeekProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// SupportsTools indicates tool calling support.
func (p *DeepSeekProvider) SupportsTools() bool { return true }

// Chat sends a chat completion request to the DeepSeek API.
func (p *DeepSeekProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	wireReq := p.convertToWire(req)

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, errors.Wrap(err, "marshal deepseek request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		metrics.RecordChatCall(p.Name(), req.Model, latency, 0, 0, err)
		return nil, errors.Wrap(err, "send deepseek request")
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read deepseek response")
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := p.classifyStatus(resp.StatusCode, respBody)
		metrics.RecordChatCall(p.Name(), req.Model, latency, 0, 0, apiErr)
		return nil, apiErr
	}

	var wireResp wireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, errors.Wrap(err, "unmarshal deepseek response")
	}

	chatResp := p.convertFromWire(&wireResp)
	metrics.RecordChatCall(p.Name(), req.Model, latency, chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens, nil)
	return chatResp, nil
}

func (p *DeepSeekProvider) classifyStatus(status int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errors.Wrapf(errors.ErrRateLimitExceeded, "deepseek: %s", message)
	case status >= 500:
		return errors.Wrapf(errors.ErrUnavailable, "deepseek server error (%d): %s", status, message)
	default:
		return errors.Wrapf(errors.ErrExternal, "deepseek API error (%d): %s", status, message)
	}
}

// OpenAI-compatible request/response types
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Tools       []wireTool    `json:"tools,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string          `json:"type"`
	Function wireFunctionDef `json:"function"`
}

type wireFunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type wireResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []wireChoice `json:"choices"`
	Usage   wireUsage    `json:"usage"`
}

type wireChoice struct {
	Index        int         `json:"index"`
	Message      wireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// convertToWire converts our request format to the OpenAI wire format.
func (p *DeepSeekProvider) convertToWire(req ChatRequest) wireRequest {
	wireReq := wireRequest{
		Model:       req.Model,
		Messages:    make([]wireMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	if wireReq.MaxTokens == 0 {
		wireReq.MaxTokens = 4096
	}

	for _, msg := range req.Messages {
		wireMsg := wireMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}

		for _, tc := range msg.ToolCalls {
			wireMsg.ToolCalls = append(wireMsg.ToolCalls, wireToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: wireFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		wireReq.Messages = append(wireReq.Messages, wireMsg)
	}

	for _, tool := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, wireTool{
			Type: tool.Type,
			Function: wireFunctionDef{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	return wireReq
}

// convertFromWire converts an OpenAI wire response to our format.
func (p *DeepSeekProvider) convertFromWire(resp *wireResponse) *ChatResponse {
	chatResp := &ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, choice := range resp.Choices {
		msg := Message{
			Role:    MessageRole(choice.Message.Role),
			Content: choice.Message.Content,
			Name:    choice.Message.Name,
		}

		for _, tc := range choice.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, ToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}

		chatResp.Choices = append(chatResp.Choices, Choice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: mapFinishReason(choice.FinishReason),
		})
	}

	return chatResp
}

func deepSeekModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameDeepSeek,
			Name:            ModelDeepSeekChat,
			Family:          "deepseek",
			MaxTokens:       64000,
			InputCostPer1K:  0.00007,
			OutputCostPer1K: 0.00014,
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameDeepSeek,
			Name:            ModelDeepSeekReasoner,
			Family:          "deepseek",
			MaxTokens:       64000,
			InputCostPer1K:  0.00014,
			OutputCostPer1K: 0.00028,
			SupportsTools:   true,
		},
	}
}
