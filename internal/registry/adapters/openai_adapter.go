// Package adapters provides provider-specific implementations of
// registry.Provider, one per concrete backend.
package adapters

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/gruntworks-dev/orchestrator/internal/registry"
)

// OpenAI wraps the OpenAI Go SDK to implement registry.Provider. The same
// client also serves any OpenAI-compatible endpoint (Ollama, Azure OpenAI,
// a self-hosted vLLM instance) by pointing baseURL elsewhere.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates an adapter for the OpenAI API or an OpenAI-compatible
// endpoint. baseURL is empty for the standard OpenAI API.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client}
}

// Complete implements registry.Provider.
func (a *OpenAI) Complete(ctx context.Context, req *registry.CompletionRequest) (*registry.CompletionResponse, error) {
	params := a.buildParams(req)

	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return a.convertResponse(completion), nil
}

func (a *OpenAI) buildParams(req *registry.CompletionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: a.convertMessages(req),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Stop,
		}
	}
	return params
}

func (a *OpenAI) convertMessages(req *registry.CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.ToolCallID, msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}
	return messages
}

func (a *OpenAI) convertResponse(completion *openai.ChatCompletion) *registry.CompletionResponse {
	resp := &registry.CompletionResponse{Model: completion.Model}
	if len(completion.Choices) == 0 {
		return resp
	}
	choice := completion.Choices[0]
	resp.Content = choice.Message.Content
	resp.FinishReason = string(choice.FinishReason)
	resp.Usage = registry.TokenUsage{
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		TotalTokens:      int(completion.Usage.TotalTokens),
	}
	return resp
}
