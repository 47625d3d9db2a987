package adapters

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/gruntworks-dev/orchestrator/internal/registry"
)

// Gemini wraps the Google Generative AI Go SDK to implement registry.Provider.
// Differences from OpenAI that this adapter absorbs: system prompt goes via
// SystemInstruction rather than a message, "assistant" turns are sent as
// plain text parts (Gemini's history shape is handled by the caller, not
// this adapter), and temperature arrives already validated or corrected by
// the model's registered TemperatureConstraint; this adapter does no
// clamping of its own.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates an adapter for the Google Generative AI API.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Gemini{client: client}, nil
}

// Close releases the underlying client's resources.
func (a *Gemini) Close() error {
	if a.client == nil {
		return nil
	}
	return a.client.Close()
}

// Complete implements registry.Provider.
func (a *Gemini) Complete(ctx context.Context, req *registry.CompletionRequest) (*registry.CompletionResponse, error) {
	model := a.client.GenerativeModel(req.Model)
	a.configure(model, req)

	parts := a.convertMessages(req.Messages)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return a.convertResponse(resp, req.Model), nil
}

func (a *Gemini) configure(model *genai.GenerativeModel, req *registry.CompletionRequest) {
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature > 0 {
		model.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}
}

func (a *Gemini) convertMessages(messages []registry.Message) []genai.Part {
	parts := make([]genai.Part, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "user" || msg.Role == "assistant" || msg.Role == "tool" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

func (a *Gemini) convertResponse(resp *genai.GenerateContentResponse, model string) *registry.CompletionResponse {
	result := &registry.CompletionResponse{Model: model}
	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if txt, ok := part.(genai.Text); ok {
					result.Content += string(txt)
				}
			}
		}
		if candidate.FinishReason != genai.FinishReasonUnspecified {
			result.FinishReason = candidate.FinishReason.String()
		}
	}
	if resp.UsageMetadata != nil {
		result.Usage = registry.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return result
}
