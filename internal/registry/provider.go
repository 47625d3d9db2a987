// Package registry implements the Provider Registry (spec.md §4.A) and the
// Temperature Constraint (spec.md §4.B): resolving a logical model name to
// a concrete Provider, enforcing restriction policy, and validating the
// sampling temperature for whatever model was resolved.
package registry

import "context"

// Message is one entry in a conversation passed to a Provider.
type Message struct {
	Role       string // "system", "user", "assistant", or "tool"
	Content    string
	ToolCallID string
}

// TokenUsage records how many tokens a completion consumed.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest is the provider-agnostic request submitted to a Provider.
// Adapters are responsible for converting this into their SDK's own shape.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// CompletionResponse is the provider-agnostic completion result.
type CompletionResponse struct {
	Content      string
	FinishReason string
	Usage        TokenUsage
	Model        string
}

// Provider abstracts a concrete LLM backend (OpenAI, Gemini, a custom
// endpoint, or the catch-all aggregator). The interface is intentionally
// minimal so new providers are cheap to add.
type Provider interface {
	// Complete sends a request and blocks for the full response. Per
	// spec.md §4.D step 6, a streaming-capable provider is consumed to
	// completion before this returns — there is no separate Stream method
	// at the registry layer, since the Tool Request Pipeline is
	// non-streaming at its boundary.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}
