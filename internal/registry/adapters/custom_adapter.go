package adapters

// NewCustomEndpoint and NewAggregator both build an *OpenAI adapter pointed
// at a non-default base URL: the configured custom endpoint and the
// OpenRouter aggregator are each OpenAI-compatible chat-completions APIs
// (this is also how the teacher's NewOpenAIAdapter supports Ollama and
// Azure OpenAI — a custom baseURL, same wire format), so they need no
// separate HTTP client or request/response conversion of their own.

// NewCustomEndpoint creates the provider for a deployment's configured
// custom endpoint (spec.md §4.A priority band 2).
func NewCustomEndpoint(apiKey, baseURL string) *OpenAI {
	return NewOpenAI(apiKey, baseURL)
}

// NewAggregator creates the provider for the catch-all aggregator
// (OpenRouter, spec.md §4.A priority band 3).
func NewAggregator(apiKey, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return NewOpenAI(apiKey, baseURL)
}
