package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gruntworks-dev/orchestrator/internal/config"
	"github.com/gruntworks-dev/orchestrator/internal/convo"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
)

// stubProvider answers every call with "ok" and records each request it
// receives, so tests can assert on the assembled transcript (the length of
// a recorded request's Messages) without a real LLM.
type stubProvider struct {
	calls []*registry.CompletionRequest
	err   error
}

func (s *stubProvider) Complete(ctx context.Context, req *registry.CompletionRequest) (*registry.CompletionResponse, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return &registry.CompletionResponse{
		Content:      "ok",
		Model:        req.Model,
		FinishReason: "stop",
		Usage:        registry.TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
	}, nil
}

func setupPipeline(t *testing.T, provider *stubProvider) (*Pipeline, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := &config.Config{
		PromptSizeLimit:      50000,
		MaxConversationTurns: 20,
	}

	reg := registry.New(cfg, nil, nil)
	reg.Register("stub", registry.PriorityNative, provider, []registry.ModelCapabilities{
		{ModelName: "stub-model", ContextWindow: 8000, TemperatureConstraint: registry.Range{Low: 0, High: 2, DefaultValue: 1}},
	}, map[string]string{"all": "stub-model", "fast": "stub-model"}, false)
	require.NoError(t, reg.Initialize(context.Background()))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := convo.NewRedisStore(client, cfg.MaxConversationTurns, time.Hour, nil)

	return New(reg, store, cfg, nil), mr
}

func TestPipeline_FreshChat(t *testing.T) {
	provider := &stubProvider{}
	p, mr := setupPipeline(t, provider)
	defer mr.Close()

	resp, err := p.Execute(context.Background(), ToolSpec{Name: "chat", SystemPrompt: "be helpful", ModelCategory: "all"}, Request{
		Prompt: "Hello",
		Model:  "auto",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.NotEmpty(t, resp.ThreadID)
	require.NotNil(t, resp.ContinuationOffer)
	assert.Equal(t, 2, resp.ContinuationOffer.Stats.TotalTurns)
}

func TestPipeline_ThreadContinuation(t *testing.T) {
	provider := &stubProvider{}
	p, mr := setupPipeline(t, provider)
	defer mr.Close()
	ctx := context.Background()
	tool := ToolSpec{Name: "chat", SystemPrompt: "be helpful", ModelCategory: "all"}

	first, err := p.Execute(ctx, tool, Request{Prompt: "Hello", Model: "auto"})
	require.NoError(t, err)

	second, err := p.Execute(ctx, tool, Request{Prompt: "Follow up", ContinuationID: first.ThreadID})
	require.NoError(t, err)
	assert.Equal(t, 4, second.ContinuationOffer.Stats.TotalTurns)

	// The second provider call's transcript includes the first exchange.
	require.Len(t, provider.calls, 2)
	assert.Len(t, provider.calls[1].Messages, 3) // prior user + prior assistant + new user
}

func TestPipeline_PromptTooLarge(t *testing.T) {
	provider := &stubProvider{}
	p, mr := setupPipeline(t, provider)
	defer mr.Close()
	p.cfg.PromptSizeLimit = 5

	_, err := p.Execute(context.Background(), ToolSpec{ModelCategory: "all"}, Request{Prompt: "way too long for the limit", Model: "auto"})
	require.Error(t, err)
}

func TestPipeline_UnknownModel(t *testing.T) {
	provider := &stubProvider{}
	p, mr := setupPipeline(t, provider)
	defer mr.Close()

	_, err := p.Execute(context.Background(), ToolSpec{ModelCategory: "all"}, Request{Prompt: "hi", Model: "nonexistent-model"})
	require.Error(t, err)
}

func TestPipeline_ThreadNotFound(t *testing.T) {
	provider := &stubProvider{}
	p, mr := setupPipeline(t, provider)
	defer mr.Close()

	_, err := p.Execute(context.Background(), ToolSpec{ModelCategory: "all"}, Request{Prompt: "hi", ContinuationID: "ghost"})
	require.Error(t, err)
}
