package pipeline

import (
	"context"
	"fmt"

	"github.com/gruntworks-dev/orchestrator/internal/apperrors"
	"github.com/gruntworks-dev/orchestrator/internal/config"
	"github.com/gruntworks-dev/orchestrator/internal/convo"
	"github.com/gruntworks-dev/orchestrator/internal/logging"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
)

// Pipeline runs every tool invocation through the eight steps of spec.md
// §4.D, wiring the Provider Registry and Conversation Store together.
type Pipeline struct {
	registry *registry.Registry
	store    convo.Store
	cfg      *config.Config
	log      logging.Logger
}

// New builds a Pipeline over an already-initialized Registry and Store.
func New(reg *registry.Registry, store convo.Store, cfg *config.Config, log logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Noop{}
	}
	return &Pipeline{registry: reg, store: store, cfg: cfg, log: log}
}

// Execute runs the full pipeline for one tool invocation.
func (p *Pipeline) Execute(ctx context.Context, tool ToolSpec, req Request) (*Response, error) {
	// Step 1: schema validation.
	if fields, bad := Validate(req); bad {
		return nil, apperrors.New(apperrors.CodeInvalidRequest,
			fmt.Sprintf("invalid request: missing=%v invalid=%v", fields.Missing, fields.Invalid), nil)
	}

	// Step 2: prompt size check.
	if PromptTooLarge(req.Prompt, p.cfg.PromptSizeLimit) {
		return nil, apperrors.New(apperrors.CodePromptTooLarge,
			fmt.Sprintf("prompt exceeds PROMPT_SIZE_LIMIT (%d characters)", p.cfg.PromptSizeLimit), nil)
	}

	// Step 3: model resolution.
	modelName, err := p.resolveModel(tool, req)
	if err != nil {
		return nil, err
	}
	resolution, err := p.registry.GetProviderForModel(ctx, modelName)
	if err != nil {
		return nil, err
	}

	// Step 4: temperature correction.
	temperature, corrected := registry.Resolve(resolution.Capabilities.TemperatureConstraint, req.Temperature)
	if corrected {
		p.log.Warn(ctx, resolution.Capabilities.TemperatureConstraint.Describe(),
			logging.F("model", modelName), logging.F("corrected_to", temperature))
	}

	// Step 5: context assembly.
	var thread *convo.Thread
	var messages []registry.Message
	if req.ContinuationID != "" {
		thread, err = p.store.GetThread(ctx, req.ContinuationID)
		if err != nil {
			return nil, err
		}
		if thread == nil {
			return nil, apperrors.New(apperrors.CodeThreadNotFound, fmt.Sprintf("thread %q not found or expired", req.ContinuationID), apperrors.ErrThreadNotFound)
		}
		if thread.Full(p.cfg.MaxConversationTurns) {
			return nil, apperrors.New(apperrors.CodeThreadFull, fmt.Sprintf("thread %q has reached its turn cap", req.ContinuationID), apperrors.ErrThreadFull)
		}
		messages = AssembleTranscript(tool.SystemPrompt, thread.Turns, resolution.Capabilities.ContextWindow)
	}
	messages = append(messages, registry.Message{Role: "user", Content: req.Prompt})

	// Step 6: provider call, with the bounded retry for transient failures.
	creq := &registry.CompletionRequest{
		Model:       modelName,
		System:      tool.SystemPrompt,
		Messages:    messages,
		Temperature: temperature,
		Stop:        req.Stop,
	}
	var cresp *registry.CompletionResponse
	err = withRetry(ctx, func(ctx context.Context) error {
		if err := p.registry.Wait(ctx, resolution.ProviderName); err != nil {
			return err
		}
		resp, err := resolution.Provider.Complete(ctx, creq)
		if err != nil {
			return classifyProviderError(err)
		}
		cresp = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Step 7: turn append (thread creation happens here on a fresh thread).
	threadID := req.ContinuationID
	if threadID == "" {
		threadID, err = p.store.CreateThread(ctx, tool.Name, nil)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.store.AppendTurn(ctx, threadID, convo.Turn{Role: "user", Content: req.Prompt}); err != nil {
		return nil, err
	}
	updated, err := p.store.AppendTurn(ctx, threadID, convo.Turn{
		Role:         "assistant",
		Content:      cresp.Content,
		Model:        cresp.Model,
		InputTokens:  cresp.Usage.PromptTokens,
		OutputTokens: cresp.Usage.CompletionTokens,
	})
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Content:  cresp.Content,
		Model:    modelName,
		ThreadID: threadID,
		Usage:    cresp.Usage,
	}

	// Step 8: continuation offer, only while turns remain available.
	if updated.Stats.TotalTurns < p.cfg.MaxConversationTurns {
		resp.ContinuationOffer = &ContinuationOffer{
			ThreadID:    threadID,
			Stats:       updated.Stats,
			Suggestions: tool.Suggestions,
		}
	}
	return resp, nil
}

// resolveModel implements spec.md §4.D step 3's auto-resolution policy.
func (p *Pipeline) resolveModel(tool ToolSpec, req Request) (string, error) {
	if req.Model != "" && req.Model != "auto" {
		return req.Model, nil
	}
	if tool.DeclaresImages && req.HasImages && p.cfg.DefaultVisionModel != "" {
		return p.cfg.DefaultVisionModel, nil
	}
	category := tool.ModelCategory
	if category == "" {
		category = "all"
	}
	model, ok := p.registry.RepresentativeModel(category)
	if !ok {
		return "", apperrors.New(apperrors.CodeAutoNotResolved, fmt.Sprintf("no provider declared a representative model for category %q", category), apperrors.ErrAutoNotResolved)
	}
	return model, nil
}
