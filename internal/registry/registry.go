package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gruntworks-dev/orchestrator/internal/apperrors"
	"github.com/gruntworks-dev/orchestrator/internal/config"
	"github.com/gruntworks-dev/orchestrator/internal/logging"
)

// entry is one registered provider: its priority rank, the concrete
// Provider implementation, and the models it claims.
type entry struct {
	name           string
	priority       int // lower sorts first; ties broken by registration order (stable)
	provider       Provider
	models         map[string]ModelCapabilities // canonical name (lowercase) -> capabilities
	representative map[string]string            // model_category -> representative model name
	catchAll       bool                          // claims any model ClassifyProvider routes to an aggregator
}

// Registry is the Provider Registry (spec.md §4.A): given a logical model
// name, it returns a concrete Provider, enforcing the configured
// restriction policy and priority ordering.
type Registry struct {
	mu      sync.RWMutex
	log     logging.Logger
	cfg     *config.Config
	modelDoc *config.ModelRegistryDoc
	limiter *providerLimiter

	entries []*entry

	readyOnce sync.Once
	readyErr  error
	readyDone chan struct{}
}

// New creates an empty Registry. Call Register for each provider the
// deployment has credentials for, then Initialize.
func New(cfg *config.Config, modelDoc *config.ModelRegistryDoc, log logging.Logger) *Registry {
	if log == nil {
		log = logging.Noop{}
	}
	return &Registry{
		log:       log,
		cfg:       cfg,
		modelDoc:  modelDoc,
		limiter:   newProviderLimiter(),
		readyDone: make(chan struct{}),
	}
}

// Priority bands per spec.md §4.A.
const (
	PriorityNative    = 1 // native first-party APIs (Google, OpenAI)
	PriorityCustom    = 2 // configured custom endpoint
	PriorityAggregator = 3 // catch-all aggregator (OpenRouter)
)

// Register adds a provider to the registry. models declares every model
// name this provider claims; representative maps a model_category
// ("reasoning"|"fast"|"all") to this provider's representative model for
// that category, used by auto-resolution (spec.md §4.D step 3). A
// catch-all provider (the aggregator) additionally claims any model
// ClassifyProvider deems aggregator-routed, even if not explicitly listed.
func (r *Registry) Register(name string, priority int, provider Provider, models []ModelCapabilities, representative map[string]string, catchAll bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	modelMap := make(map[string]ModelCapabilities, len(models))
	for _, m := range models {
		modelMap[strings.ToLower(m.ModelName)] = m
	}
	if representative == nil {
		representative = map[string]string{}
	}
	e := &entry{
		name:           name,
		priority:       priority,
		provider:       provider,
		models:         modelMap,
		representative: representative,
		catchAll:       catchAll,
	}
	r.entries = append(r.entries, e)
	if r.cfg != nil {
		for _, rpm := range providerRateLimits[name] {
			r.limiter.configure(name, rpm)
		}
	}

	// Stable priority sort: entries registered earlier at the same priority
	// keep their relative order (sort.SliceStable).
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority < r.entries[j].priority
	})
}

// providerRateLimits is empty by default; callers that need per-provider
// throttling configure it via ConfigureRateLimit instead. Kept as a package
// var only so Register's loop above has a defined (empty) range to no-op
// over when no explicit configuration was supplied.
var providerRateLimits = map[string][]int{}

// ConfigureRateLimit sets a requests-per-minute budget enforced before any
// outbound call to provider, mirroring spec.md §5's "no dedicated pooling;
// relies on provider SDK connection reuse" — the registry only throttles,
// it does not pool connections itself.
func (r *Registry) ConfigureRateLimit(provider string, requestsPerMinute int) {
	r.limiter.configure(provider, requestsPerMinute)
}

// Initialize finalizes registry startup: it fails fast with
// NoProvidersConfigured if nothing was registered, and begins watching the
// model-config document (if any) for hot edits. It is idempotent — calling
// it more than once (e.g. from concurrent first use) only runs the work
// once; all callers observe the same result.
func (r *Registry) Initialize(ctx context.Context) error {
	r.readyOnce.Do(func() {
		defer close(r.readyDone)

		r.mu.RLock()
		n := len(r.entries)
		r.mu.RUnlock()
		if n == 0 {
			r.readyErr = apperrors.New(apperrors.CodeNoProvidersConfigured, "no providers configured", apperrors.ErrNoProvidersConfigured)
			return
		}

		if r.modelDoc != nil {
			if err := r.modelDoc.Watch(ctx); err != nil {
				r.log.Warn(ctx, "model-config watch failed to start", logging.F("error", err.Error()))
			}
		}
	})
	return r.readyErr
}

// Ready blocks until Initialize's one-time setup has completed (or ctx is
// done) and returns Initialize's result. Concurrent first use serializes
// on sync.Once in Initialize. GetProviderForModel does not call Ready
// itself; a caller that may race Initialize awaits Ready before routing.
func (r *Registry) Ready(ctx context.Context) error {
	select {
	case <-r.readyDone:
		return r.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolveCanonical resolves name to its canonical model name via the
// model-config document's alias table, case-insensitively. If no document
// entry matches, name is returned unchanged (it may still be directly
// claimed by a provider's own model map).
func (r *Registry) resolveCanonical(name string) string {
	if r.modelDoc == nil {
		return name
	}
	if entry, ok := r.modelDoc.Resolve(name); ok {
		return entry.Name
	}
	return name
}

// Resolution is what GetProviderForModel hands back to a caller: the
// concrete Provider to call, the name the registry routes its rate limiter
// by, and the model's capabilities.
type Resolution struct {
	Provider     Provider
	ProviderName string
	Capabilities ModelCapabilities
}

// GetProviderForModel resolves name to a concrete Provider, per spec.md
// §4.A. name must already be a concrete model name — "auto" must be
// resolved by the caller (the Tool Request Pipeline) before reaching here.
func (r *Registry) GetProviderForModel(ctx context.Context, name string) (Resolution, error) {
	if strings.EqualFold(name, "auto") {
		return Resolution{}, apperrors.New(apperrors.CodeAutoNotResolved, "model \"auto\" was not resolved before reaching the registry", apperrors.ErrAutoNotResolved)
	}

	canonical := r.resolveCanonical(name)
	lower := strings.ToLower(canonical)

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, aggregatorRouted := ClassifyProvider(canonical)

	var allowlists map[string][]string
	if r.cfg != nil {
		allowlists = r.cfg.Allowlists
	}

	for _, e := range r.entries {
		caps, explicit := e.models[lower]
		claimed := explicit || (e.catchAll && aggregatorRouted)
		if !claimed {
			continue
		}
		if !Admissible(e.name, canonical, allowlists) {
			return Resolution{}, apperrors.New(apperrors.CodeModelRestricted,
				fmt.Sprintf("model %q is restricted by %s's allowlist", canonical, e.name), nil).
				WithHint(fmt.Sprintf("increase %s_ALLOWED_MODELS", strings.ToUpper(e.name)))
		}
		if !explicit {
			caps = ModelCapabilities{ModelName: canonical, TemperatureConstraint: Range{Low: 0, High: 2, DefaultValue: 1}}
		}
		return Resolution{Provider: e.provider, ProviderName: e.name, Capabilities: caps}, nil
	}

	return Resolution{}, apperrors.New(apperrors.CodeUnknownModel, fmt.Sprintf("no provider claims model %q", canonical), nil)
}

// AvailableModels lists every model known to the registry. When
// respectRestrictions is true (the default for callers outside admin
// tooling), models excluded by an allowlist are omitted.
func (r *Registry) AvailableModels(respectRestrictions bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allowlists map[string][]string
	if r.cfg != nil {
		allowlists = r.cfg.Allowlists
	}

	seen := map[string]bool{}
	var out []string
	for _, e := range r.entries {
		for _, caps := range e.models {
			if respectRestrictions && !Admissible(e.name, caps.ModelName, allowlists) {
				continue
			}
			if !seen[strings.ToLower(caps.ModelName)] {
				seen[strings.ToLower(caps.ModelName)] = true
				out = append(out, caps.ModelName)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Capabilities returns the ModelCapabilities for name, resolved through the
// alias table, or false if no provider claims it.
func (r *Registry) Capabilities(name string) (ModelCapabilities, bool) {
	canonical := r.resolveCanonical(name)
	lower := strings.ToLower(canonical)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if caps, ok := e.models[lower]; ok {
			return caps, true
		}
	}
	return ModelCapabilities{}, false
}

// RepresentativeModel returns the highest-priority provider's representative
// model for category, deterministically implementing the "all" category
// policy from spec.md §9 Open Question 2: "highest-priority provider's
// representative model".
func (r *Registry) RepresentativeModel(category string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if model, ok := e.representative[category]; ok && model != "" {
			return model, true
		}
	}
	return "", false
}

// Wait applies the per-provider rate limit (if configured) before an
// outbound call to providerName. Callers (the Tool Request Pipeline) invoke
// this immediately before Provider.Complete.
func (r *Registry) Wait(ctx context.Context, providerName string) error {
	return r.limiter.Wait(ctx, providerName)
}
