// Command grunts is the Grunts orchestrator entry point: it wires
// configuration, logging, the Provider Registry, the Conversation Store,
// the Tool Request Pipeline, the Orchestrator, and the Status Plane
// together and starts the process's HTTP surface (run submission plus
// /metrics).
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/gruntworks-dev/orchestrator/internal/config"
	"github.com/gruntworks-dev/orchestrator/internal/convo"
	"github.com/gruntworks-dev/orchestrator/internal/logging"
	"github.com/gruntworks-dev/orchestrator/internal/orchestrator"
	"github.com/gruntworks-dev/orchestrator/internal/pipeline"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
	"github.com/gruntworks-dev/orchestrator/internal/registry/adapters"
	"github.com/gruntworks-dev/orchestrator/internal/statusplane"
	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("grunts: config: %v", err)
	}

	logLevel := logging.LevelInfo
	logr := logging.NewStd(logLevel)

	ctx := context.Background()

	var modelDoc *config.ModelRegistryDoc
	if cfg.ModelConfigPath != "" {
		modelDoc, err = config.LoadModelDoc(cfg.ModelConfigPath, logr)
		if err != nil {
			log.Fatalf("grunts: model config: %v", err)
		}
		// reg.Initialize below starts the document's file watch.
	}

	reg := registry.New(cfg, modelDoc, logr)
	registerProviders(reg, cfg)
	if err := reg.Initialize(ctx); err != nil {
		log.Fatalf("grunts: registry init: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	store := convo.NewRedisStore(redisClient, cfg.MaxConversationTurns, cfg.ConversationTimeout, logr)

	pl := pipeline.New(reg, store, cfg, logr)

	decomposer := orchestrator.NewDecomposer(nil, decomposerGenerator{pipeline: pl, model: cfg.DefaultModel})

	genFactory := func(modelName string) worker.Generator {
		return workerGenerator{pipeline: pl, model: modelName}
	}

	basePort := 9000
	orch := orchestrator.New(reg, decomposer, genFactory, cfg.WorkspaceDir, basePort, logr)
	plane := statusplane.New()
	metrics, promReg := statusplane.NewMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs", runHandler(ctx, orch, plane))
	mux.HandleFunc("GET /runs/", runViewHandler(plane))
	mux.Handle("/metrics", refreshingMetricsHandler(metrics, promReg, plane))

	addr := ":8080"
	logr.Info(ctx, "grunts listening", logging.F("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("grunts: http server: %v", err)
	}
}

// registerProviders wires up one adapter per provider with a configured
// credential, in spec.md §4.A's priority order: native first-party APIs,
// then the configured custom endpoint, then the catch-all aggregator.
func registerProviders(reg *registry.Registry, cfg *config.Config) {
	defaultTemp := registry.Range{Low: 0, High: 2, DefaultValue: 1}

	if key := cfg.Credentials["openai"]; key != "" {
		reg.Register("openai", registry.PriorityNative, adapters.NewOpenAI(key, ""), []registry.ModelCapabilities{
			{ModelName: "gpt-4o", ContextWindow: 128000, SupportsSystemPrompts: true, SupportsJSONMode: true, SupportsFunctionCalling: true, SupportsImages: true, MaxImageMB: 20, TemperatureConstraint: defaultTemp},
			{ModelName: "gpt-4o-mini", ContextWindow: 128000, SupportsSystemPrompts: true, SupportsJSONMode: true, SupportsFunctionCalling: true, TemperatureConstraint: defaultTemp},
		}, map[string]string{"all": "gpt-4o", "fast": "gpt-4o-mini"}, false)
	}
	if key := cfg.Credentials["gemini"]; key != "" {
		gem, err := adapters.NewGemini(context.Background(), key)
		if err == nil {
			reg.Register("gemini", registry.PriorityNative, gem, []registry.ModelCapabilities{
				{ModelName: "gemini-1.5-pro", ContextWindow: 2000000, SupportsSystemPrompts: true, SupportsImages: true, MaxImageMB: 20, TemperatureConstraint: defaultTemp},
				{ModelName: "gemini-1.5-flash", ContextWindow: 1000000, SupportsSystemPrompts: true, TemperatureConstraint: defaultTemp},
			}, map[string]string{"all": "gemini-1.5-pro", "fast": "gemini-1.5-flash"}, false)
		}
	}
	if key := cfg.Credentials["custom"]; key != "" && cfg.CustomEndpointURL != "" {
		reg.Register("custom", registry.PriorityCustom, adapters.NewCustomEndpoint(key, cfg.CustomEndpointURL), nil, nil, false)
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		reg.Register("openrouter", registry.PriorityAggregator, adapters.NewAggregator(key, ""), nil, nil, true)
	}
}

// workerGenerator adapts the Tool Request Pipeline into worker.Generator,
// so the worker loop never needs to know the pipeline, registry, or
// convo store exist.
type workerGenerator struct {
	pipeline *pipeline.Pipeline
	model    string
}

func (g workerGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	resp, err := g.pipeline.Execute(ctx, pipeline.ToolSpec{Name: "worker", SystemPrompt: systemPrompt, ModelCategory: "all"},
		pipeline.Request{Prompt: prompt, Model: g.model})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// decomposerGenerator is the same adaptation for orchestrator.Generator's
// narrower single-string-argument signature (no separate system prompt —
// the decomposition prompt is self-contained).
type decomposerGenerator struct {
	pipeline *pipeline.Pipeline
	model    string
}

func (g decomposerGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.pipeline.Execute(ctx, pipeline.ToolSpec{Name: "decompose", ModelCategory: "all"},
		pipeline.Request{Prompt: prompt, Model: g.model})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func runHandler(ctx context.Context, orch *orchestrator.Orchestrator, plane *statusplane.Plane) http.HandlerFunc {
	type runRequest struct {
		Tier                string   `json:"tier"`
		Prompt              string   `json:"prompt"`
		Technologies        []string `json:"technologies"`
		MaxExecutionSeconds int      `json:"max_execution_seconds"`
		PartialIntervalSecs int      `json:"partial_assessment_interval_seconds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.MaxExecutionSeconds <= 0 {
			req.MaxExecutionSeconds = 1800
		}

		go func() {
			_, err := orch.StartRunTracked(ctx, req.Tier, req.Prompt, req.Technologies, req.MaxExecutionSeconds, req.PartialIntervalSecs, plane.Track)
			if err != nil {
				log.Printf("grunts: run failed to start: %v", err)
			}
		}()

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	}
}

func runViewHandler(plane *statusplane.Plane) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := r.URL.Path[len("/runs/"):]
		view, ok := plane.View(runID)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(view)
	}
}

func refreshingMetricsHandler(metrics *statusplane.Metrics, promReg *prometheus.Registry, plane *statusplane.Plane) http.Handler {
	inner := statusplane.Handler(promReg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.Refresh(plane)
		inner.ServeHTTP(w, r)
	})
}
