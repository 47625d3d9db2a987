package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/gruntworks-dev/orchestrator/internal/registry"
	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

type stubProvider struct{}

func (stubProvider) Complete(ctx context.Context, req *registry.CompletionRequest) (*registry.CompletionResponse, error) {
	return &registry.CompletionResponse{Content: "ok", Model: req.Model}, nil
}

type echoGenerator struct{ response string }

func (g echoGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return g.response, nil
}

func setupOrchestrator(t *testing.T, workspaceRoot string) *Orchestrator {
	t.Helper()
	reg := registry.New(nil, nil, nil)
	reg.Register("stub", registry.PriorityNative, stubProvider{}, []registry.ModelCapabilities{
		{ModelName: "stub-model", ContextWindow: 8000, TemperatureConstraint: registry.Range{Low: 0, High: 2, DefaultValue: 1}},
	}, map[string]string{"all": "stub-model", "fast": "stub-model"}, false)
	if err := reg.Initialize(context.Background()); err != nil {
		t.Fatalf("registry init: %v", err)
	}

	decomposer := NewDecomposer(nil, &stubGenerator{})

	gen := func(modelName string) worker.Generator {
		return echoGenerator{response: "import Phaser from 'phaser';\nfunction create() { this.cursors = this.input.keyboard.createCursorKeys(); }"}
	}

	return New(reg, decomposer, gen, workspaceRoot, 9000, nil)
}

func TestOrchestrator_UltralightRunLaunchesTwoWorkers(t *testing.T) {
	o := setupOrchestrator(t, t.TempDir())

	run, err := o.StartRun(context.Background(), TierUltralight, "Build a calculator page", nil, 5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Workers()) != 2 {
		t.Fatalf("expected 2 workers for ultralight tier, got %d", len(run.Workers()))
	}
	if !run.AllTerminal() {
		t.Fatalf("expected all workers to reach a terminal phase within the deadline")
	}
}

func TestOrchestrator_UnknownTierDefaultsToMedium(t *testing.T) {
	o := setupOrchestrator(t, t.TempDir())

	run, err := o.StartRun(context.Background(), "not-a-real-tier", "simple task", nil, 5, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Tier != TierMedium {
		t.Fatalf("expected tier to resolve to medium, got %s", run.Tier)
	}
	if len(run.Workers()) != 5 {
		t.Fatalf("expected 5 workers for medium tier, got %d", len(run.Workers()))
	}
}

func TestOrchestrator_StartRunTracked_InvokesOnLaunchedBeforeTermination(t *testing.T) {
	o := setupOrchestrator(t, t.TempDir())

	var sawWorkers int
	var sawTerminal bool
	onLaunched := func(run *Run) {
		sawWorkers = len(run.Workers())
		sawTerminal = run.AllTerminal()
	}

	run, err := o.StartRunTracked(context.Background(), TierUltralight, "Build a calculator page", nil, 5, 1, onLaunched)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawWorkers != 2 {
		t.Fatalf("expected onLaunched to observe 2 workers, got %d", sawWorkers)
	}
	if sawTerminal {
		t.Fatalf("expected onLaunched to fire before workers went terminal")
	}
	if !run.AllTerminal() {
		t.Fatalf("expected run to be terminal once StartRunTracked returns")
	}
}

func TestOrchestrator_DeadlineEnforced(t *testing.T) {
	o := setupOrchestrator(t, t.TempDir())

	started := time.Now()
	run, err := o.StartRun(context.Background(), TierUltralight, "a task that never scores well", nil, 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(started) > 6*time.Second {
		t.Fatalf("expected termination shortly after the 1s deadline, took %s", time.Since(started))
	}
	_ = run
}
