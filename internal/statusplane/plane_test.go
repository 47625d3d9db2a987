package statusplane

import (
	"context"
	"testing"

	"github.com/gruntworks-dev/orchestrator/internal/orchestrator"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

type stubProvider struct{}

func (stubProvider) Complete(ctx context.Context, req *registry.CompletionRequest) (*registry.CompletionResponse, error) {
	return &registry.CompletionResponse{Content: "ok", Model: req.Model}, nil
}

type echoGenerator struct{}

func (echoGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return "import Phaser from 'phaser';\nfunction create() { this.cursors = this.input.keyboard.createCursorKeys(); }", nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", nil
}

func buildTrackedRun(t *testing.T) (*Plane, *orchestrator.Run) {
	t.Helper()
	reg := registry.New(nil, nil, nil)
	reg.Register("stub", registry.PriorityNative, stubProvider{}, []registry.ModelCapabilities{
		{ModelName: "stub-model", ContextWindow: 8000, TemperatureConstraint: registry.Range{Low: 0, High: 2, DefaultValue: 1}},
	}, map[string]string{"all": "stub-model", "fast": "stub-model"}, false)
	if err := reg.Initialize(context.Background()); err != nil {
		t.Fatalf("registry init: %v", err)
	}

	decomposer := orchestrator.NewDecomposer(nil, stubGenerator{})
	gen := func(modelName string) worker.Generator { return echoGenerator{} }
	o := orchestrator.New(reg, decomposer, gen, t.TempDir(), 9100, nil)

	run, err := o.StartRun(context.Background(), orchestrator.TierUltralight, "build a phaser game", nil, 5, 1)
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	p := New()
	p.Track(run)
	return p, run
}

func TestPlane_ViewReflectsRunState(t *testing.T) {
	p, run := buildTrackedRun(t)

	view, ok := p.View(run.RunID)
	if !ok {
		t.Fatalf("expected tracked run to be found")
	}
	if len(view.Workers) != 2 {
		t.Fatalf("expected 2 worker snapshots, got %d", len(view.Workers))
	}
	if view.Outcome == "" {
		t.Fatalf("expected a terminal outcome after StartRun returns")
	}
}

func TestPlane_UntrackRemovesView(t *testing.T) {
	p, run := buildTrackedRun(t)
	p.Untrack(run.RunID)
	if _, ok := p.View(run.RunID); ok {
		t.Fatalf("expected untracked run to no longer be visible")
	}
}

func TestMetrics_RefreshPopulatesGauges(t *testing.T) {
	p, _ := buildTrackedRun(t)
	m, reg := NewMetrics()
	m.Refresh(p)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected at least one metric family after refresh")
	}
}
