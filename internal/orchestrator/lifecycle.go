package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gruntworks-dev/orchestrator/internal/logging"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

// GeneratorFactory builds the Generator a worker uses to talk to whatever
// model name was resolved for it. Kept as a function value rather than an
// interface so cmd/grunts can close over a registry.Registry + pipeline
// without the orchestrator package needing to know about either.
type GeneratorFactory func(modelName string) worker.Generator

// resolveAdmissibleModel implements spec.md §4.F step 2: verify the
// primary model is admissible per the Registry; fall back to the
// fallback model; fall back again to a universally available small
// model (the registry's "fast" representative) if even that fails.
func resolveAdmissibleModel(ctx context.Context, reg *registry.Registry, primary, fallback string) (string, error) {
	if _, err := reg.GetProviderForModel(ctx, primary); err == nil {
		return primary, nil
	}
	if fallback != "" {
		if _, err := reg.GetProviderForModel(ctx, fallback); err == nil {
			return fallback, nil
		}
	}
	if small, ok := reg.RepresentativeModel("fast"); ok {
		if _, err := reg.GetProviderForModel(ctx, small); err == nil {
			return small, nil
		}
	}
	return "", fmt.Errorf("orchestrator: no admissible model for primary %q or fallback %q", primary, fallback)
}

// launchWorkers implements spec.md §4.F steps 1-3: workspace init,
// per-spec model substitution, and worker launch bound to its port and
// subtask.
func (o *Orchestrator) launchWorkers(ctx context.Context, run *Run, specs []worker.Spec, subtasks []Subtask) error {
	root := filepath.Join(o.workspaceRoot, run.RunID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("orchestrator: create run workspace: %w", err)
	}

	for i, spec := range specs {
		model, err := resolveAdmissibleModel(ctx, o.registry, spec.ModelName, spec.FallbackModelName)
		if err != nil {
			o.log.Warn(ctx, "no admissible model for worker, skipping launch", logging.F("worker_id", spec.WorkerID), logging.F("error", err.Error()))
			continue
		}
		spec.ModelName = model
		spec.WorkspaceDir = filepath.Join(root, fmt.Sprintf("worker-%d", spec.WorkerID))

		subtask := subtasks[i%len(subtasks)]
		w := worker.New(spec, o.generatorFor(model), o.basePort)
		run.addWorker(w)
		w.Start(ctx, subtask.Description, run.Technologies)
	}
	return nil
}

// waitLoop polls worker status at a fixed cadence until every worker is
// terminal, the deadline passes, or ctx is cancelled, running partial
// assessments on an independent scheduler so neither blocks the other
// (spec.md §5's ordering guarantees; §4.F step 4).
func (o *Orchestrator) waitLoop(ctx context.Context, run *Run) {
	sched, err := newAssessmentScheduler(run.PartialAssessmentIntervalSeconds, func() {
		run.recordAssessment(assess(run.Workers()))
	})
	if err == nil {
		sched.start()
		defer sched.stop()
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.terminate(run)
			return
		case <-ticker.C:
			if run.AllTerminal() || run.Expired() {
				o.terminate(run)
				return
			}
		}
	}
}

// terminate cancels every worker (each worker's loop observes the
// cancellation between iterations and fails with reason "cancelled"),
// then waits up to a 10s grace period for all of them to reach a terminal
// phase. There is no forced step: a worker still running when the grace
// period ends (for example, blocked in a provider call) is left running
// and terminate returns anyway.
func (o *Orchestrator) terminate(run *Run) {
	for _, w := range run.Workers() {
		w.Cancel()
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if run.AllTerminal() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
