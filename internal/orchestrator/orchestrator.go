// Package orchestrator implements the Orchestrator (spec.md §4.F): tier
// selection, task decomposition, worker-pool lifecycle, partial
// assessment, and run-outcome aggregation.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gruntworks-dev/orchestrator/internal/logging"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
)

// workerSystemPrompt is the base system prompt every launched worker
// starts from; buildSystemPrompt in internal/worker layers the
// specialization tag and declared technologies on top of it.
const workerSystemPrompt = "You are a code generation worker. Produce complete, runnable source code for your assigned subtask. Respond with code only."

// Orchestrator drives Orchestration Runs end to end.
type Orchestrator struct {
	registry      *registry.Registry
	decomposer    *Decomposer
	log           logging.Logger
	workspaceRoot string
	basePort      int
	generatorFor  GeneratorFactory
}

// New builds an Orchestrator. log may be nil, in which case a no-op
// logger is used.
func New(reg *registry.Registry, decomposer *Decomposer, generatorFor GeneratorFactory, workspaceRoot string, basePort int, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.Noop{}
	}
	return &Orchestrator{
		registry:      reg,
		decomposer:    decomposer,
		log:           log,
		workspaceRoot: workspaceRoot,
		basePort:      basePort,
		generatorFor:  generatorFor,
	}
}

// StartRun resolves tier, decomposes task into subtasks, launches the
// worker pool, and blocks until the run reaches a terminal state (spec.md
// §4.F's full lifecycle). It returns the completed Run.
func (o *Orchestrator) StartRun(ctx context.Context, tier, task string, technologies []string, maxExecutionSeconds, partialAssessmentIntervalSeconds int) (*Run, error) {
	return o.StartRunTracked(ctx, tier, task, technologies, maxExecutionSeconds, partialAssessmentIntervalSeconds, nil)
}

// StartRunTracked is StartRun plus an onLaunched hook invoked as soon as
// the worker pool is up (before the wait loop blocks), so a caller like
// the status plane can start observing a Run's live Worker Status before
// it reaches a terminal state, rather than only after StartRun returns.
func (o *Orchestrator) StartRunTracked(ctx context.Context, tier, task string, technologies []string, maxExecutionSeconds, partialAssessmentIntervalSeconds int, onLaunched func(*Run)) (*Run, error) {
	resolvedTier := ResolveTier(tier)
	run := NewRun(uuid.NewString(), resolvedTier, task, technologies, maxExecutionSeconds, partialAssessmentIntervalSeconds)

	subtasks, err := o.decomposer.Decompose(ctx, task, technologies)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: decomposition failed: %w", err)
	}

	defaultModel, _ := o.registry.RepresentativeModel("all")
	specs := BuildSpecs(resolvedTier, o.basePort, defaultModel, defaultModel, workerSystemPrompt, o.workspaceRoot)

	runCtx, cancel := context.WithDeadline(ctx, run.DeadlineAt)
	defer cancel()

	if err := o.launchWorkers(runCtx, run, specs, subtasks); err != nil {
		return nil, err
	}

	if onLaunched != nil {
		onLaunched(run)
	}

	o.waitLoop(runCtx, run)
	run.outcome = run.Classify()
	return run, nil
}

// Outcome returns the run's terminal classification, valid only after
// StartRun has returned.
func (r *Run) Outcome() Outcome { return r.outcome }
