package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Tunable thresholds spec.md §4.E names with their defaults.
const (
	DefaultMaxIterations            = 10
	DefaultExcellentThreshold       = 90
	DefaultSimilarityAbortThreshold = 10
	DefaultSimilarityThreshold      = 0.80
)

// Generator is the narrow seam between a worker and whatever actually
// talks to a model provider. A worker only ever needs "take this prompt,
// get text back" — it has no business depending on the registry or
// pipeline packages directly, so callers (cmd/grunts) adapt those into
// this interface.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Spec is a Worker Specification (spec.md §3): static for the life of
// the worker.
type Spec struct {
	WorkerID          int
	ModelName         string
	FallbackModelName string
	SpecializationTag string
	SystemPrompt      string
	WorkspaceDir      string
	Port              int
	MaxIterations     int
	Language          string // target language for the syntax-parse scoring step
	ContextWindow     int    // chars, drives prompt-growth bounding
}

func (s Spec) maxIterations() int {
	if s.MaxIterations > 0 {
		return s.MaxIterations
	}
	return DefaultMaxIterations
}

// Worker runs the generate -> score -> re-prompt iteration for one
// subtask (spec.md §4.E) against one disposable workspace.
type Worker struct {
	spec      Spec
	status    *Status
	generator Generator
	basePort  int
	codeFile  string

	mu        sync.Mutex
	started   bool
	cancelled bool
	cancelCh  chan struct{}

	issueHistory  []string
	feedbackQueue []string

	ExcellentThreshold       int
	SimilarityAbortThreshold int
	SimilarityThreshold      float64
}

// New builds a Worker for spec, generating candidates through gen and
// writing its completion artifact under a filename derived from
// spec.Language (main.go for "go", main.js otherwise).
func New(spec Spec, gen Generator, basePort int) *Worker {
	if spec.ContextWindow == 0 {
		spec.ContextWindow = 32000
	}
	codeFile := "main.js"
	if spec.Language == "go" {
		codeFile = "main.go"
	}
	return &Worker{
		spec:                     spec,
		status:                   NewStatus(spec.WorkerID),
		generator:                gen,
		basePort:                 basePort,
		codeFile:                 codeFile,
		cancelCh:                 make(chan struct{}),
		ExcellentThreshold:       DefaultExcellentThreshold,
		SimilarityAbortThreshold: DefaultSimilarityAbortThreshold,
		SimilarityThreshold:      DefaultSimilarityThreshold,
	}
}

// Status exposes the worker's live status record.
func (w *Worker) Status() *Status { return w.status }

// Start launches the iteration loop in a background goroutine. It is
// idempotent per worker lifetime: a second call returns false without
// restarting anything, per spec.md §6's "idempotent per worker lifetime".
func (w *Worker) Start(ctx context.Context, prompt string, technologies []string) bool {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return false
	}
	w.started = true
	w.mu.Unlock()

	go w.run(ctx, prompt, technologies)
	return true
}

// Cancel requests best-effort cancellation. The loop observes it between
// iterations and before the next provider call; an in-flight call is
// allowed to finish or time out, its result discarded.
func (w *Worker) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.cancelled {
		w.cancelled = true
		close(w.cancelCh)
	}
}

func (w *Worker) cancelRequested() bool {
	select {
	case <-w.cancelCh:
		return true
	default:
		return false
	}
}

func (w *Worker) run(ctx context.Context, task string, technologies []string) {
	if err := w.status.transition(EventWorkspaceReady); err != nil {
		w.fail(fmt.Sprintf("workspace setup: %v", err))
		return
	}

	systemPrompt := w.buildSystemPrompt(technologies)
	if err := w.status.transition(EventPromptBuilt); err != nil {
		w.fail(fmt.Sprintf("prompt build: %v", err))
		return
	}

	prompt := task
	best := Score{Value: -1}
	maxIter := w.spec.maxIterations()

	for iteration := 1; iteration <= maxIter; iteration++ {
		if w.cancelRequested() {
			w.fail("cancelled")
			return
		}

		candidateText, err := w.generator.Generate(ctx, systemPrompt, prompt)
		if w.cancelRequested() {
			w.fail("cancelled")
			return
		}
		if err != nil {
			w.recordFailedIteration(iteration, err.Error())
			if w.shouldAbort(iteration, maxIter) {
				w.fail(fmt.Sprintf("generation error: %v", err))
				return
			}
			continue
		}

		if err := w.status.transition(EventCandidateGenerated); err != nil {
			w.fail(err.Error())
			return
		}

		score := ScoreCandidate(candidateText, task, w.spec.Language)
		issueText := strings.Join(score.Issues, "; ")
		similar := AnySimilar(issueText, w.issueHistory, w.SimilarityThreshold)
		w.issueHistory = append(w.issueHistory, issueText)

		if score.Value > best.Value {
			best = score
		}
		testsPassed, testsFailed := 0, 0
		if len(score.Issues) == 0 {
			testsPassed = 1
		} else {
			testsFailed = len(score.Issues)
		}
		w.status.recordIteration(iteration, score.Value, testsPassed, testsFailed, len(strings.Split(score.Code, "\n")), similar)

		if score.Value >= w.ExcellentThreshold {
			w.complete(task, best)
			return
		}

		if w.shouldAbort(iteration, maxIter) {
			w.fail("iteration/similarity limit reached")
			return
		}

		if err := w.status.transition(EventScored); err != nil {
			w.fail(err.Error())
			return
		}
		prompt = w.nextPrompt(task, score)
	}

	w.fail("max iterations reached")
}

// shouldAbort reports the two abort conditions spec.md §4.E names,
// besides cancellation (handled separately).
func (w *Worker) shouldAbort(iteration, maxIter int) bool {
	snap := w.status.Snapshot()
	return iteration >= maxIter || snap.ConsecutiveFailures >= w.SimilarityAbortThreshold
}

func (w *Worker) recordFailedIteration(iteration int, issue string) {
	similar := AnySimilar(issue, w.issueHistory, w.SimilarityThreshold)
	w.issueHistory = append(w.issueHistory, issue)
	w.status.recordIteration(iteration, 0, 0, 1, 0, similar)
}

// nextPrompt appends structured feedback and keeps total length bounded:
// when growth would put the prompt within 20% of the context window, the
// oldest feedback block is dropped first.
func (w *Worker) nextPrompt(task string, score Score) string {
	if len(score.Feedback) > 0 {
		w.feedbackQueue = append(w.feedbackQueue, strings.Join(score.Feedback, "\n"))
	}

	budget := int(float64(w.spec.ContextWindow) * 0.8)
	for {
		total := len(task) + len(strings.Join(w.feedbackQueue, "\n"))
		if total <= budget || len(w.feedbackQueue) <= 1 {
			break
		}
		w.feedbackQueue = w.feedbackQueue[1:]
	}

	return task + "\n" + strings.Join(w.feedbackQueue, "\n")
}

func (w *Worker) buildSystemPrompt(technologies []string) string {
	parts := []string{w.spec.SystemPrompt}
	if w.spec.SpecializationTag != "" {
		parts = append(parts, fmt.Sprintf("Specialization: %s.", w.spec.SpecializationTag))
	}
	if len(technologies) > 0 {
		parts = append(parts, fmt.Sprintf("Technologies: %s.", strings.Join(technologies, ", ")))
	}
	return strings.Join(parts, "\n")
}

func (w *Worker) complete(task string, best Score) {
	if err := w.status.transition(EventScoreExcellent); err != nil {
		w.fail(err.Error())
		return
	}
	cleaned := strings.TrimSpace(best.Code)
	if err := w.status.transition(EventOptimized); err != nil {
		w.fail(err.Error())
		return
	}
	_, err := WriteCompletionArtifact(w.spec.WorkspaceDir, w.spec.WorkerID, w.basePort, task, cleaned, w.codeFile)
	if err != nil {
		w.fail(fmt.Sprintf("artifact write: %v", err))
		return
	}
	if err := w.status.transition(EventDeployed); err != nil {
		w.fail(err.Error())
		return
	}
}

func (w *Worker) fail(reason string) {
	w.status.setAbortReason(reason)
	// Failed is reachable from every non-terminal phase via EventAborted;
	// transition() itself enforces this is only ever invoked once the
	// current phase is non-terminal.
	_ = w.status.transition(EventAborted)
}
