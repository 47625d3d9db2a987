package orchestrator

import (
	"sync"
	"time"

	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

// Outcome is the terminal classification of a Run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Assessment is one partial-assessment snapshot recorded during a Run.
type Assessment struct {
	At      time.Time                 `json:"at"`
	Workers map[int]worker.Snapshot   `json:"workers"`
	MeanScore float64                 `json:"mean_score"`
	StdDevScore float64               `json:"stddev_score"`
}

// Run is an Orchestration Run (spec.md §3): one end-to-end invocation.
type Run struct {
	RunID                            string
	Tier                             string
	Prompt                           string
	Technologies                     []string
	MaxExecutionSeconds              int
	PartialAssessmentIntervalSeconds int

	StartedAt  time.Time
	DeadlineAt time.Time

	mu          sync.RWMutex
	workers     map[int]*worker.Worker
	assessments []Assessment
	outcome     Outcome
}

// NewRun constructs a Run whose deadline is derived from maxExecutionSeconds.
func NewRun(runID, tier, prompt string, technologies []string, maxExecutionSeconds, partialAssessmentIntervalSeconds int) *Run {
	if partialAssessmentIntervalSeconds <= 0 {
		partialAssessmentIntervalSeconds = 1800
	}
	now := clockNow()
	return &Run{
		RunID:                            runID,
		Tier:                             tier,
		Prompt:                           prompt,
		Technologies:                     technologies,
		MaxExecutionSeconds:              maxExecutionSeconds,
		PartialAssessmentIntervalSeconds: partialAssessmentIntervalSeconds,
		StartedAt:                        now,
		DeadlineAt:                       now.Add(time.Duration(maxExecutionSeconds) * time.Second),
		workers:                          make(map[int]*worker.Worker),
	}
}

// clockNow is the run's only time source, isolated so tests can't be
// flaky against wall-clock jitter if ever swapped for a fake.
var clockNow = time.Now

func (r *Run) addWorker(w *worker.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.Status().Snapshot().WorkerID] = w
}

// Workers returns the set of workers launched for this run.
func (r *Run) Workers() []*worker.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*worker.Worker, 0, len(r.workers))
	for _, w := range r.workers {
		out = append(out, w)
	}
	return out
}

// Expired reports whether the run's deadline has passed.
func (r *Run) Expired() bool {
	return clockNow().After(r.DeadlineAt) || clockNow().Equal(r.DeadlineAt)
}

// AllTerminal reports whether every worker has reached completed or failed.
func (r *Run) AllTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.workers {
		p := w.Status().Phase()
		if p != worker.Completed && p != worker.Failed {
			return false
		}
	}
	return len(r.workers) > 0
}

func (r *Run) recordAssessment(a Assessment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments = append(r.assessments, a)
}

// Assessments returns the recorded partial assessments in order.
func (r *Run) Assessments() []Assessment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Assessment, len(r.assessments))
	copy(out, r.assessments)
	return out
}

// Classify implements spec.md §4.F's failure semantics: success if at
// least one worker completed; partial if all failed but at least one
// produced a best_score > 0 (an artifact); failed otherwise.
func (r *Run) Classify() Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	anyCompleted := false
	anyArtifact := false
	for _, w := range r.workers {
		snap := w.Status().Snapshot()
		if w.Status().Phase() == worker.Completed {
			anyCompleted = true
		}
		if snap.BestScore > 0 {
			anyArtifact = true
		}
	}
	switch {
	case anyCompleted:
		return OutcomeSuccess
	case anyArtifact:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}
