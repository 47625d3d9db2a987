// Package statusplane implements the Status Plane (spec.md §4.G): the
// Orchestrator's read-only aggregate view of all active Runs, polled by
// a dashboard. The Orchestrator is the sole writer of aggregate Run
// state; workers are the sole writers of their own Worker Status — this
// package only ever reads worker snapshots, never mutates them.
package statusplane

import (
	"sync"
	"time"

	"github.com/gruntworks-dev/orchestrator/internal/orchestrator"
	"github.com/gruntworks-dev/orchestrator/internal/worker"
)

// RunView is the read-only aggregate view of one Run exposed to the
// dashboard.
type RunView struct {
	RunID       string             `json:"run_id"`
	Tier        string             `json:"tier"`
	StartedAt   time.Time          `json:"started_at"`
	DeadlineAt  time.Time          `json:"deadline_at"`
	Outcome     string             `json:"outcome,omitempty"`
	Workers     []worker.Snapshot  `json:"workers"`
	Assessments []orchestrator.Assessment `json:"assessments"`
}

// Plane holds the set of Runs currently tracked, keyed by run ID.
// Grounded on the teacher's health-checker pattern of a mutex-guarded
// map of independently-owned status records polled on a fixed cadence.
type Plane struct {
	mu   sync.RWMutex
	runs map[string]*orchestrator.Run
}

// New returns an empty Plane.
func New() *Plane {
	return &Plane{runs: make(map[string]*orchestrator.Run)}
}

// Track registers run for observation. The Orchestrator calls this once
// per StartRun; no other caller ever mutates the tracked set.
func (p *Plane) Track(run *orchestrator.Run) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs[run.RunID] = run
}

// Untrack removes a run from observation. Nothing in the orchestrator or
// cmd/grunts calls it, and Plane itself enforces no retention policy, so a
// tracked run stays visible until a caller untracks it.
func (p *Plane) Untrack(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runs, runID)
}

// View returns the dashboard-facing snapshot of runID, or false if it
// isn't tracked.
func (p *Plane) View(runID string) (RunView, bool) {
	p.mu.RLock()
	run, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return RunView{}, false
	}
	return viewOf(run), true
}

// AllViews returns the dashboard-facing snapshot of every tracked run.
func (p *Plane) AllViews() []RunView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	views := make([]RunView, 0, len(p.runs))
	for _, run := range p.runs {
		views = append(views, viewOf(run))
	}
	return views
}

func viewOf(run *orchestrator.Run) RunView {
	workers := run.Workers()
	snaps := make([]worker.Snapshot, 0, len(workers))
	for _, w := range workers {
		snaps = append(snaps, w.Status().Snapshot())
	}
	outcome := ""
	if run.AllTerminal() {
		outcome = string(run.Outcome())
	}
	return RunView{
		RunID:       run.RunID,
		Tier:        run.Tier,
		StartedAt:   run.StartedAt,
		DeadlineAt:  run.DeadlineAt,
		Outcome:     outcome,
		Workers:     snaps,
		Assessments: run.Assessments(),
	}
}
