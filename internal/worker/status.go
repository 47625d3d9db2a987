package worker

import (
	"sync"
	"time"
)

// Status is a Worker Status record (spec.md §3): live, mutable, owned by
// the worker that holds it, observed (read-only) by anything else. Every
// mutator takes the internal lock, so a Snapshot is always internally
// consistent even though callers never see partial updates mid-field-group.
type Status struct {
	mu sync.RWMutex

	workerID            int
	phase               Phase
	currentIteration    int
	bestScore           int
	consecutiveFailures int
	linesAdded          int
	testsPassed         int
	testsFailed         int
	progressPercent     int
	lastActivityAt      time.Time
	abortReason         string
}

// Snapshot is the value copy handed out over the status HTTP endpoint and
// to the Orchestrator's partial assessments.
type Snapshot struct {
	WorkerID            int       `json:"worker_id"`
	Phase               string    `json:"phase"`
	CurrentIteration    int       `json:"current_iteration"`
	BestScore           int       `json:"best_score"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LinesAdded          int       `json:"lines_added"`
	TestsPassed         int       `json:"tests_passed"`
	TestsFailed         int       `json:"tests_failed"`
	ProgressPercent     int       `json:"progress_percent"`
	LastActivityAt      time.Time `json:"last_activity_at"`
	AbortReason         string    `json:"abort_reason,omitempty"`
}

// NewStatus returns a Status in the initializing phase for workerID.
func NewStatus(workerID int) *Status {
	return &Status{workerID: workerID, phase: Initializing, lastActivityAt: time.Now()}
}

// Snapshot returns a consistent point-in-time copy of s.
func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		WorkerID:            s.workerID,
		Phase:               s.phase.String(),
		CurrentIteration:    s.currentIteration,
		BestScore:           s.bestScore,
		ConsecutiveFailures: s.consecutiveFailures,
		LinesAdded:          s.linesAdded,
		TestsPassed:         s.testsPassed,
		TestsFailed:         s.testsFailed,
		ProgressPercent:     s.progressPercent,
		LastActivityAt:      s.lastActivityAt,
		AbortReason:         s.abortReason,
	}
}

// Phase returns the current phase.
func (s *Status) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// transition applies event via nextPhase and records the move, touching
// lastActivityAt. Callers hold no lock of their own — this is the only
// path that mutates phase, so the monotonicity invariant nextPhase
// enforces can never be bypassed by a direct field write.
func (s *Status) transition(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := nextPhase(s.phase, event)
	if err != nil {
		return err
	}
	s.phase = next
	s.lastActivityAt = time.Now()
	return nil
}

func (s *Status) setAbortReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortReason = reason
}

// recordIteration folds one scored iteration's outcome into the running
// best/consecutive-failure counters per spec.md §4.E's iteration
// accounting: a strictly higher score replaces best and resets the streak;
// otherwise, if the issue text is SIMILARITY_THRESHOLD-similar to any
// previously observed issue text, the streak increments.
func (s *Status) recordIteration(iteration, score int, testsPassed, testsFailed, linesAdded int, similarToHistory bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentIteration = iteration
	s.testsPassed = testsPassed
	s.testsFailed = testsFailed
	s.linesAdded = linesAdded
	s.lastActivityAt = time.Now()
	if score > s.bestScore {
		s.bestScore = score
		s.consecutiveFailures = 0
	} else if similarToHistory {
		s.consecutiveFailures++
	}
	if score > s.progressPercent {
		s.progressPercent = score
	}
}
