// Package worker implements the Worker Loop (spec.md §4.E): the
// generate → score → re-prompt iteration a single worker runs against one
// subtask, plus the worker's own HTTP status surface (spec.md §4.G).
package worker

import "fmt"

// Phase is a Worker Status's phase, exactly the enum spec.md §3 names.
// §4.E's state-machine diagram only narrates initializing/analyzing/coding/
// validating/completed/failed; Optimizing and Deploying (also listed in
// §3's Worker Status invariant) are given meaning here as the two steps of
// §4.E's "Completion artifact" procedure — Optimizing covers final cleanup
// of the winning candidate, Deploying covers writing the artifact files
// (the served URL is computed there but nothing is started to serve it) —
// so every phase value in the data model has a
// concrete, reachable state. See DESIGN.md for this decision.
type Phase int

const (
	Initializing Phase = iota
	Analyzing
	Coding
	Testing
	Optimizing
	Deploying
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Analyzing:
		return "analyzing"
	case Coding:
		return "coding"
	case Testing:
		return "testing"
	case Optimizing:
		return "optimizing"
	case Deploying:
		return "deploying"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is what nextPhase reacts to, decoupling the transition table from
// the loop's internal bookkeeping.
type Event int

const (
	EventWorkspaceReady Event = iota
	EventPromptBuilt
	EventCandidateGenerated
	EventScored            // below threshold: go back to Coding
	EventScoreExcellent    // reached EXCELLENT_THRESHOLD: go to Optimizing
	EventOptimized
	EventDeployed
	EventAborted // max iterations, similarity-abort, or cancellation
)

// allowed enumerates every (phase, event) edge the state machine permits.
// The only backward edge is Testing -> Coding (the iterate-and-reprompt
// cycle spec.md §4.E's diagram draws as "coding ⇄ validating"); every other
// transition moves strictly forward, enforcing spec.md §3's "phase is
// monotonic in the forward direction" invariant by construction rather
// than by trusting the caller.
var allowed = map[Phase]map[Event]Phase{
	Initializing: {EventWorkspaceReady: Analyzing, EventAborted: Failed},
	Analyzing:    {EventPromptBuilt: Coding, EventAborted: Failed},
	Coding:       {EventCandidateGenerated: Testing, EventAborted: Failed},
	Testing: {
		EventScored:         Coding,
		EventScoreExcellent: Optimizing,
		EventAborted:        Failed,
	},
	Optimizing: {EventOptimized: Deploying, EventAborted: Failed},
	Deploying:  {EventDeployed: Completed, EventAborted: Failed},
}

// nextPhase applies event to current, returning an error if the transition
// isn't in the allowed table (including any attempt to act on a terminal
// phase).
func nextPhase(current Phase, event Event) (Phase, error) {
	edges, ok := allowed[current]
	if !ok {
		return current, fmt.Errorf("worker: phase %s is terminal, no transitions permitted", current)
	}
	next, ok := edges[event]
	if !ok {
		return current, fmt.Errorf("worker: no transition from phase %s on event %d", current, event)
	}
	return next, nil
}
