package pipeline

import (
	"github.com/gruntworks-dev/orchestrator/internal/convo"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
)

// ContinuationOffer invites the caller to extend a thread with a further
// call carrying the same thread_id (spec.md §4.D step 8).
type ContinuationOffer struct {
	ThreadID    string
	Stats       convo.Stats
	Suggestions []string
}

// Response is the pipeline's successful result.
type Response struct {
	Content           string
	Model             string
	ThreadID          string
	Usage             registry.TokenUsage
	ContinuationOffer *ContinuationOffer
}
