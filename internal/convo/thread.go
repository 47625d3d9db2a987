// Package convo implements the Conversation Store (spec.md §4.C): a
// Redis-backed thread store giving the Tool Request Pipeline cross-call
// context continuation, with a turn cap, a TTL-based expiry, and a
// per-thread lease serializing concurrent appends to the same thread.
package convo

import "time"

// Turn is one user or assistant message appended to a Thread, in append
// order.
type Turn struct {
	Role            string // "user" or "assistant"
	Content         string
	Model           string // the concrete model that produced an assistant turn; empty for user turns
	InputTokens     int
	OutputTokens    int
	CreatedAt       time.Time
}

// Stats summarizes a Thread's turns, kept denormalized on Thread so readers
// never need to re-sum Turns.
type Stats struct {
	TotalTurns        int
	TotalInputTokens  int
	TotalOutputTokens int
}

// Thread is a persisted conversation: an ordered, bounded, expirable record
// identified by an opaque id (spec.md §3 "Thread").
type Thread struct {
	ID         string
	ToolName   string
	Metadata   map[string]string
	Turns      []Turn
	Stats      Stats
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Full reports whether the thread has reached maxTurns and accepts no
// further appends (spec.md §3 invariant: len(turns) <= MAX_TURNS).
func (t *Thread) Full(maxTurns int) bool {
	return len(t.Turns) >= maxTurns
}
