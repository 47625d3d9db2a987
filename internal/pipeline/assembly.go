package pipeline

import (
	"github.com/gruntworks-dev/orchestrator/internal/convo"
	"github.com/gruntworks-dev/orchestrator/internal/registry"
)

// estimateTokens approximates token count from character count. A true
// tokenizer is model-specific and out of scope (spec.md's Non-goals don't
// name this directly, but no tokenizer library appears anywhere in the
// retrieved pack — every provider adapter instead reports usage from the
// API response itself); 4 characters per token is the same rough ratio the
// teacher's prompt-size constants assume.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// AssembleTranscript builds the message list submitted to a Provider (spec.md
// §4.D step 5): prior turns in append order, eliding the oldest
// user/assistant pair first until the system prompt plus the remaining
// turns fit contextWindow. The system prompt counts against the budget but
// is not part of the returned messages; callers pass it separately as
// CompletionRequest.System.
func AssembleTranscript(systemPrompt string, turns []convo.Turn, contextWindow int) []registry.Message {
	pairs := pairUp(turns)

	for {
		total := estimateTokens(systemPrompt)
		for _, p := range pairs {
			for _, t := range p {
				total += estimateTokens(t.Content)
			}
		}
		if total <= contextWindow || len(pairs) == 0 {
			break
		}
		pairs = pairs[1:]
	}

	messages := make([]registry.Message, 0, 2*len(pairs)+1)
	for _, p := range pairs {
		for _, t := range p {
			messages = append(messages, registry.Message{Role: t.Role, Content: t.Content})
		}
	}
	return messages
}

// pairUp groups turns into user/assistant pairs so elision always drops a
// whole exchange rather than a lone message. An odd trailing turn (a user
// message not yet answered) forms its own single-element pair.
func pairUp(turns []convo.Turn) [][]convo.Turn {
	var pairs [][]convo.Turn
	for i := 0; i < len(turns); i += 2 {
		if i+1 < len(turns) {
			pairs = append(pairs, []convo.Turn{turns[i], turns[i+1]})
		} else {
			pairs = append(pairs, []convo.Turn{turns[i]})
		}
	}
	return pairs
}
