// Package pipeline implements the Tool Request Pipeline (spec.md §4.D): the
// per-request validate → resolve → assemble → call → append → offer flow
// every tool invocation shares, regardless of which tool it's for.
package pipeline

// ToolSpec describes what differs between tools invoking this pipeline:
// spec.md §4.D's "tools differ only in (i) their system prompt, (ii) their
// input schema, (iii) how they fold optional files/images into the user
// prompt."
type ToolSpec struct {
	Name             string
	SystemPrompt     string
	ModelCategory    string // "reasoning" | "fast" | "all"
	DeclaresImages   bool
	Suggestions      []string // candidate follow-ups offered in a ContinuationOffer
}

// Request is a validated tool invocation.
type Request struct {
	Prompt         string
	Model          string // "" or "auto" triggers model resolution (step 3)
	Temperature    *float64
	ContinuationID string
	HasImages      bool
	JSONMode       bool
	Stop           []string
}

// Fields lists the Request fields schema validation checked, used to build
// an InvalidRequest error naming every offending field (spec.md §4.D step 1
// — "listing all offending fields").
type Fields struct {
	Missing []string
	Invalid []string
}

func (f Fields) any() bool { return len(f.Missing) > 0 || len(f.Invalid) > 0 }

// Validate applies schema validation (spec.md §4.D step 1): every offending
// field is collected rather than returning on the first failure, so the
// InvalidRequest error can list all of them at once.
func Validate(req Request) (Fields, bool) {
	var f Fields
	if req.Prompt == "" {
		f.Missing = append(f.Missing, "prompt")
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		f.Invalid = append(f.Invalid, "temperature")
	}
	return f, f.any()
}

// PromptTooLarge applies the prompt size check (step 2): the limit applies
// to the pre-assembly user text only, not the assembled transcript.
func PromptTooLarge(prompt string, limit int) bool {
	return limit > 0 && len(prompt) > limit
}
