package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Generator is the narrow LLM seam the decomposer needs: one free-text
// completion per decomposition attempt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Subtask is one unit of decomposed work: a prompt fragment plus the list
// of test-intent descriptions spec.md §4.F requires alongside it.
type Subtask struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	TestIntents  []string `json:"test_intents"`
}

// DecomposerConfig bounds how aggressively Decompose splits a task.
type DecomposerConfig struct {
	ComplexityThreshold int // below this score, the task is returned as a single subtask
	MinSubtasks         int
	MaxSubtasks         int
}

// DefaultDecomposerConfig mirrors the teacher's planner defaults, scaled
// to a single flat level (no nested subtask trees — spec.md §4.F's
// decomposition output is "a list of subtasks", not a tree).
func DefaultDecomposerConfig() DecomposerConfig {
	return DecomposerConfig{ComplexityThreshold: 4, MinSubtasks: 2, MaxSubtasks: 6}
}

// Decomposer turns a task prompt plus declared technologies into a list
// of Subtasks. The core split is a pure, deterministic function of its
// inputs once the LLM response is in hand; only analyzeComplexity and
// parseSubtasks do any real work — tool-specific heuristics live outside
// this package, per spec.md §4.F.
type Decomposer struct {
	config DecomposerConfig
	gen    Generator
}

// NewDecomposer builds a Decomposer. A nil config falls back to
// DefaultDecomposerConfig.
func NewDecomposer(config *DecomposerConfig, gen Generator) *Decomposer {
	cfg := DefaultDecomposerConfig()
	if config != nil {
		cfg = *config
	}
	return &Decomposer{config: cfg, gen: gen}
}

// analyzeComplexity scores how many independent facets task likely has,
// from word count and multi-step language markers — the same shape of
// heuristic the teacher's planner uses to decide whether a goal needs
// decomposition at all.
func (d *Decomposer) analyzeComplexity(task string, technologies []string) int {
	score := len(technologies)
	words := strings.Fields(task)
	switch {
	case len(words) > 40:
		score += 3
	case len(words) > 20:
		score += 2
	case len(words) > 10:
		score += 1
	}
	multiStepKeywords := []string{"and", "then", "also", "multiple", "several", "each", "plus", "with tests", "including"}
	lower := strings.ToLower(task)
	for _, kw := range multiStepKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	score += strings.Count(task, ",")
	return score
}

const decompositionPromptTemplate = `Break the following web-development task into independent subtasks, one per facet (UI, logic, API, tests, ...).

TASK: %s
TECHNOLOGIES: %s

Output ONLY valid JSON in this exact shape (no markdown, no extra text):
{
  "subtasks": [
    {"id": "subtask_1", "description": "...", "dependencies": [], "test_intents": ["renders without crashing", "..."]}
  ]
}

Aim for %d to %d subtasks. Each must be independently actionable by one worker.`

func (d *Decomposer) buildPrompt(task string, technologies []string) string {
	return fmt.Sprintf(decompositionPromptTemplate, task, strings.Join(technologies, ", "), d.config.MinSubtasks, d.config.MaxSubtasks)
}

type subtaskJSON struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	TestIntents  []string `json:"test_intents"`
}

type decompositionResponse struct {
	Subtasks []subtaskJSON `json:"subtasks"`
}

func parseSubtasks(response string) ([]Subtask, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var resp decompositionResponse
	if err := json.Unmarshal([]byte(response), &resp); err != nil {
		return nil, fmt.Errorf("orchestrator: decompose response is not valid JSON: %w", err)
	}
	if len(resp.Subtasks) == 0 {
		return nil, fmt.Errorf("orchestrator: decompose response contained no subtasks")
	}

	out := make([]Subtask, 0, len(resp.Subtasks))
	for _, s := range resp.Subtasks {
		out = append(out, Subtask{ID: s.ID, Description: s.Description, Dependencies: s.Dependencies, TestIntents: s.TestIntents})
	}
	return out, nil
}

// validateSubtasks checks uniqueness of IDs and absence of dependency cycles,
// the two invariants that survive collapsing the teacher's tree
// validation down to a flat list.
func validateSubtasks(subtasks []Subtask) error {
	seen := make(map[string]bool, len(subtasks))
	for _, s := range subtasks {
		if seen[s.ID] {
			return fmt.Errorf("orchestrator: duplicate subtask id %q", s.ID)
		}
		seen[s.ID] = true
	}

	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	byID := make(map[string]Subtask, len(subtasks))
	for _, s := range subtasks {
		byID[s.ID] = s
	}
	var visit func(id string) error
	visit = func(id string) error {
		if inStack[id] {
			return fmt.Errorf("orchestrator: dependency cycle detected involving subtask %q", id)
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		inStack[id] = true
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		inStack[id] = false
		return nil
	}
	for _, s := range subtasks {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}

// Decompose returns a list of Subtasks for task. A task scoring below
// the configured complexity threshold is returned as a single subtask
// without consulting the generator at all.
func (d *Decomposer) Decompose(ctx context.Context, task string, technologies []string) ([]Subtask, error) {
	if d.analyzeComplexity(task, technologies) < d.config.ComplexityThreshold {
		return []Subtask{{ID: "subtask_1", Description: task, TestIntents: []string{"produces runnable output"}}}, nil
	}

	response, err := d.gen.Generate(ctx, d.buildPrompt(task, technologies))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: decomposition generation failed: %w", err)
	}

	subtasks, err := parseSubtasks(response)
	if err != nil {
		return []Subtask{{ID: "subtask_1", Description: task, TestIntents: []string{"produces runnable output"}}}, nil
	}
	if err := validateSubtasks(subtasks); err != nil {
		return nil, err
	}
	return subtasks, nil
}
