package orchestrator

import (
	"context"
	"errors"
	"testing"
)

type stubGenerator struct {
	response string
	err      error
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.response, g.err
}

func TestDecompose_SimpleTaskSkipsGeneration(t *testing.T) {
	// A generator call would surface this error from Decompose.
	gen := &stubGenerator{err: errors.New("generator must not be called")}
	d := NewDecomposer(nil, gen)

	subtasks, err := d.Decompose(context.Background(), "fix the typo", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subtasks) != 1 {
		t.Fatalf("expected a single subtask for a low-complexity task, got %d", len(subtasks))
	}
}

func TestDecompose_ComplexTaskParsesJSON(t *testing.T) {
	gen := &stubGenerator{response: `{"subtasks":[
		{"id":"subtask_1","description":"build the UI","dependencies":[],"test_intents":["renders"]},
		{"id":"subtask_2","description":"build the API","dependencies":["subtask_1"],"test_intents":["returns 200"]}
	]}`}
	d := NewDecomposer(nil, gen)

	subtasks, err := d.Decompose(context.Background(), "Build a game with a UI, API, backend logic, and tests, also including save/load and multiple levels", []string{"react", "node"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subtasks))
	}
	if subtasks[1].Dependencies[0] != "subtask_1" {
		t.Fatalf("expected dependency to round-trip")
	}
}

func TestDecompose_CycleDetected(t *testing.T) {
	gen := &stubGenerator{response: `{"subtasks":[
		{"id":"a","description":"x","dependencies":["b"]},
		{"id":"b","description":"y","dependencies":["a"]}
	]}`}
	d := NewDecomposer(nil, gen)

	_, err := d.Decompose(context.Background(), "Build a game with a UI, API, backend logic, and tests, also including save/load and multiple levels", []string{"react", "node"})
	if err == nil {
		t.Fatalf("expected a cycle-detection error")
	}
}

func TestDecompose_MalformedJSONFallsBackToSingleSubtask(t *testing.T) {
	gen := &stubGenerator{response: "not json at all"}
	d := NewDecomposer(nil, gen)

	subtasks, err := d.Decompose(context.Background(), "Build a game with a UI, API, backend logic, and tests, also including save/load and multiple levels", []string{"react", "node"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subtasks) != 1 {
		t.Fatalf("expected fallback to a single subtask, got %d", len(subtasks))
	}
}
