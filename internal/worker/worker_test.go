package worker

import (
	"context"
	"os"
	"testing"
	"time"
)

// scriptedGenerator returns each entry of responses in order, repeating
// the last one once exhausted.
type scriptedGenerator struct {
	responses []string
	calls     int
}

func (g *scriptedGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	i := g.calls
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	g.calls++
	return g.responses[i], nil
}

// slowGenerator returns response after delay, so a test can act while the
// loop is still iterating.
type slowGenerator struct {
	response string
	delay    time.Duration
}

func (g slowGenerator) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	time.Sleep(g.delay)
	return g.response, nil
}

func waitForTerminal(t *testing.T, w *Worker, timeout time.Duration) Phase {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		p := w.Status().Phase()
		if p == Completed || p == Failed {
			return p
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("worker did not reach a terminal phase within %s (stuck at %s)", timeout, w.Status().Phase())
	return Failed
}

func TestWorker_CompletesOnExcellentScore(t *testing.T) {
	dir := t.TempDir()
	gen := &scriptedGenerator{responses: []string{
		"import Phaser from 'phaser';\nfunction preload() {}\nfunction create() { this.physics.add.sprite(0,0); this.cursors = this.input.keyboard.createCursorKeys(); }\nfunction update() {}\nexport default class {}",
	}}
	w := New(Spec{WorkerID: 1, WorkspaceDir: dir, MaxIterations: 5, Language: "js"}, gen, 9000)

	if !w.Start(context.Background(), "build a phaser game", []string{"phaser"}) {
		t.Fatal("expected Start to accept the first call")
	}
	if w.Start(context.Background(), "build a phaser game", nil) {
		t.Fatal("expected a second Start to be rejected (idempotent per lifetime)")
	}

	phase := waitForTerminal(t, w, 2*time.Second)
	if phase != Completed {
		t.Fatalf("expected Completed, got %s (abort: %s)", phase, w.Status().Snapshot().AbortReason)
	}

	if _, err := os.Stat(dir + "/README.md"); err != nil {
		t.Fatalf("expected README.md artifact: %v", err)
	}
}

func TestWorker_FailsOnMaxIterations(t *testing.T) {
	dir := t.TempDir()
	gen := &scriptedGenerator{responses: []string{"not code, just an explanation"}}
	w := New(Spec{WorkerID: 2, WorkspaceDir: dir, MaxIterations: 3, Language: "js"}, gen, 9000)

	w.Start(context.Background(), "write something", nil)
	phase := waitForTerminal(t, w, 2*time.Second)
	if phase != Failed {
		t.Fatalf("expected Failed, got %s", phase)
	}
	snap := w.Status().Snapshot()
	if snap.CurrentIteration < 3 {
		t.Fatalf("expected at least 3 iterations before abort, got %d", snap.CurrentIteration)
	}
}

func TestWorker_CancelStopsTheLoop(t *testing.T) {
	dir := t.TempDir()
	// Each call takes 1ms, so fewer than the 11 similar iterations needed
	// for the similarity abort can run before Cancel.
	gen := slowGenerator{response: "not code at all", delay: time.Millisecond}
	w := New(Spec{WorkerID: 3, WorkspaceDir: dir, MaxIterations: 100, Language: "js"}, gen, 9000)

	w.Start(context.Background(), "write something", nil)
	time.Sleep(5 * time.Millisecond)
	w.Cancel()

	phase := waitForTerminal(t, w, 2*time.Second)
	if phase != Failed {
		t.Fatalf("expected Failed after cancel, got %s", phase)
	}
	if w.Status().Snapshot().AbortReason != "cancelled" {
		t.Fatalf("expected abort reason 'cancelled', got %q", w.Status().Snapshot().AbortReason)
	}
}
