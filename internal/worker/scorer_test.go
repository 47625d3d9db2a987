package worker

import "testing"

func TestScoreCandidate_NonCodeGetsZero(t *testing.T) {
	s := ScoreCandidate("Sure, here is an explanation of how physics engines work.", "build a phaser game", "js")
	if s.Value != 0 {
		t.Fatalf("expected 0 for non-code response, got %d", s.Value)
	}
}

func TestScoreCandidate_StripsMarkdownFence(t *testing.T) {
	raw := "Here you go:\n```js\nimport Phaser from 'phaser';\nfunction create() { this.cursors = this.input.keyboard.createCursorKeys(); }\n```"
	s := ScoreCandidate(raw, "build a phaser game", "js")
	if s.Code == raw {
		t.Fatalf("expected markdown fence to be stripped")
	}
	if s.Value <= 15 {
		t.Fatalf("expected domain bonuses to apply, got %d", s.Value)
	}
}

func TestScoreCandidate_PenalizesCDNUsage(t *testing.T) {
	withCDN := "<script src=\"https://cdn.jsdelivr.net/npm/phaser\"></script>\nfunction create() {}"
	clean := "import Phaser from 'phaser';\nfunction create() { this.cursors = this.input.keyboard.createCursorKeys(); }"

	cdnScore := ScoreCandidate(withCDN, "phaser game", "js")
	cleanScore := ScoreCandidate(clean, "phaser game", "js")

	if cdnScore.Value >= cleanScore.Value {
		t.Fatalf("expected CDN usage to score lower than module-import usage: cdn=%d clean=%d", cdnScore.Value, cleanScore.Value)
	}
}

func TestScoreCandidate_GoSyntaxErrorDocked(t *testing.T) {
	broken := "package main\nfunc main( {\n"
	s := ScoreCandidate(broken, "generic", "go")
	for _, issue := range s.Issues {
		if issue != "" {
			return
		}
	}
	t.Fatalf("expected a syntax issue to be recorded, got none: %+v", s)
}

func TestScoreCandidate_ClampedToRange(t *testing.T) {
	clean := "import Phaser from 'phaser';\nfunction preload() {}\nfunction create() { this.physics.add.sprite(0,0); this.cursors = this.input.keyboard.createCursorKeys(); }\nfunction update() {}\nexport default class {}"
	s := ScoreCandidate(clean, "phaser game", "js")
	if s.Value < 0 || s.Value > 100 {
		t.Fatalf("score out of range: %d", s.Value)
	}
}
