package orchestrator

import "testing"

func TestResolveTier_UnknownFallsBackToMedium(t *testing.T) {
	if got := ResolveTier("nonexistent"); got != TierMedium {
		t.Fatalf("expected medium, got %s", got)
	}
	if got := ResolveTier(TierHigh); got != TierHigh {
		t.Fatalf("expected high to pass through, got %s", got)
	}
}

func TestBuildSpecs_TierSizes(t *testing.T) {
	cases := map[string]int{TierUltralight: 2, TierLight: 3, TierMedium: 5, TierHigh: 8, "bogus": 5}
	for tier, want := range cases {
		specs := BuildSpecs(tier, 9000, "gpt-4", "gpt-3.5", "be helpful", "/tmp/ws")
		if len(specs) != want {
			t.Fatalf("tier %s: expected %d workers, got %d", tier, want, len(specs))
		}
	}
}

func TestBuildSpecs_PortsAndTagsAreDistinct(t *testing.T) {
	specs := BuildSpecs(TierHigh, 9000, "gpt-4", "gpt-3.5", "be helpful", "/tmp/ws")
	seenPorts := map[int]bool{}
	for i, s := range specs {
		if s.WorkerID != i {
			t.Fatalf("expected worker id %d, got %d", i, s.WorkerID)
		}
		if seenPorts[s.Port] {
			t.Fatalf("duplicate port %d", s.Port)
		}
		seenPorts[s.Port] = true
	}
}
