package orchestrator

import "github.com/gruntworks-dev/orchestrator/internal/worker"

// Tier names recognized by the Tier Profile table.
const (
	TierUltralight = "ultralight"
	TierLight      = "light"
	TierMedium     = "medium"
	TierHigh       = "high"
)

// specializationTags is the fixed list round-robin-assigned to worker
// specs within a tier.
var specializationTags = []string{"ui", "logic", "api", "tests", "styling", "integration", "performance", "docs"}

// tierSizes maps a tier name to its worker count. Unknown tiers resolve
// to medium via ResolveTier.
var tierSizes = map[string]int{
	TierUltralight: 2,
	TierLight:      3,
	TierMedium:     5,
	TierHigh:       8,
}

// BuildSpecs materializes the ordered list of Worker Specifications for
// tier, assigning worker_id 0..n-1, specialization tags round-robin from
// specializationTags, and ports starting at basePort.
func BuildSpecs(tier string, basePort int, modelName, fallbackModelName, systemPrompt, workspaceRoot string) []worker.Spec {
	n, ok := tierSizes[tier]
	if !ok {
		n = tierSizes[TierMedium]
	}

	specs := make([]worker.Spec, n)
	for i := 0; i < n; i++ {
		specs[i] = worker.Spec{
			WorkerID:          i,
			ModelName:         modelName,
			FallbackModelName: fallbackModelName,
			SpecializationTag: specializationTags[i%len(specializationTags)],
			SystemPrompt:      systemPrompt,
			WorkspaceDir:      workspaceRoot,
			Port:              basePort + i,
			MaxIterations:     worker.DefaultMaxIterations,
		}
	}
	return specs
}

// ResolveTier normalizes an input tier name, defaulting unknown values to
// medium per spec.md §4.F's tier selection rule.
func ResolveTier(tier string) string {
	if _, ok := tierSizes[tier]; ok {
		return tier
	}
	return TierMedium
}
