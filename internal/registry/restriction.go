package registry

import "strings"

// ClassifyProvider maps a model name to the provider name that should own
// restriction checks for it, per spec.md §4.A: "models containing '/' are
// deemed aggregator-routed." Native/custom providers are otherwise
// identified by the caller (the registry already knows which provider
// claimed the model), this classification only matters for the aggregator
// carve-out.
func ClassifyProvider(modelName string) (provider string, isAggregatorRouted bool) {
	if strings.Contains(modelName, "/") {
		return "openrouter", true
	}
	return "", false
}

// Admissible reports whether model is allowed for provider per spec.md
// §4.A's restriction policy: admissible if no allowlist is configured for
// the provider, or if the model matches an allowlist entry case-
// insensitively by substring or exact match.
func Admissible(provider, model string, allowlists map[string][]string) bool {
	list, ok := allowlists[strings.ToLower(provider)]
	if !ok || len(list) == 0 {
		return true
	}
	lowerModel := strings.ToLower(model)
	for _, entry := range list {
		lowerEntry := strings.ToLower(strings.TrimSpace(entry))
		if lowerEntry == "" {
			continue
		}
		if lowerModel == lowerEntry || strings.Contains(lowerModel, lowerEntry) {
			return true
		}
	}
	return false
}
