package registry

// ModelCapabilities describes one model entry owned by a provider, per
// spec.md §3 "Model Capabilities". ModelName is the canonical key;
// aliases resolve to exactly one canonical name (case-insensitive),
// enforced by the model-config document (internal/config.ModelRegistryDoc).
type ModelCapabilities struct {
	ModelName               string
	FriendlyName            string
	ContextWindow           int
	SupportsExtendedThink   bool
	SupportsSystemPrompts   bool
	SupportsStreaming       bool
	SupportsJSONMode        bool
	SupportsFunctionCalling bool
	SupportsImages          bool
	MaxImageMB              int
	TemperatureConstraint   TemperatureConstraint
}
