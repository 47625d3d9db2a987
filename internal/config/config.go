// Package config loads orchestrator-wide configuration from environment
// variables (with optional .env support) following the env-var conventions
// spec'd for the system, plus the declarative model-config document.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide, read-only configuration snapshot loaded once
// at startup. It is shared by pointer with every entry point and never
// mutated after Load; it is the only
// "global" state the orchestrator tolerates (spec.md §9's re-architecture
// note on cyclic shared mutable state).
type Config struct {
	// Provider credentials, keyed by provider name ("openai", "gemini", "custom").
	Credentials map[string]string

	// Provider allowlists, keyed by provider name; nil/absent means unrestricted.
	Allowlists map[string][]string

	// CustomEndpointURL is the base URL for a configured custom endpoint.
	CustomEndpointURL string

	DefaultModel       string
	DefaultVisionModel string

	ConversationTimeout time.Duration
	MaxConversationTurns int
	PromptSizeLimit       int

	WorkspaceDir string

	// ModelConfigPath points at the declarative model-config YAML document.
	ModelConfigPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads Config from the environment (optionally pre-loaded from a
// .env file, mirroring the teacher's main.go which loads .env before
// reading os.Getenv).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Absence of a .env file is normal in production; this is not fatal.
		_ = err
	}

	cfg := &Config{
		Credentials: map[string]string{
			"openai": os.Getenv("OPENAI_API_KEY"),
			"gemini": os.Getenv("GEMINI_API_KEY"),
			"custom": os.Getenv("CUSTOM_API_KEY"),
		},
		Allowlists:          map[string][]string{},
		CustomEndpointURL:   os.Getenv("CUSTOM_API_URL"),
		DefaultModel:        getEnvDefault("DEFAULT_MODEL", "auto"),
		DefaultVisionModel:  os.Getenv("DEFAULT_VISION_MODEL"),
		WorkspaceDir:        getEnvDefault("WORKSPACE_DIR", "./workspace"),
		ModelConfigPath:     os.Getenv("MODEL_CONFIG_PATH"),
		RedisAddr:           getEnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		if v, err := strconv.Atoi(db); err == nil {
			cfg.RedisDB = v
		}
	}

	for _, provider := range []string{"OPENAI", "GEMINI", "CUSTOM", "OPENROUTER"} {
		if list := os.Getenv(provider + "_ALLOWED_MODELS"); list != "" {
			cfg.Allowlists[strings.ToLower(provider)] = splitCSV(list)
		}
	}

	hours := 3.0
	if v := os.Getenv("CONVERSATION_TIMEOUT_HOURS"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			hours = parsed
		}
	}
	cfg.ConversationTimeout = time.Duration(hours * float64(time.Hour))

	cfg.MaxConversationTurns = 20
	if v := os.Getenv("MAX_CONVERSATION_TURNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.MaxConversationTurns = parsed
		}
	}

	cfg.PromptSizeLimit = 50_000
	if v := os.Getenv("PROMPT_SIZE_LIMIT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.PromptSizeLimit = parsed
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate performs basic sanity checks on the loaded configuration.
func (c *Config) Validate() error {
	if c.MaxConversationTurns <= 0 {
		return fmt.Errorf("MAX_CONVERSATION_TURNS must be positive, got %d", c.MaxConversationTurns)
	}
	if c.PromptSizeLimit <= 0 {
		return fmt.Errorf("PROMPT_SIZE_LIMIT must be positive, got %d", c.PromptSizeLimit)
	}
	if c.ConversationTimeout <= 0 {
		return fmt.Errorf("CONVERSATION_TIMEOUT_HOURS must be positive, got %s", c.ConversationTimeout)
	}
	return nil
}

// HasCredential reports whether a credential was configured for provider.
func (c *Config) HasCredential(provider string) bool {
	return c.Credentials[provider] != ""
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
