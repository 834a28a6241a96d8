package config

import "fmt"

// ReasonerConfig selects and configures the active reasoner backend. Only
// the credentials for Provider need be set; the others are read only if
// selected.
type ReasonerConfig struct {
	// Provider is one of "anthropic", "openai", "bedrock", "gemini".
	Provider     string `yaml:"provider"`
	DefaultModel string `yaml:"default_model"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	BedrockRegion   string `yaml:"bedrock_region"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
}

var validReasonerProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"bedrock":   true,
	"gemini":    true,
}

func defaultReasonerConfig() ReasonerConfig {
	return ReasonerConfig{Provider: "anthropic", DefaultModel: "claude-sonnet-4-5"}
}

func mergeReasonerConfig(base, override ReasonerConfig) ReasonerConfig {
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.DefaultModel != "" {
		base.DefaultModel = override.DefaultModel
	}
	if override.AnthropicAPIKey != "" {
		base.AnthropicAPIKey = override.AnthropicAPIKey
	}
	if override.OpenAIAPIKey != "" {
		base.OpenAIAPIKey = override.OpenAIAPIKey
	}
	if override.BedrockRegion != "" {
		base.BedrockRegion = override.BedrockRegion
	}
	if override.GeminiAPIKey != "" {
		base.GeminiAPIKey = override.GeminiAPIKey
	}
	return base
}

// Validate checks ReasonerConfig for an unknown provider enum value.
func (c ReasonerConfig) Validate() error {
	if !validReasonerProviders[c.Provider] {
		return fmt.Errorf("unknown reasoner provider %q (want one of anthropic, openai, bedrock, gemini)", c.Provider)
	}
	return nil
}
