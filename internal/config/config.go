// Package config loads and validates the orchestrator's configuration
// surface: server, fan-out, breaker, cache, rate limit, reasoner, and
// observability settings, layered from defaults, a YAML file, and
// environment variable expansion.
package config

import "fmt"

// Config is the root configuration object.
type Config struct {
	Version int `yaml:"version"`

	Server        ServerConfig        `yaml:"server"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Breaker       BreakerConfig       `yaml:"breaker"`
	Cache         CacheConfig         `yaml:"cache"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Reasoner      ReasonerConfig      `yaml:"reasoner"`
	Observability ObservabilityConfig `yaml:"observability"`
	Auth          AuthConfig          `yaml:"auth"`
	Providers     []ProviderConfig    `yaml:"providers"`
}

// Default returns a Config populated with every documented default.
func Default() Config {
	return Config{
		Version:       CurrentVersion,
		Server:        defaultServerConfig(),
		Gateway:       defaultGatewayConfig(),
		Breaker:       defaultBreakerConfig(),
		Cache:         defaultCacheConfig(),
		RateLimit:     defaultRateLimitConfig(),
		Reasoner:      defaultReasonerConfig(),
		Observability: defaultObservabilityConfig(),
		Auth:          defaultAuthConfig(),
		Providers:     defaultProviders(),
	}
}

// Load reads path, resolving $include directives and expanding environment
// variables, merges the result over Default(), and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, cfg.Validate()
	}

	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	parsed, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	merged := mergeOverDefault(cfg, *parsed)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// mergeOverDefault layers a parsed config's non-zero fields over defaults.
// Top-level version is always taken from the parsed document when set.
func mergeOverDefault(base, override Config) Config {
	if override.Version != 0 {
		base.Version = override.Version
	}
	base.Server = mergeServerConfig(base.Server, override.Server)
	base.Gateway = mergeGatewayConfig(base.Gateway, override.Gateway)
	base.Breaker = mergeBreakerConfig(base.Breaker, override.Breaker)
	base.Cache = mergeCacheConfig(base.Cache, override.Cache)
	base.RateLimit = mergeRateLimitConfig(base.RateLimit, override.RateLimit)
	base.Reasoner = mergeReasonerConfig(base.Reasoner, override.Reasoner)
	base.Observability = mergeObservabilityConfig(base.Observability, override.Observability)
	base.Auth = mergeAuthConfig(base.Auth, override.Auth)
	base.Providers = mergeProviders(base.Providers, override.Providers)
	return base
}

// Validate checks the assembled configuration for internally inconsistent
// or out-of-range values across every sub-config.
func (c Config) Validate() error {
	if err := ValidateVersion(c.Version); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Gateway.Validate(); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if err := c.Breaker.Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate_limit: %w", err)
	}
	if err := c.Reasoner.Validate(); err != nil {
		return fmt.Errorf("reasoner: %w", err)
	}
	return nil
}
