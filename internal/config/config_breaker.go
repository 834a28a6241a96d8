package config

import "fmt"

// BreakerConfig sets the default per-provider circuit breaker thresholds.
type BreakerConfig struct {
	FailureThreshold   int `yaml:"failure_threshold"`
	SuccessThreshold   int `yaml:"success_threshold"`
	OpenTimeoutSeconds int `yaml:"open_timeout_seconds"`
}

func defaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, OpenTimeoutSeconds: 60}
}

func mergeBreakerConfig(base, override BreakerConfig) BreakerConfig {
	if override.FailureThreshold != 0 {
		base.FailureThreshold = override.FailureThreshold
	}
	if override.SuccessThreshold != 0 {
		base.SuccessThreshold = override.SuccessThreshold
	}
	if override.OpenTimeoutSeconds != 0 {
		base.OpenTimeoutSeconds = override.OpenTimeoutSeconds
	}
	return base
}

// Validate checks BreakerConfig for out-of-range values.
func (c BreakerConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.SuccessThreshold <= 0 {
		return fmt.Errorf("success_threshold must be positive, got %d", c.SuccessThreshold)
	}
	if c.OpenTimeoutSeconds <= 0 {
		return fmt.Errorf("open_timeout_seconds must be positive, got %d", c.OpenTimeoutSeconds)
	}
	return nil
}
