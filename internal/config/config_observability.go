package config

// ObservabilityConfig configures logging output and trace export.
// OTLPEndpoint is optional; when unset, tracing is a no-op.
type ObservabilityConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

func defaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{LogLevel: "info", LogFormat: "json"}
}

func mergeObservabilityConfig(base, override ObservabilityConfig) ObservabilityConfig {
	if override.LogLevel != "" {
		base.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		base.LogFormat = override.LogFormat
	}
	if override.OTLPEndpoint != "" {
		base.OTLPEndpoint = override.OTLPEndpoint
	}
	return base
}
