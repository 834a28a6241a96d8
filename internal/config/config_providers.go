package config

// ProviderConfig declares one entry in the boot-time provider identity set
// (§3's Provider: immutable, closed, configured once at startup).
type ProviderConfig struct {
	ID          string             `yaml:"id"`
	DisplayName string             `yaml:"display_name"`
	Enabled     bool               `yaml:"enabled"`
	Priority    int                `yaml:"priority"`
	Keywords    map[string]float64 `yaml:"keywords"`
}

func defaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			ID:          "chat",
			DisplayName: "Chat",
			Enabled:     true,
			Priority:    1,
			Keywords: map[string]float64{
				"message": 1, "slack": 1, "channel": 0.7, "thread": 0.6, "conversation": 0.6,
			},
		},
		{
			ID:          "storage",
			DisplayName: "Object Storage",
			Enabled:     true,
			Priority:    1,
			Keywords: map[string]float64{
				"file": 1, "bucket": 1, "object": 0.8, "document": 0.6, "upload": 0.6,
			},
		},
		{
			ID:          "db",
			DisplayName: "Database",
			Enabled:     true,
			Priority:    1,
			Keywords: map[string]float64{
				"database": 1, "query": 0.9, "table": 0.7, "row": 0.6, "sql": 0.8,
			},
		},
	}
}

func mergeProviders(base, override []ProviderConfig) []ProviderConfig {
	if len(override) == 0 {
		return base
	}
	return override
}
