package toolgateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus instrumentation. A nil *Metrics is
// valid everywhere it's consulted — the gateway treats it as "don't record".
type Metrics struct {
	toolCalls   *prometheus.CounterVec
	toolLatency *prometheus.HistogramVec
}

// NewMetrics registers the gateway's counters against the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		toolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total tool invocations by provider, tool, and outcome.",
		}, []string{"provider_id", "tool_name", "outcome"}),
		toolLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_call_duration_seconds",
			Help:    "Tool call latency in seconds, by provider and tool.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider_id", "tool_name"}),
	}
}

// RecordToolCall records one completed tool invocation.
func (m *Metrics) RecordToolCall(providerID, toolName, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(providerID, toolName, outcome).Inc()
	m.toolLatency.WithLabelValues(providerID, toolName).Observe(durationSeconds)
}
