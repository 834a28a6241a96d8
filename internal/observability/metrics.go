package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - HTTP request volume and latency
//   - Chat-style ingress volume by routing path
//   - Tool call volume, latency, and outcome by provider
//   - Cache hit/miss rates by namespace and provider
//   - Reasoner (LLM) call volume, latency, and token usage
//   - Errors categorized by code and provider
//   - Circuit breaker state and queue depth for capacity planning
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordToolCall("slack", "search_messages", "success", time.Since(start).Seconds())
//	defer metrics.RecordLLMCall("synthesis", time.Since(start).Seconds())
type Metrics struct {
	// RequestCounter counts inbound API requests.
	// Labels: method, endpoint, status
	RequestCounter *prometheus.CounterVec

	// RequestDuration measures inbound API request latency in seconds.
	// Labels: method, endpoint, status
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	RequestDuration *prometheus.HistogramVec

	// ChatMessages counts ingress routed through the chat-style surface.
	// Labels: provider, routing_path (keyword|llm)
	ChatMessages *prometheus.CounterVec

	// ToolCallCounter counts tool invocations through the gateway.
	// Labels: provider, tool, status (success|error|cached)
	ToolCallCounter *prometheus.CounterVec

	// ToolCallDuration measures tool call latency in seconds.
	// Labels: provider, tool
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolCallDuration *prometheus.HistogramVec

	// CacheHits counts cache layer hits.
	// Labels: namespace, provider
	CacheHits *prometheus.CounterVec

	// CacheMisses counts cache layer misses.
	// Labels: namespace, provider
	CacheMisses *prometheus.CounterVec

	// LLMCallCounter counts reasoner calls by purpose.
	// Labels: purpose (rank|select_tools|synthesize)
	LLMCallCounter *prometheus.CounterVec

	// LLMCallDuration measures reasoner call latency in seconds.
	// Labels: purpose
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMCallDuration *prometheus.HistogramVec

	// LLMTokens tracks reasoner token consumption.
	// Labels: direction (prompt|completion)
	LLMTokens *prometheus.CounterVec

	// ErrorCounter tracks typed errors by code and provider.
	// Labels: code, provider
	ErrorCounter *prometheus.CounterVec

	// BreakerState is a gauge of the current breaker state per provider
	// (0=closed, 1=half_open, 2=open).
	// Labels: provider
	BreakerState *prometheus.GaugeVec

	// QueueDepth tracks the depth of the per-request event stream buffer.
	// Labels: stage (legs|synthesis)
	QueueDepth *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "requests_total",
				Help: "Total number of inbound API requests by method, endpoint, and status",
			},
			[]string{"method", "endpoint", "status"},
		),

		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "request_duration_seconds",
				Help:    "Duration of inbound API requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "endpoint", "status"},
		),

		ChatMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_messages_total",
				Help: "Total number of queries routed through a provider, by routing path",
			},
			[]string{"provider", "routing_path"},
		),

		ToolCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool calls by provider, tool, and outcome",
			},
			[]string{"provider", "tool", "status"},
		),

		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"provider", "tool"},
		),

		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache layer hits by namespace and provider",
			},
			[]string{"namespace", "provider"},
		),

		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache layer misses by namespace and provider",
			},
			[]string{"namespace", "provider"},
		),

		LLMCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Total number of reasoner calls by purpose",
			},
			[]string{"purpose"},
		),

		LLMCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_call_duration_seconds",
				Help:    "Duration of reasoner calls in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"purpose"},
		),

		LLMTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of reasoner tokens consumed by direction",
			},
			[]string{"direction"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of typed errors by code and provider",
			},
			[]string{"code", "provider"},
		),

		BreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "breaker_state",
				Help: "Current circuit breaker state per provider (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),

		QueueDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "queue_depth",
				Help: "Current depth of the per-request event stream buffer by stage",
			},
			[]string{"stage"},
		),
	}
}

// RecordRequest records metrics for an inbound API request.
//
// Example:
//
//	start := time.Now()
//	// ... handle request ...
//	metrics.RecordRequest("POST", "/api/agent/query", "200", time.Since(start).Seconds())
func (m *Metrics) RecordRequest(method, endpoint, status string, durationSeconds float64) {
	m.RequestCounter.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSeconds)
}

// RecordChatMessage records one query routed through a provider.
//
// Example:
//
//	metrics.RecordChatMessage("chat", "keyword")
func (m *Metrics) RecordChatMessage(provider, routingPath string) {
	m.ChatMessages.WithLabelValues(provider, routingPath).Inc()
}

// RecordToolCall records metrics for a gateway tool call.
//
// Example:
//
//	start := time.Now()
//	// ... call tool ...
//	metrics.RecordToolCall("chat", "search", "success", time.Since(start).Seconds())
func (m *Metrics) RecordToolCall(provider, tool, status string, durationSeconds float64) {
	m.ToolCallCounter.WithLabelValues(provider, tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(provider, tool).Observe(durationSeconds)
}

// RecordCacheHit increments the cache hit counter for a namespace and provider.
func (m *Metrics) RecordCacheHit(namespace, provider string) {
	m.CacheHits.WithLabelValues(namespace, provider).Inc()
}

// RecordCacheMiss increments the cache miss counter for a namespace and provider.
func (m *Metrics) RecordCacheMiss(namespace, provider string) {
	m.CacheMisses.WithLabelValues(namespace, provider).Inc()
}

// RecordLLMCall records metrics for a reasoner call.
//
// Example:
//
//	start := time.Now()
//	// ... call reasoner ...
//	metrics.RecordLLMCall("synthesize", time.Since(start).Seconds(), 900, 150)
func (m *Metrics) RecordLLMCall(purpose string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMCallCounter.WithLabelValues(purpose).Inc()
	m.LLMCallDuration.WithLabelValues(purpose).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}

// RecordError increments the error counter for a given typed error code and provider.
// provider is empty for errors not scoped to a single provider.
//
// Example:
//
//	metrics.RecordError("TOOL_EXECUTION_ERROR", "chat")
//	metrics.RecordError("VALIDATION_ERROR", "")
func (m *Metrics) RecordError(code, provider string) {
	m.ErrorCounter.WithLabelValues(code, provider).Inc()
}

// SetBreakerState sets the breaker state gauge for a provider.
// state must be 0 (closed), 1 (half_open), or 2 (open).
func (m *Metrics) SetBreakerState(provider string, state float64) {
	m.BreakerState.WithLabelValues(provider).Set(state)
}

// SetQueueDepth sets the current event-stream buffer depth for a stage.
func (m *Metrics) SetQueueDepth(stage string, depth int) {
	m.QueueDepth.WithLabelValues(stage).Set(float64(depth))
}
