// Package observability provides metrics, structured logging, and distributed
// tracing for the multi-source query orchestrator.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Inbound API request volume and latency
//   - Tool call volume, latency, and outcome by provider
//   - Cache hit/miss rates by namespace
//   - Reasoner call latency and token usage
//   - Error rates by code and provider
//   - Breaker state and event-stream queue depth
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track a tool call
//	start := time.Now()
//	// ... call tool through the gateway ...
//	metrics.RecordToolCall("chat", "search_messages", "success", time.Since(start).Seconds())
//
//	// Track a reasoner call
//	start = time.Now()
//	// ... call the reasoner ...
//	metrics.RecordLLMCall("synthesize", time.Since(start).Seconds(), promptTokens, completionTokens)
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx = observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddPrincipalID(ctx, principalID)
//	ctx = observability.AddProviderID(ctx, providerID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "dispatching leg",
//	    "provider_id", providerID,
//	    "tool_count", len(tools),
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "tool call failed",
//	    "error", err,
//	    "provider_id", providerID,
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a request across the
// planner, every fan-out leg, and synthesis:
//   - Span per leg, span per call_tool
//   - Exported via OTLP/gRPC when observability.otlp_endpoint is configured
//   - No-op when unset
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "nexus-orchestrator",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	ctx, legSpan := tracer.TraceLeg(ctx, providerID)
//	defer legSpan.End()
//
//	ctx, toolSpan := tracer.TraceToolCall(ctx, providerID, toolName)
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddPrincipalID(ctx, "alice")
//	ctx = observability.AddProviderID(ctx, "chat")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "planning") // Includes request_id, principal_id (redacted), provider_id
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// principal_id is truncated to its first 8 characters before it ever reaches
// a log line or span attribute. Tool arguments and reasoner prompt contents
// never appear in logs or traces.
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Use typed metric labels (avoid high-cardinality values, never raw query text)
//  7. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Request throughput
//	rate(requests_total[5m])
//
//	# Tool call latency (95th percentile)
//	histogram_quantile(0.95, rate(tool_call_duration_seconds_bucket[5m]))
//
//	# Error rate by code
//	rate(errors_total[5m])
//
//	# Breaker state per provider
//	breaker_state
//
//	# Reasoner latency
//	rate(llm_call_duration_seconds_sum[5m]) /
//	rate(llm_call_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High error rate: rate(errors_total[5m]) > threshold
//   - High reasoner latency: p95 llm_call_duration_seconds > 10s
//   - Breaker stuck open: breaker_state == 2 for an extended window
//   - Queue backing up: queue_depth growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
