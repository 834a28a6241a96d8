package observability

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewMetrics registers against the global default registerer, so every
// test in this file shares one instance to avoid duplicate registration
// panics.
var (
	sharedMetricsOnce sync.Once
	sharedMetrics     *Metrics
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	sharedMetricsOnce.Do(func() { sharedMetrics = NewMetrics() })
	return sharedMetrics
}

func TestMetrics_RecordRequest(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordRequest("POST", "/api/agent/query", "200", 0.05)

	if got := testutil.ToFloat64(m.RequestCounter.WithLabelValues("POST", "/api/agent/query", "200")); got != 1 {
		t.Errorf("RequestCounter = %v, want 1", got)
	}
}

func TestMetrics_RecordChatMessage(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordChatMessage("chat", "keyword")
	m.RecordChatMessage("chat", "keyword")

	if got := testutil.ToFloat64(m.ChatMessages.WithLabelValues("chat", "keyword")); got != 2 {
		t.Errorf("ChatMessages = %v, want 2", got)
	}
}

func TestMetrics_RecordToolCall(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordToolCall("chat", "search_messages", "success", 0.2)
	m.RecordToolCall("chat", "search_messages", "error", 0.1)

	if got := testutil.ToFloat64(m.ToolCallCounter.WithLabelValues("chat", "search_messages", "success")); got != 1 {
		t.Errorf("ToolCallCounter success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ToolCallCounter.WithLabelValues("chat", "search_messages", "error")); got != 1 {
		t.Errorf("ToolCallCounter error = %v, want 1", got)
	}
}

func TestMetrics_RecordCacheHitAndMiss(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordCacheHit("tools", "chat")
	m.RecordCacheMiss("results", "db")

	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("tools", "chat")); got != 1 {
		t.Errorf("CacheHits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses.WithLabelValues("results", "db")); got != 1 {
		t.Errorf("CacheMisses = %v, want 1", got)
	}
}

func TestMetrics_RecordLLMCall(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordLLMCall("synthesis", 1.5, 120, 40)

	if got := testutil.ToFloat64(m.LLMCallCounter.WithLabelValues("synthesis")); got != 1 {
		t.Errorf("LLMCallCounter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.LLMTokens.WithLabelValues("prompt")); got != 120 {
		t.Errorf("LLMTokens prompt = %v, want 120", got)
	}
	if got := testutil.ToFloat64(m.LLMTokens.WithLabelValues("completion")); got != 40 {
		t.Errorf("LLMTokens completion = %v, want 40", got)
	}
}

func TestMetrics_RecordError(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordError("CIRCUIT_OPEN", "db")
	m.RecordError("CIRCUIT_OPEN", "db")

	if got := testutil.ToFloat64(m.ErrorCounter.WithLabelValues("CIRCUIT_OPEN", "db")); got != 2 {
		t.Errorf("ErrorCounter = %v, want 2", got)
	}
}

func TestMetrics_SetBreakerState(t *testing.T) {
	m := newTestMetrics(t)
	m.SetBreakerState("db", 2)

	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("db")); got != 2 {
		t.Errorf("BreakerState = %v, want 2 (open)", got)
	}
}

func TestMetrics_SetQueueDepth(t *testing.T) {
	m := newTestMetrics(t)
	m.SetQueueDepth("executor", 7)

	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("executor")); got != 7 {
		t.Errorf("QueueDepth = %v, want 7", got)
	}
}
