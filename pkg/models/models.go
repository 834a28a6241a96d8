// Package models defines the data shapes shared across the orchestrator:
// providers, tool descriptors, plans, and the request/response envelope for
// a multi-source query.
package models

import "time"

// Provider is an external data source the orchestrator can query (tickets,
// chat, object storage, mail, database, code-host, shop). Providers are an
// immutable, closed identity set configured at boot.
type Provider struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	// Priority breaks ties when two providers score equal relevance confidence.
	Priority int `json:"priority" yaml:"priority"`
	// Keywords is the weighted keyword set consulted by the fast-path detector.
	Keywords map[string]float64 `json:"keywords" yaml:"keywords"`
}

// ToolDescriptor describes one operation a provider exposes, scoped to that
// provider (names are not globally unique).
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ProviderSession is the live, principal-bound connection to one provider's
// connector. Exactly one session exists per (PrincipalID, ProviderID) pair.
type ProviderSession struct {
	ProviderID   string
	PrincipalID  string
	Credentials  map[string]string
	LastUsedAt   time.Time
	CreatedAt    time.Time
}

// ToolCallRecord is one attempt at invoking a tool, used for caching and
// auditing.
type ToolCallRecord struct {
	Fingerprint string
	ProviderID  string
	ToolName    string
	StartedAt   time.Time
	EndedAt     time.Time
	Cached      bool
	Succeeded   bool
	ErrorCode   string
}

// SourceQueryResult is what one fan-out leg produces for its provider.
type SourceQueryResult struct {
	ProviderID   string    `json:"provider_id"`
	Succeeded    bool      `json:"succeeded"`
	Summary      string    `json:"summary,omitempty"`
	Payload      any       `json:"payload,omitempty"`
	ToolsCalled  []string  `json:"tools_called,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CompletedAt  time.Time `json:"completed_at"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ProviderRelevance is one candidate's relevance score, produced by the
// source detector.
type ProviderRelevance struct {
	ProviderID        string  `json:"provider_id"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
	SuggestedApproach string  `json:"suggested_approach,omitempty"`
}

// ExecutionMode selects how the planner's chosen providers are executed.
type ExecutionMode string

const (
	ExecutionParallel   ExecutionMode = "parallel"
	ExecutionSequential ExecutionMode = "sequential"
)

// Plan is the planner's decision: which providers to query and how.
type Plan struct {
	Query        string              `json:"query"`
	Ranked       []ProviderRelevance `json:"ranked"`
	Chosen       []string            `json:"chosen"`
	Mode         ExecutionMode       `json:"mode"`
	Reasoning    string              `json:"reasoning"`
	EstimatedMS  int64               `json:"estimated_ms"`
}

// MultiSourceRequest is the ingress request shape for a query.
type MultiSourceRequest struct {
	Query               string   `json:"query"`
	Sources             []string `json:"sources,omitempty"`
	SessionID           string   `json:"session_id,omitempty"`
	ConfidenceThreshold float64  `json:"confidence_threshold,omitempty"`
	MaxSources          int      `json:"max_sources,omitempty"`
	IncludePlan         bool     `json:"include_plan"`
}

// Status summarises the outcome of a multi-source query.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// MultiSourceResponse is the egress response shape.
type MultiSourceResponse struct {
	Response          string              `json:"response"`
	SessionID         string              `json:"session_id,omitempty"`
	Status            Status              `json:"status"`
	Plan              *Plan               `json:"plan,omitempty"`
	SourceResults     []SourceQueryResult `json:"source_results,omitempty"`
	SuccessfulSources []string            `json:"successful_sources"`
	FailedSources     []string            `json:"failed_sources"`
	TotalDurationMS   int64               `json:"total_duration_ms"`
	CompletedAt       time.Time           `json:"completed_at"`
}

// CircuitBreakerStats summarises one provider's breaker for introspection endpoints.
type CircuitBreakerStats struct {
	ProviderID      string    `json:"provider_id"`
	State           string    `json:"state"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastStateChange time.Time `json:"last_state_change_at"`
	TotalFailures   uint64    `json:"total_failures"`
	TotalSuccesses  uint64    `json:"total_successes"`
	TotalRejected   uint64    `json:"total_rejected"`
}

// CacheEntryStats is the generic stats shape surfaced for a cache namespace.
type CacheEntryStats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Evicts  uint64  `json:"evicts"`
	HitRate float64 `json:"hit_rate"`
}

// DeriveStatus computes the I3-mandated status from the success/failure sets.
func DeriveStatus(successful, failed []string) Status {
	switch {
	case len(failed) == 0 && len(successful) > 0:
		return StatusCompleted
	case len(successful) == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
