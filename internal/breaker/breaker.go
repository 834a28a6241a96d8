// Package breaker implements the per-provider circuit breaker registry: a
// lazily-evaluated closed/open/half-open state machine that protects the
// Tool Gateway from hammering an unhealthy connector.
package breaker

import (
	"sync"
	"time"

	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
)

// State is the circuit breaker's three-value state.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config parameterizes one breaker.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	// ExcludedCodes lists error codes that never count as a breaker failure
	// (e.g. VALIDATION_ERROR — a malformed request is not the provider's fault).
	ExcludedCodes map[orcherrors.Code]bool
}

// DefaultConfig matches the thresholds named in the circuit-breaker design.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		OpenTimeout:      60 * time.Second,
		ExcludedCodes:    map[orcherrors.Code]bool{orcherrors.ValidationError: true},
	}
}

// Stats is the point-in-time snapshot surfaced by the observability layer.
type Stats struct {
	State           State
	FailureCount    int
	SuccessCount    int
	LastStateChange time.Time
	TotalFailures   uint64
	TotalSuccesses  uint64
	TotalRejected   uint64
}

// Breaker is a single provider's circuit breaker. State transitions follow
// the lazy-view design: an Open breaker reports itself as HalfOpen once
// OpenTimeout has elapsed since the last transition, without a background
// timer — the transition is only committed on the next call.
type Breaker struct {
	name   string
	config Config

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	lastStateChange time.Time

	totalFailures  uint64
	totalSuccesses uint64
	totalRejected  uint64
}

// New creates a breaker in the closed state.
func New(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	return &Breaker{
		name:            name,
		config:          config,
		state:           Closed,
		lastStateChange: time.Now(),
	}
}

// viewState returns the current externally-visible state without mutating
// stored state — an Open breaker whose timeout has elapsed is reported as
// HalfOpen here, but the stored state only flips on the next Allow/Record.
// Callers must hold b.mu.
func (b *Breaker) viewState() State {
	if b.state == Open && time.Since(b.lastStateChange) >= b.config.OpenTimeout {
		return HalfOpen
	}
	return b.state
}

// Allow reports whether a call may proceed. A rejection returns a
// CIRCUIT_OPEN classified error and increments TotalRejected.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.viewState() {
	case Open:
		b.totalRejected++
		return orcherrors.New(orcherrors.CircuitOpen, "provider "+b.name+" circuit is open").
			WithDetails(map[string]any{"provider_id": b.name, "retry_after_seconds": b.retryAfterLocked()})
	default:
		// Closed or the lazily-observed HalfOpen view: commit the
		// half-open transition now that a call is actually being attempted.
		if b.state == Open {
			b.transitionLocked(HalfOpen)
		}
		return nil
	}
}

func (b *Breaker) retryAfterLocked() int {
	remaining := b.config.OpenTimeout - time.Since(b.lastStateChange)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalSuccesses++

	switch b.state {
	case Closed:
		b.failures = 0
	case HalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionLocked(Closed)
		}
	}
}

// RecordFailure records a failed call outcome, classified by code. Codes in
// ExcludedCodes never count toward the failure threshold.
func (b *Breaker) RecordFailure(code orcherrors.Code) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.ExcludedCodes[code] {
		return
	}
	b.totalFailures++
	b.failures++
	b.successes = 0

	switch b.state {
	case Closed:
		if b.failures >= b.config.FailureThreshold {
			b.transitionLocked(Open)
		}
	case HalfOpen:
		b.transitionLocked(Open)
	}
}

func (b *Breaker) transitionLocked(to State) {
	b.state = to
	b.lastStateChange = time.Now()
	b.failures = 0
	b.successes = 0
}

// State returns the lazily-evaluated current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewState()
}

// Stats returns a point-in-time snapshot.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:           b.viewState(),
		FailureCount:    b.failures,
		SuccessCount:    b.successes,
		LastStateChange: b.lastStateChange,
		TotalFailures:   b.totalFailures,
		TotalSuccesses:  b.totalSuccesses,
		TotalRejected:   b.totalRejected,
	}
}

// Reset forces the breaker back to closed, for operator use.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Closed)
}

// Registry manages one Breaker per provider_id.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults Config
}

// NewRegistry creates a registry that lazily constructs breakers with the
// given default config on first reference.
func NewRegistry(defaults Config) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), defaults: defaults}
}

// Get returns (creating if necessary) the breaker for providerID.
func (r *Registry) Get(providerID string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[providerID]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[providerID]; ok {
		return b
	}
	b = New(providerID, r.defaults)
	r.breakers[providerID] = b
	return b
}

// AllStats returns a snapshot of every known provider's breaker, keyed by
// provider_id, for the observability surface.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Stats()
	}
	return out
}

// ResetAll resets every breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
