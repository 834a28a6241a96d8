// Package ratelimit enforces per-principal request budgets using a pair of
// sliding-window counters: a short minute window and a longer hour window,
// composed so that both must allow a request.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Config configures the two sliding windows checked for every principal.
type Config struct {
	// RequestsPerMinute is the budget for the 60s window.
	RequestsPerMinute int `yaml:"requests_per_minute"`
	// RequestsPerHour is the budget for the 3600s window.
	RequestsPerHour int `yaml:"requests_per_hour"`
	// Enabled controls whether limiting is active.
	Enabled bool `yaml:"enabled"`
	// ExcludedPaths bypass limiting entirely (e.g. health checks).
	ExcludedPaths []string `yaml:"excluded_paths"`
}

// DefaultConfig mirrors the defaults in the external interface's configuration surface.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		RequestsPerHour:   1000,
		Enabled:           true,
		ExcludedPaths:     []string{"/health", "/api/health"},
	}
}

// window is a sliding-window counter over a fixed duration. Callers must
// hold the owning principalState's mutex.
type window struct {
	size time.Duration
	max  int
	hits []time.Time
}

func newWindow(size time.Duration, max int) *window {
	return &window{size: size, max: max, hits: make([]time.Time, 0, max)}
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.size)
	i := 0
	for i < len(w.hits) && w.hits[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = w.hits[i:]
	}
}

// check reports whether a new hit at now is allowed, the remaining budget
// after the decision, and (when denied) the seconds until the oldest hit
// ages out of the window.
func (w *window) check(now time.Time) (allowed bool, remaining int, retryAfter int) {
	w.prune(now)
	if len(w.hits) >= w.max {
		oldest := w.hits[0]
		retryAfter = int((w.size - now.Sub(oldest)).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, 0, retryAfter
	}
	w.hits = append(w.hits, now)
	return true, w.max - len(w.hits), 0
}

// Decision is the outcome of a rate-limit check against a single principal key.
type Decision struct {
	Allowed           bool
	Limit             int
	Remaining         int
	RetryAfterSeconds int
}

// Headers renders the decision as the conventional X-RateLimit-* headers plus
// Retry-After on rejection, matching the rate-limit response contract.
func (d Decision) Headers() http.Header {
	h := http.Header{}
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
	}
	return h
}

// principalState holds both windows for one rate-limit key.
type principalState struct {
	mu     sync.Mutex
	minute *window
	hour   *window
}

// Limiter composes a minute window and an hour window per principal key,
// checking the more restrictive minute window first.
type Limiter struct {
	config Config

	mu    sync.RWMutex
	byKey map[string]*principalState
}

// NewLimiter creates a rate limiter from config.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.RequestsPerHour <= 0 {
		config.RequestsPerHour = 1000
	}
	return &Limiter{
		config: config,
		byKey:  make(map[string]*principalState),
	}
}

func (l *Limiter) stateFor(key string) *principalState {
	l.mu.RLock()
	st, ok := l.byKey[key]
	l.mu.RUnlock()
	if ok {
		return st
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.byKey[key]; ok {
		return st
	}
	st = &principalState{
		minute: newWindow(time.Minute, l.config.RequestsPerMinute),
		hour:   newWindow(time.Hour, l.config.RequestsPerHour),
	}
	l.byKey[key] = st
	return st
}

// Allow checks both windows for the given key at the current time.
func (l *Limiter) Allow(key string) Decision {
	return l.AllowAt(key, time.Now())
}

// AllowAt is Allow with an explicit clock, used by tests.
func (l *Limiter) AllowAt(key string, now time.Time) Decision {
	if !l.config.Enabled {
		return Decision{Allowed: true, Limit: l.config.RequestsPerMinute, Remaining: l.config.RequestsPerMinute}
	}

	st := l.stateFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	// Minute window is the more restrictive of the two; check it first.
	allowed, remaining, retryAfter := st.minute.check(now)
	if !allowed {
		return Decision{Allowed: false, Limit: l.config.RequestsPerMinute, RetryAfterSeconds: retryAfter}
	}

	hourAllowed, hourRemaining, hourRetryAfter := st.hour.check(now)
	if !hourAllowed {
		// Roll back the minute-window hit since the request as a whole is denied.
		if len(st.minute.hits) > 0 {
			st.minute.hits = st.minute.hits[:len(st.minute.hits)-1]
		}
		return Decision{Allowed: false, Limit: l.config.RequestsPerHour, RetryAfterSeconds: hourRetryAfter}
	}

	if remaining <= hourRemaining {
		return Decision{Allowed: true, Limit: l.config.RequestsPerMinute, Remaining: remaining}
	}
	return Decision{Allowed: true, Limit: l.config.RequestsPerHour, Remaining: hourRemaining}
}

// Reset clears counters for a key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byKey, key)
}

// IsExcludedPath reports whether path bypasses rate limiting entirely.
func (l *Limiter) IsExcludedPath(path string) bool {
	for _, p := range l.config.ExcludedPaths {
		if p == path {
			return true
		}
	}
	return false
}

// KeyFromRequest derives the rate-limit key: the authenticated principal id
// when present, else a trusted forwarded-for header, else the direct
// remote address.
func KeyFromRequest(principalID, forwardedFor, remoteAddr string) string {
	if principalID != "" {
		return "principal:" + principalID
	}
	if forwardedFor != "" {
		return "ip:" + forwardedFor
	}
	return "ip:" + remoteAddr
}
