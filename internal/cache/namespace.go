// Package cache provides the orchestrator's namespaced cache layer: four
// independent TTL-bounded stores (tools, results, schema, session) behind a
// single facade, with an optional shared backend for multi-instance
// deployments.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nexusquery/orchestrator/internal/infra"
)

// Namespace identifies one of the four fixed cache views.
type Namespace string

const (
	NamespaceTools   Namespace = "tools"
	NamespaceResults Namespace = "results"
	NamespaceSchema  Namespace = "schema"
	NamespaceSession Namespace = "session"
)

// Config sets the per-namespace TTLs and capacity.
type Config struct {
	ToolsTTL   time.Duration
	ResultsTTL time.Duration
	SchemaTTL  time.Duration
	SessionTTL time.Duration
	MaxEntries int
	// RedisAddr, when set, backs every namespace with a shared L2 store
	// (see Backend). Empty disables L2 and the layer is purely in-process.
	RedisAddr string
}

// DefaultConfig matches the TTLs named in the cache layer design.
func DefaultConfig() Config {
	return Config{
		ToolsTTL:   5 * time.Minute,
		ResultsTTL: 30 * time.Second,
		SchemaTTL:  10 * time.Minute,
		SessionTTL: 24 * time.Hour,
		MaxEntries: 10_000,
	}
}

// Backend is the pluggable shared-cache capability set an L2 store must
// implement. An in-process Layer always serves as L1; a Backend, when
// configured, is consulted on L1 miss and populated on L1 store.
type Backend interface {
	Get(ctx context.Context, namespace, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
}

// Layer is the cache facade the rest of the orchestrator depends on. It
// wraps one infra.TTLCache per namespace plus an optional shared Backend.
type Layer struct {
	config  Config
	tools   *infra.TTLCache[string, any]
	results *infra.TTLCache[string, any]
	schema  *infra.TTLCache[string, any]
	session *infra.TTLCache[string, any]
	backend Backend
}

// NewLayer constructs the four namespaced in-process caches. backend may be
// nil to run L1-only.
func NewLayer(config Config, backend Backend) *Layer {
	mk := func(ttl time.Duration) *infra.TTLCache[string, any] {
		return infra.NewTTLCache[string, any](infra.CacheConfig{
			DefaultTTL:      ttl,
			MaxSize:         config.MaxEntries,
			CleanupInterval: ttl,
		})
	}
	return &Layer{
		config:  config,
		tools:   mk(config.ToolsTTL),
		results: mk(config.ResultsTTL),
		schema:  mk(config.SchemaTTL),
		session: mk(config.SessionTTL),
		backend: backend,
	}
}

func (l *Layer) cacheFor(ns Namespace) *infra.TTLCache[string, any] {
	switch ns {
	case NamespaceTools:
		return l.tools
	case NamespaceResults:
		return l.results
	case NamespaceSchema:
		return l.schema
	case NamespaceSession:
		return l.session
	default:
		return l.results
	}
}

func (l *Layer) ttlFor(ns Namespace) time.Duration {
	switch ns {
	case NamespaceTools:
		return l.config.ToolsTTL
	case NamespaceSchema:
		return l.config.SchemaTTL
	case NamespaceSession:
		return l.config.SessionTTL
	default:
		return l.config.ResultsTTL
	}
}

// Get consults L1 first, then the L2 backend when configured. An L2 hit is
// promoted back into L1 so subsequent lookups on this instance avoid the
// round trip.
func (l *Layer) Get(ctx context.Context, ns Namespace, key string) (any, bool) {
	if v, ok := l.cacheFor(ns).Get(key); ok {
		return v, true
	}
	if l.backend == nil {
		return nil, false
	}
	raw, ok, err := l.backend.Get(ctx, string(ns), key)
	if err != nil || !ok {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	l.cacheFor(ns).Set(key, value)
	return value, true
}

// Set stores into L1 and (if configured) the shared L2 backend. L2 errors
// are non-fatal: the cache layer degrades to L1-only rather than failing
// the caller's request.
func (l *Layer) Set(ctx context.Context, ns Namespace, key string, value any) {
	l.cacheFor(ns).Set(key, value)
	if l.backend == nil {
		return
	}
	if raw, err := json.Marshal(value); err == nil {
		_ = l.backend.Set(ctx, string(ns), key, raw, l.ttlFor(ns))
	}
}

// SetWithTTL overrides the namespace default TTL for one entry.
func (l *Layer) SetWithTTL(ctx context.Context, ns Namespace, key string, value any, ttl time.Duration) {
	l.cacheFor(ns).SetWithTTL(key, value, ttl)
}

// Delete removes a key from the namespace.
func (l *Layer) Delete(ctx context.Context, ns Namespace, key string) {
	l.cacheFor(ns).Delete(key)
	if l.backend != nil {
		_ = l.backend.Delete(ctx, string(ns), key)
	}
}

// Exists reports whether key is present (and unexpired) in the namespace.
func (l *Layer) Exists(ns Namespace, key string) bool {
	return l.cacheFor(ns).Contains(key)
}

// Clear empties one namespace.
func (l *Layer) Clear(ns Namespace) {
	l.cacheFor(ns).Clear()
}

// Stats returns hit/miss/eviction counters for one namespace.
func (l *Layer) Stats(ns Namespace) infra.CacheStats {
	return l.cacheFor(ns).Stats()
}

// Stop releases the cleanup goroutines backing every namespace.
func (l *Layer) Stop() {
	l.tools.Stop()
	l.results.Stop()
	l.schema.Stop()
	l.session.Stop()
}
