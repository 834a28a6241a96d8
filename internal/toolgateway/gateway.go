package toolgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/singleflight"

	"github.com/nexusquery/orchestrator/internal/breaker"
	"github.com/nexusquery/orchestrator/internal/cache"
	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	"github.com/nexusquery/orchestrator/internal/observability"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Config parameterizes the gateway's timeouts and idle-session sweep.
type Config struct {
	CallTimeout     time.Duration
	SessionIdleTTL  time.Duration
	BreakerDefaults breaker.Config
}

// DefaultConfig matches the external interface's configuration surface.
func DefaultConfig() Config {
	return Config{
		CallTimeout:     60 * time.Second,
		SessionIdleTTL:  30 * time.Minute,
		BreakerDefaults: breaker.DefaultConfig(),
	}
}

type sessionEntry struct {
	session    Session
	providerID string
	principal  string
	lastUsed   time.Time
}

func sessionKey(principalID, providerID string) string {
	return principalID + "\x00" + providerID
}

// Gateway is the Multi-Provider Tool Gateway (C5). It is the only component
// that talks to ProviderConnector implementations; everything above it
// (the detector, planner, executor) only ever sees ToolDescriptors and
// SourceQueryResult-shaped outcomes.
type Gateway struct {
	connectors map[string]ProviderConnector
	creds      CredentialStore
	cache      *cache.Layer
	breakers   *breaker.Registry
	config     Config
	logger     *observability.Logger
	metrics    *Metrics

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	// inflight coalesces concurrent identical calls (same fingerprint) onto
	// one upstream session.CallTool invocation.
	inflight singleflight.Group
}

// New wires a gateway over the given connectors (keyed by provider_id).
func New(connectors []ProviderConnector, creds CredentialStore, cacheLayer *cache.Layer, breakers *breaker.Registry, config Config, logger *observability.Logger, metrics *Metrics) *Gateway {
	byID := make(map[string]ProviderConnector, len(connectors))
	for _, c := range connectors {
		byID[c.ProviderID()] = c
	}
	return &Gateway{
		connectors: byID,
		creds:      creds,
		cache:      cacheLayer,
		breakers:   breakers,
		config:     config,
		logger:     logger,
		metrics:    metrics,
		sessions:   make(map[string]*sessionEntry),
	}
}

// Providers returns the set of provider_ids this gateway knows how to connect to.
func (g *Gateway) Providers() []string {
	ids := make([]string, 0, len(g.connectors))
	for id := range g.connectors {
		ids = append(ids, id)
	}
	return ids
}

func (g *Gateway) getOrCreateSession(ctx context.Context, principalID, providerID string) (Session, error) {
	key := sessionKey(principalID, providerID)

	g.mu.Lock()
	if entry, ok := g.sessions[key]; ok {
		if g.config.SessionIdleTTL <= 0 || time.Since(entry.lastUsed) < g.config.SessionIdleTTL {
			entry.lastUsed = time.Now()
			g.mu.Unlock()
			return entry.session, nil
		}
		// Idle too long: close and recreate below.
		delete(g.sessions, key)
	}
	g.mu.Unlock()

	connector, ok := g.connectors[providerID]
	if !ok {
		return nil, orcherrors.New(orcherrors.InvalidProvider, "unknown provider: "+providerID)
	}

	creds, found, err := g.creds.GetCredentials(ctx, principalID, providerID)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.InternalError, "credential lookup failed", err)
	}
	if !found {
		return nil, orcherrors.New(orcherrors.MissingCredentials, "no credentials for provider "+providerID)
	}

	session, err := connector.Connect(ctx, principalID, creds)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ConnectorUnreachable, "could not connect to provider "+providerID, err)
	}

	g.mu.Lock()
	// I4: exactly one active session per (principal, provider) — the
	// double-checked-locking pattern here mirrors infra's pool/registry idiom.
	if existing, ok := g.sessions[key]; ok {
		g.mu.Unlock()
		_ = session.Close(ctx)
		existing.lastUsed = time.Now()
		return existing.session, nil
	}
	g.sessions[key] = &sessionEntry{session: session, providerID: providerID, principal: principalID, lastUsed: time.Now()}
	g.mu.Unlock()

	return session, nil
}

func (g *Gateway) dropSession(principalID, providerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := sessionKey(principalID, providerID)
	if entry, ok := g.sessions[key]; ok {
		_ = entry.session.Close(context.Background())
		delete(g.sessions, key)
	}
}

// ListTools returns the tool descriptors for providerID, consulting the
// tools-namespace cache before opening a session.
func (g *Gateway) ListTools(ctx context.Context, principalID, providerID string) ([]models.ToolDescriptor, error) {
	if _, ok := g.connectors[providerID]; !ok {
		return nil, orcherrors.New(orcherrors.InvalidProvider, "unknown provider: "+providerID)
	}

	if v, ok := g.cache.Get(ctx, cache.NamespaceTools, providerID); ok {
		if descs, ok := v.([]models.ToolDescriptor); ok {
			return descs, nil
		}
	}

	session, err := g.getOrCreateSession(ctx, principalID, providerID)
	if err != nil {
		return nil, err
	}

	descs, err := session.ListTools(ctx)
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ConnectorUnreachable, "list_tools failed for "+providerID, err)
	}

	g.cache.Set(ctx, cache.NamespaceTools, providerID, descs)
	return descs, nil
}

// ToolResult is the outcome of a single CallTool invocation.
type ToolResult struct {
	Payload any
	Cached  bool
}

// CallTool validates args against the tool's published schema, consults the
// results cache, and otherwise invokes the connector under breaker
// protection and a per-call timeout.
func (g *Gateway) CallTool(ctx context.Context, principalID, providerID, toolName string, args map[string]any) (*ToolResult, error) {
	if _, ok := g.connectors[providerID]; !ok {
		return nil, orcherrors.New(orcherrors.InvalidProvider, "unknown provider: "+providerID)
	}

	descs, err := g.ListTools(ctx, principalID, providerID)
	if err != nil {
		return nil, err
	}
	desc, ok := findDescriptor(descs, toolName)
	if !ok {
		return nil, orcherrors.New(orcherrors.ValidationError, "unknown tool "+toolName+" for provider "+providerID).
			WithDetails(map[string]any{"provider_id": providerID, "tool_name": toolName})
	}
	if err := validateArgs(desc, args); err != nil {
		return nil, orcherrors.Wrap(orcherrors.ValidationError, "tool arguments failed schema validation", err).
			WithDetails(map[string]any{"provider_id": providerID, "tool_name": toolName})
	}

	fp := cache.Fingerprint(providerID, toolName, args)
	if v, ok := g.cache.Get(ctx, cache.NamespaceResults, fp); ok {
		return &ToolResult{Payload: v, Cached: true}, nil
	}

	br := g.breakers.Get(providerID)
	if err := br.Allow(); err != nil {
		return nil, err
	}

	// Concurrent legs can fan out the same tool call (identical fingerprint)
	// before either one populates the result cache; coalesce them onto a
	// single upstream invocation rather than doubling load on the provider.
	payload, callErr, _ := g.inflight.Do(fp, func() (any, error) {
		callCtx := ctx
		var cancel context.CancelFunc
		if g.config.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.config.CallTimeout)
			defer cancel()
		}

		session, err := g.getOrCreateSession(ctx, principalID, providerID)
		if err != nil {
			br.RecordFailure(orcherrors.CodeOf(err))
			return nil, err
		}

		start := time.Now()
		result, callErr := session.CallTool(callCtx, toolName, args)
		duration := time.Since(start)

		if callErr != nil {
			classified := classifyConnectorError(callErr)
			br.RecordFailure(classified.Code)
			if orcherrors.IsCode(classified, orcherrors.ConnectorUnreachable) {
				g.dropSession(principalID, providerID)
			}
			if g.metrics != nil {
				g.metrics.RecordToolCall(providerID, toolName, "error", duration.Seconds())
			}
			return nil, classified
		}

		br.RecordSuccess()
		g.cache.Set(ctx, cache.NamespaceResults, fp, result)
		if g.metrics != nil {
			g.metrics.RecordToolCall(providerID, toolName, "success", duration.Seconds())
		}
		return result, nil
	})
	if callErr != nil {
		return nil, callErr
	}
	return &ToolResult{Payload: payload}, nil
}

// Prewarm opens sessions for providerIDs eagerly; failures are logged and
// ignored since a cold session is retried lazily on first real call.
func (g *Gateway) Prewarm(ctx context.Context, principalID string, providerIDs []string) {
	for _, id := range providerIDs {
		if _, err := g.getOrCreateSession(ctx, principalID, id); err != nil && g.logger != nil {
			g.logger.Warn(ctx, "prewarm failed", "provider_id", id, "error", err)
		}
	}
}

// Shutdown closes every active session. Idempotent.
func (g *Gateway) Shutdown(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, entry := range g.sessions {
		_ = entry.session.Close(ctx)
		delete(g.sessions, key)
	}
}

func findDescriptor(descs []models.ToolDescriptor, name string) (models.ToolDescriptor, bool) {
	for _, d := range descs {
		if d.Name == name {
			return d, true
		}
	}
	return models.ToolDescriptor{}, false
}

func validateArgs(desc models.ToolDescriptor, args map[string]any) error {
	if desc.InputSchema == nil {
		return nil
	}
	schemaBytes, err := json.Marshal(desc.InputSchema)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", jsonSchemaReader(schemaBytes)); err != nil {
		return err
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return err
	}
	argsBytes, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var decoded any
	if err := json.Unmarshal(argsBytes, &decoded); err != nil {
		return err
	}
	return schema.Validate(decoded)
}

func jsonSchemaReader(schemaBytes []byte) io.Reader {
	return bytes.NewReader(schemaBytes)
}

// classifyConnectorError maps a connector-native error to the taxonomy. If
// the connector already returned an *errors.Error, it is passed through
// unchanged so a connector can be more precise than the default mapping.
func classifyConnectorError(err error) *orcherrors.Error {
	if classified, ok := orcherrors.As(err); ok {
		return classified
	}
	return orcherrors.Wrap(orcherrors.ToolExecutionError, "tool execution failed", err)
}
