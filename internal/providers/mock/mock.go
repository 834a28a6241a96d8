// Package mock provides an in-memory ProviderConnector used by tests and by
// local/dev wiring when no real upstream credentials are configured.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// ToolHandler computes a tool's result given its arguments. Handlers may
// return an error to simulate upstream failure.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

// Connector is a scriptable in-memory provider: its tool set and behavior
// are supplied by the caller, making it suitable both for unit tests and for
// a "demo" provider with canned responses.
type Connector struct {
	providerID string
	tools      []models.ToolDescriptor
	handlers   map[string]ToolHandler
	latency    time.Duration

	mu          sync.Mutex
	connectErr  error
	connectHits int
}

// New creates a mock connector for providerID with the given tool
// descriptors and handlers (keyed by tool name).
func New(providerID string, tools []models.ToolDescriptor, handlers map[string]ToolHandler) *Connector {
	return &Connector{providerID: providerID, tools: tools, handlers: handlers}
}

// WithLatency makes every CallTool sleep for d before returning, for
// exercising timeout and deadline behavior in tests.
func (c *Connector) WithLatency(d time.Duration) *Connector {
	c.latency = d
	return c
}

// FailConnect makes every subsequent Connect call return err.
func (c *Connector) FailConnect(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErr = err
}

// ConnectCount reports how many times Connect has been called, for
// asserting session reuse/recreation behavior in tests.
func (c *Connector) ConnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectHits
}

func (c *Connector) ProviderID() string { return c.providerID }

func (c *Connector) Connect(ctx context.Context, principalID string, credentials map[string]string) (gateway.Session, error) {
	c.mu.Lock()
	c.connectHits++
	err := c.connectErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &session{connector: c, principalID: principalID}, nil
}

type session struct {
	connector   *Connector
	principalID string
	closed      bool
}

func (s *session) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	return s.connector.tools, nil
}

func (s *session) CallTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	if s.connector.latency > 0 {
		select {
		case <-time.After(s.connector.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	handler, ok := s.connector.handlers[tool]
	if !ok {
		return nil, fmt.Errorf("mock provider %s: no handler registered for tool %q", s.connector.providerID, tool)
	}
	return handler(ctx, args)
}

func (s *session) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

// StaticCredentialStore is a trivial CredentialStore that returns the same
// credentials for every (principal, provider) pair, or a fixed set of
// per-provider credentials. Useful for tests and for a single-tenant
// deployment where credentials come from configuration rather than a vault.
type StaticCredentialStore struct {
	perProvider map[string]map[string]string
}

// NewStaticCredentialStore builds a store from a provider_id -> credentials map.
func NewStaticCredentialStore(perProvider map[string]map[string]string) *StaticCredentialStore {
	return &StaticCredentialStore{perProvider: perProvider}
}

func (s *StaticCredentialStore) GetCredentials(ctx context.Context, principalID, providerID string) (map[string]string, bool, error) {
	creds, ok := s.perProvider[providerID]
	if !ok {
		return nil, false, nil
	}
	return creds, true, nil
}
