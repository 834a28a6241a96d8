// Package toolgateway is the Multi-Provider Tool Gateway: uniform access to
// heterogeneous provider connectors behind result caching, breaker
// protection, and principal-scoped session lifecycle.
package toolgateway

import (
	"context"

	"github.com/nexusquery/orchestrator/pkg/models"
)

// ProviderConnector is the capability set every provider implements. It is
// the only contract the core depends on — how a connector talks to its
// upstream (Slack's API, S3, Postgres, or anything else) is entirely its
// own concern.
type ProviderConnector interface {
	// ProviderID identifies which provider this connector serves.
	ProviderID() string

	// Connect establishes (or validates) a session for principal using the
	// given credentials. The returned handle is passed back into ListTools
	// and CallTool and is opaque to the gateway.
	Connect(ctx context.Context, principalID string, credentials map[string]string) (Session, error)
}

// Session is a live, connector-owned handle. Connectors that hold no real
// resource (stateless HTTP connectors) may return a trivial Session whose
// Close is a no-op.
type Session interface {
	// ListTools returns the tool descriptors available through this session.
	ListTools(ctx context.Context) ([]models.ToolDescriptor, error)

	// CallTool invokes tool with args and returns its raw result payload.
	// Implementations classify failures themselves is not required: the
	// gateway wraps any returned error per §4.5's taxonomy mapping, but a
	// connector may return an *errors.Error directly for a more precise code.
	CallTool(ctx context.Context, tool string, args map[string]any) (any, error)

	// Close releases any underlying resource (socket, connection pool slot).
	Close(ctx context.Context) error
}

// CredentialStore is the egress contract to the external credential
// collaborator (§6): looked up once per session creation.
type CredentialStore interface {
	GetCredentials(ctx context.Context, principalID, providerID string) (map[string]string, bool, error)
}
