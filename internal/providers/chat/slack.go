// Package chat adapts a Slack workspace into a query-orchestrator provider:
// two read-only tools (search_messages, list_channels) over the Slack Web
// API, scoped to one principal's bot token per session.
package chat

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// API is the subset of the Slack Web API this provider calls. Narrowed to
// allow a test double in place of *slack.Client.
type API interface {
	SearchMessagesContext(ctx context.Context, query string, params slack.SearchParameters) (*slack.SearchMessages, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

var _ API = (*slack.Client)(nil)

var tools = []models.ToolDescriptor{
	{
		Name:        "search_messages",
		Description: "Full-text search across channels the bot can see",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"count": map[string]any{"type": "integer", "minimum": 1, "maximum": 100},
			},
		},
	},
	{
		Name:        "list_channels",
		Description: "List public channels visible to the bot",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
			},
		},
	},
}

// Connector is the Slack ProviderConnector. newClient lets tests substitute
// a fake API without a real bot token.
type Connector struct {
	newClient func(token string) API
}

// New builds a Slack connector using the real slack.Client.
func New() *Connector {
	return &Connector{newClient: func(token string) API { return slack.New(token) }}
}

var _ gateway.ProviderConnector = (*Connector)(nil)

// ProviderID identifies this connector.
func (c *Connector) ProviderID() string { return "chat" }

// Connect validates the bot token is present and returns a session bound to it.
func (c *Connector) Connect(ctx context.Context, principalID string, credentials map[string]string) (gateway.Session, error) {
	token := credentials["bot_token"]
	if token == "" {
		return nil, orcherrors.New(orcherrors.MissingCredentials, "chat: missing bot_token credential")
	}
	return &session{api: c.newClient(token)}, nil
}

type session struct {
	api API
}

func (s *session) ListTools(ctx context.Context) ([]models.ToolDescriptor, error) {
	return tools, nil
}

func (s *session) CallTool(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case "search_messages":
		return s.searchMessages(ctx, args)
	case "list_channels":
		return s.listChannels(ctx, args)
	default:
		return nil, orcherrors.New(orcherrors.ValidationError, "chat: unknown tool "+tool)
	}
}

func (s *session) searchMessages(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, orcherrors.New(orcherrors.ValidationError, "chat: search_messages requires query")
	}
	count := 20
	if c, ok := args["count"].(float64); ok && c > 0 {
		count = int(c)
	}
	result, err := s.api.SearchMessagesContext(ctx, query, slack.SearchParameters{Count: count})
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ToolExecutionError, "chat: search_messages failed", err)
	}

	lines := make([]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		lines = append(lines, fmt.Sprintf("#%s @%s: %s", m.Channel.Name, m.Username, m.Text))
	}
	if len(lines) == 0 {
		return "no messages matched that search", nil
	}
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out, nil
}

func (s *session) listChannels(ctx context.Context, args map[string]any) (any, error) {
	limit := 100
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	channels, _, err := s.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{Limit: limit, ExcludeArchived: true})
	if err != nil {
		return nil, orcherrors.Wrap(orcherrors.ToolExecutionError, "chat: list_channels failed", err)
	}
	out := ""
	for i, ch := range channels {
		if i > 0 {
			out += "\n"
		}
		out += "#" + ch.Name
	}
	return out, nil
}

func (s *session) Close(ctx context.Context) error { return nil }
