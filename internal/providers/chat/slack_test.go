package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/slack-go/slack"
)

type fakeAPI struct {
	searchFunc func(ctx context.Context, query string, params slack.SearchParameters) (*slack.SearchMessages, error)
	listFunc   func(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
}

func (f *fakeAPI) SearchMessagesContext(ctx context.Context, query string, params slack.SearchParameters) (*slack.SearchMessages, error) {
	return f.searchFunc(ctx, query, params)
}

func (f *fakeAPI) GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	return f.listFunc(ctx, params)
}

func newTestConnector(api API) *Connector {
	return &Connector{newClient: func(token string) API { return api }}
}

func TestConnect_MissingTokenIsMissingCredentials(t *testing.T) {
	c := New()
	_, err := c.Connect(context.Background(), "alice", map[string]string{})
	if err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("Connect error = %v, want a bot_token complaint", err)
	}
}

func TestSearchMessages_FormatsResults(t *testing.T) {
	fake := &fakeAPI{
		searchFunc: func(ctx context.Context, query string, params slack.SearchParameters) (*slack.SearchMessages, error) {
			return &slack.SearchMessages{Matches: []slack.SearchMessage{
				{Text: "deploy finished", Username: "bot", Channel: slack.CtxChannel{Name: "general"}},
			}}, nil
		},
	}
	c := newTestConnector(fake)
	sess, err := c.Connect(context.Background(), "alice", map[string]string{"bot_token": "xoxb-test"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	out, err := sess.CallTool(context.Background(), "search_messages", map[string]any{"query": "deploy"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !strings.Contains(out.(string), "deploy finished") {
		t.Errorf("result = %q, want it to contain the matched message", out)
	}
}

func TestSearchMessages_MissingQueryIsValidationError(t *testing.T) {
	c := newTestConnector(&fakeAPI{})
	sess, _ := c.Connect(context.Background(), "alice", map[string]string{"bot_token": "xoxb-test"})
	_, err := sess.CallTool(context.Background(), "search_messages", map[string]any{})
	if err == nil {
		t.Fatal("expected a validation error for a missing query")
	}
}

func TestCallTool_UnknownToolIsValidationError(t *testing.T) {
	c := newTestConnector(&fakeAPI{})
	sess, _ := c.Connect(context.Background(), "alice", map[string]string{"bot_token": "xoxb-test"})
	_, err := sess.CallTool(context.Background(), "delete_everything", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}

func TestListChannels_WrapsConnectorError(t *testing.T) {
	fake := &fakeAPI{
		listFunc: func(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
			return nil, "", errors.New("rate limited")
		},
	}
	c := newTestConnector(fake)
	sess, _ := c.Connect(context.Background(), "alice", map[string]string{"bot_token": "xoxb-test"})
	_, err := sess.CallTool(context.Background(), "list_channels", map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "list_channels failed") {
		t.Fatalf("err = %v, want a wrapped list_channels failure", err)
	}
}
