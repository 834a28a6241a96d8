package executor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nexusquery/orchestrator/internal/breaker"
	"github.com/nexusquery/orchestrator/internal/cache"
	"github.com/nexusquery/orchestrator/internal/executor"
	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/internal/providers/mock"
	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"
)

func buildGateway(t *testing.T, connectors ...*mock.Connector) *gateway.Gateway {
	t.Helper()
	creds := map[string]map[string]string{}
	gconnectors := make([]gateway.ProviderConnector, 0, len(connectors))
	for _, c := range connectors {
		creds[c.ProviderID()] = map[string]string{"token": "t"}
		gconnectors = append(gconnectors, c)
	}
	store := mock.NewStaticCredentialStore(creds)
	cacheLayer := cache.NewLayer(cache.DefaultConfig(), nil)
	t.Cleanup(cacheLayer.Stop)
	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	return gateway.New(gconnectors, store, cacheLayer, breakers, gateway.DefaultConfig(), nil, nil)
}

func echoTool() models.ToolDescriptor {
	return namedEchoTool("echo")
}

func namedEchoTool(name string) models.ToolDescriptor {
	return models.ToolDescriptor{Name: name, Description: "echoes", InputSchema: map[string]any{"type": "object"}}
}

func TestExecutor_Run_OneShotTerminal(t *testing.T) {
	connector := mock.New("chat", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) { return "hello from chat", nil },
	})
	gw := buildGateway(t, connector)

	calls := 0
	r := &reasoner.Mock{
		SelectToolsFunc: func(ctx context.Context, query string, tools []models.ToolDescriptor, history []reasoner.ToolResultEntry) (reasoner.SelectToolsResult, error) {
			calls++
			if calls == 1 {
				return reasoner.SelectToolsResult{Choices: []reasoner.ToolChoice{{ToolName: "echo", Args: map[string]any{}}}}, nil
			}
			return reasoner.SelectToolsResult{Done: true, Answer: history[len(history)-1].Result.(string)}, nil
		},
	}

	exec := executor.New(gw, r, executor.DefaultConfig())
	results := exec.Run(context.Background(), "alice", models.Plan{Query: "hi", Chosen: []string{"chat"}}, nil)

	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if !results[0].Succeeded {
		t.Fatalf("expected leg to succeed, got %+v", results[0])
	}
	if results[0].ProviderID != "chat" {
		t.Errorf("ProviderID = %q, want chat", results[0].ProviderID)
	}
}

func TestExecutor_Run_PreservesPlanOrder(t *testing.T) {
	chat := mock.New("chat", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) { return "chat result", nil },
	})
	db := mock.New("db", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) { return "db result", nil },
	})
	gw := buildGateway(t, chat, db)

	r := &reasoner.Mock{
		SelectToolsFunc: func(ctx context.Context, query string, tools []models.ToolDescriptor, history []reasoner.ToolResultEntry) (reasoner.SelectToolsResult, error) {
			return reasoner.SelectToolsResult{Done: true}, nil
		},
	}
	exec := executor.New(gw, r, executor.DefaultConfig())
	results := exec.Run(context.Background(), "alice", models.Plan{Query: "q", Chosen: []string{"db", "chat"}}, nil)

	if len(results) != 2 || results[0].ProviderID != "db" || results[1].ProviderID != "chat" {
		t.Fatalf("results = %+v, want [db, chat] order preserved", results)
	}
}

func TestExecutor_Run_LegFailureIsolatedFromOthers(t *testing.T) {
	chat := mock.New("chat", []models.ToolDescriptor{namedEchoTool("chat_echo")}, map[string]mock.ToolHandler{
		"chat_echo": func(ctx context.Context, args map[string]any) (any, error) { return "ok", nil },
	})
	flaky := mock.New("flaky", []models.ToolDescriptor{namedEchoTool("flaky_echo")}, map[string]mock.ToolHandler{
		"flaky_echo": func(ctx context.Context, args map[string]any) (any, error) { return nil, errors.New("boom") },
	})
	gw := buildGateway(t, chat, flaky)

	var mu sync.Mutex
	calls := map[string]int{}
	r := &reasoner.Mock{
		SelectToolsFunc: func(ctx context.Context, query string, tools []models.ToolDescriptor, history []reasoner.ToolResultEntry) (reasoner.SelectToolsResult, error) {
			// Alternate: first two calls per provider issue the tool, then terminate.
			key := tools[0].Name
			mu.Lock()
			calls[key]++
			n := calls[key]
			mu.Unlock()
			if n <= 2 {
				return reasoner.SelectToolsResult{Choices: []reasoner.ToolChoice{{ToolName: key, Args: map[string]any{"n": n}}}}, nil
			}
			return reasoner.SelectToolsResult{Done: true}, nil
		},
	}
	exec := executor.New(gw, r, executor.DefaultConfig())
	results := exec.Run(context.Background(), "alice", models.Plan{Query: "q", Chosen: []string{"chat", "flaky"}}, nil)

	var chatResult, flakyResult models.SourceQueryResult
	for _, res := range results {
		if res.ProviderID == "chat" {
			chatResult = res
		} else {
			flakyResult = res
		}
	}
	if !chatResult.Succeeded {
		t.Errorf("expected chat leg to succeed independent of flaky's failure: %+v", chatResult)
	}
	if flakyResult.Succeeded {
		t.Error("expected flaky leg to fail")
	}
}
