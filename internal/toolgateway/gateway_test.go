package toolgateway_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nexusquery/orchestrator/internal/breaker"
	"github.com/nexusquery/orchestrator/internal/cache"
	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/internal/providers/mock"
	"github.com/nexusquery/orchestrator/pkg/models"
)

func newTestGateway(t *testing.T, connectors ...*mock.Connector) *gateway.Gateway {
	t.Helper()
	creds := map[string]map[string]string{}
	gconnectors := make([]gateway.ProviderConnector, 0, len(connectors))
	for _, c := range connectors {
		creds[c.ProviderID()] = map[string]string{"token": "test"}
		gconnectors = append(gconnectors, c)
	}
	store := mock.NewStaticCredentialStore(creds)
	cacheLayer := cache.NewLayer(cache.DefaultConfig(), nil)
	t.Cleanup(cacheLayer.Stop)
	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	return gateway.New(gconnectors, store, cacheLayer, breakers, gateway.DefaultConfig(), nil, nil)
}

func echoTool() models.ToolDescriptor {
	return models.ToolDescriptor{
		Name:        "echo",
		Description: "echoes the message argument",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []any{"message"},
			"properties": map[string]any{"message": map[string]any{"type": "string"}},
		},
	}
}

func TestGateway_ListTools_CachesAcrossCalls(t *testing.T) {
	connector := mock.New("helpdesk", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) { return args["message"], nil },
	})
	gw := newTestGateway(t, connector)
	ctx := context.Background()

	if _, err := gw.ListTools(ctx, "alice", "helpdesk"); err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if _, err := gw.ListTools(ctx, "alice", "helpdesk"); err != nil {
		t.Fatalf("ListTools (cached): %v", err)
	}
	if connector.ConnectCount() != 1 {
		t.Errorf("ConnectCount = %d, want 1 (second ListTools should hit cache, not reconnect)", connector.ConnectCount())
	}
}

func TestGateway_ListTools_UnknownProvider(t *testing.T) {
	gw := newTestGateway(t)
	_, err := gw.ListTools(context.Background(), "alice", "nope")
	if !orcherrors.IsCode(err, orcherrors.InvalidProvider) {
		t.Fatalf("err = %v, want INVALID_PROVIDER", err)
	}
}

func TestGateway_CallTool_ValidatesSchema(t *testing.T) {
	connector := mock.New("helpdesk", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) { return args["message"], nil },
	})
	gw := newTestGateway(t, connector)
	ctx := context.Background()

	_, err := gw.CallTool(ctx, "alice", "helpdesk", "echo", map[string]any{})
	if !orcherrors.IsCode(err, orcherrors.ValidationError) {
		t.Fatalf("err = %v, want VALIDATION_ERROR for missing required field", err)
	}
}

func TestGateway_CallTool_UnknownTool(t *testing.T) {
	connector := mock.New("helpdesk", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{})
	gw := newTestGateway(t, connector)

	_, err := gw.CallTool(context.Background(), "alice", "helpdesk", "nonexistent", map[string]any{})
	if !orcherrors.IsCode(err, orcherrors.ValidationError) {
		t.Fatalf("err = %v, want VALIDATION_ERROR for unknown tool", err)
	}
}

func TestGateway_CallTool_CachesResultsByFingerprint(t *testing.T) {
	calls := 0
	connector := mock.New("helpdesk", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) {
			calls++
			return args["message"], nil
		},
	})
	gw := newTestGateway(t, connector)
	ctx := context.Background()
	args := map[string]any{"message": "hi"}

	if _, err := gw.CallTool(ctx, "alice", "helpdesk", "echo", args); err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	res, err := gw.CallTool(ctx, "alice", "helpdesk", "echo", args)
	if err != nil {
		t.Fatalf("CallTool (cached): %v", err)
	}
	if !res.Cached {
		t.Error("expected second identical call to be served from cache")
	}
	if calls != 1 {
		t.Errorf("handler invoked %d times, want 1", calls)
	}
}

func TestGateway_CallTool_TripsBreakerAfterRepeatedFailures(t *testing.T) {
	connector := mock.New("flaky", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("upstream exploded")
		},
	})
	gw := newTestGateway(t, connector)
	ctx := context.Background()
	args := map[string]any{"message": "hi"}

	var lastErr error
	for i := 0; i < 5; i++ {
		// Vary the message so each call bypasses the results cache and
		// actually reaches the connector.
		callArgs := map[string]any{"message": args["message"].(string) + string(rune('a'+i))}
		_, lastErr = gw.CallTool(ctx, "alice", "flaky", "echo", callArgs)
	}
	if lastErr == nil {
		t.Fatal("expected repeated upstream failures to eventually surface an error")
	}
	if !orcherrors.IsCode(lastErr, orcherrors.CircuitOpen) {
		t.Fatalf("last err = %v, want CIRCUIT_OPEN once breaker trips", lastErr)
	}
}

func TestGateway_Shutdown_ClosesSessionsIdempotently(t *testing.T) {
	connector := mock.New("helpdesk", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) { return "ok", nil },
	})
	gw := newTestGateway(t, connector)
	ctx := context.Background()

	if _, err := gw.ListTools(ctx, "alice", "helpdesk"); err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	gw.Shutdown(ctx)
	gw.Shutdown(ctx) // must not panic
}

func TestGateway_CallTool_RespectsDeadline(t *testing.T) {
	connector := mock.New("slow", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) { return "ok", nil },
	}).WithLatency(50 * time.Millisecond)

	creds := map[string]map[string]string{"slow": {"token": "t"}}
	store := mock.NewStaticCredentialStore(creds)
	cacheLayer := cache.NewLayer(cache.DefaultConfig(), nil)
	defer cacheLayer.Stop()
	breakers := breaker.NewRegistry(breaker.DefaultConfig())
	cfg := gateway.DefaultConfig()
	cfg.CallTimeout = 5 * time.Millisecond
	gw := gateway.New([]gateway.ProviderConnector{connector}, store, cacheLayer, breakers, cfg, nil, nil)

	_, err := gw.CallTool(context.Background(), "alice", "slow", "echo", map[string]any{"message": "x"})
	if err == nil {
		t.Fatal("expected a timeout-induced error")
	}
}

func TestGateway_CallTool_CoalescesConcurrentIdenticalCalls(t *testing.T) {
	var calls int32
	connector := mock.New("helpdesk", []models.ToolDescriptor{echoTool()}, map[string]mock.ToolHandler{
		"echo": func(ctx context.Context, args map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(20 * time.Millisecond)
			return args["message"], nil
		},
	})
	gw := newTestGateway(t, connector)
	ctx := context.Background()
	args := map[string]any{"message": "hi"}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = gw.CallTool(ctx, "alice", "helpdesk", "echo", args)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("handler invocations = %d, want 1 (concurrent identical calls should coalesce)", got)
	}
}
