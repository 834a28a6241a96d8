package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexusquery/orchestrator/internal/breaker"
	"github.com/nexusquery/orchestrator/internal/cache"
	"github.com/nexusquery/orchestrator/internal/config"
	"github.com/nexusquery/orchestrator/internal/detector"
	"github.com/nexusquery/orchestrator/internal/executor"
	"github.com/nexusquery/orchestrator/internal/infra"
	"github.com/nexusquery/orchestrator/internal/ingress"
	"github.com/nexusquery/orchestrator/internal/observability"
	"github.com/nexusquery/orchestrator/internal/orchestrator"
	"github.com/nexusquery/orchestrator/internal/planner"
	"github.com/nexusquery/orchestrator/internal/providers/chat"
	"github.com/nexusquery/orchestrator/internal/providers/db"
	"github.com/nexusquery/orchestrator/internal/providers/mock"
	"github.com/nexusquery/orchestrator/internal/providers/storage"
	"github.com/nexusquery/orchestrator/internal/ratelimit"
	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/internal/reasoner/anthropic"
	"github.com/nexusquery/orchestrator/internal/reasoner/bedrock"
	"github.com/nexusquery/orchestrator/internal/reasoner/gemini"
	"github.com/nexusquery/orchestrator/internal/reasoner/openai"
	"github.com/nexusquery/orchestrator/internal/synthesis"
	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// runServe loads configuration, wires every component, and serves the HTTP
// surface until a shutdown signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := cfg.Observability.LogLevel
	if debug {
		logLevel = "debug"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:  logLevel,
		Format: cfg.Observability.LogFormat,
	})
	metrics := observability.NewMetrics()

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "nexus-orchestrator",
		Environment: cfg.Observability.LogLevel,
		Endpoint:    cfg.Observability.OTLPEndpoint,
	})

	logger.Info(ctx, "configuration loaded",
		"listen_addr", cfg.Server.ListenAddr,
		"reasoner_provider", cfg.Reasoner.Provider,
		"providers", len(cfg.Providers),
	)

	r, err := buildReasoner(ctx, cfg.Reasoner)
	if err != nil {
		return fmt.Errorf("build reasoner: %w", err)
	}

	gw, breakers, cacheLayer := buildGateway(cfg, r, logger)

	providers := buildProviderSet(cfg.Providers)

	health := infra.NewHealthCheckRegistry()
	health.RegisterSimple("breakers", func(ctx context.Context) error {
		for providerID, stats := range breakers.AllStats() {
			if stats.State == breaker.Open {
				return fmt.Errorf("circuit open for provider %s", providerID)
			}
		}
		return nil
	})

	deps := orchestrator.Dependencies{
		Detector:    detector.New(detector.DefaultConfig(), r),
		Planner:     planner.New(planner.DefaultConfig()),
		Executor:    executor.New(gw, r, executor.Config{MaxConcurrentLegs: cfg.Gateway.MaxConcurrentLegsPerRequest, MaxIterations: cfg.Gateway.ReasonerMaxIterations, TotalDeadline: time.Duration(cfg.Server.RequestDeadlineSeconds) * time.Second}),
		Synthesizer: synthesis.New(synthesis.DefaultConfig(), r),
		Providers:   func() map[string]models.Provider { return providers },
	}
	orch := orchestrator.New(deps)

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.PerMinute,
		RequestsPerHour:   cfg.RateLimit.PerHour,
		Enabled:           true,
		ExcludedPaths:     []string{"/health"},
	})

	handler := ingress.NewHandler(ingress.Dependencies{
		Orchestrator: orch,
		Detector:     deps.Detector,
		Providers:    deps.Providers,
		Limiter:      limiter,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
		Auth:         ingress.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, Required: cfg.Auth.Required},
		Health:       health,
	})

	server := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.RequestDeadlineSeconds) * time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown := infra.NewShutdownCoordinator(30*time.Second, slog.Default())
	shutdown.RegisterService("http_server", func(ctx context.Context) error {
		return server.Shutdown(ctx)
	})
	shutdown.RegisterConnection("cache", func(ctx context.Context) error {
		cacheLayer.Stop()
		return nil
	})
	shutdown.RegisterFunc("tracer", infra.PhaseCleanup, shutdownTracer)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "orchestrator listening", "addr", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	for _, result := range shutdown.Shutdown(context.Background()) {
		if result.Error != nil {
			logger.Error(context.Background(), "shutdown handler failed", "name", result.Name, "error", result.Error.Error())
		}
	}

	logger.Info(context.Background(), "orchestrator stopped gracefully")
	return nil
}

// buildReasoner selects the configured reasoner backend.
func buildReasoner(ctx context.Context, cfg config.ReasonerConfig) (reasoner.Reasoner, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(openai.Config{APIKey: cfg.OpenAIAPIKey, DefaultModel: cfg.DefaultModel}), nil
	case "bedrock":
		return bedrock.New(ctx, bedrock.Config{Region: cfg.BedrockRegion, DefaultModel: cfg.DefaultModel})
	case "gemini":
		return gemini.New(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey, DefaultModel: cfg.DefaultModel})
	case "anthropic", "":
		return anthropic.New(anthropic.Config{APIKey: cfg.AnthropicAPIKey, DefaultModel: cfg.DefaultModel, MaxRetries: 2, RetryDelay: time.Second}), nil
	default:
		return nil, fmt.Errorf("unknown reasoner provider %q", cfg.Provider)
	}
}

// buildGateway wires the cache, breaker registry, and reference provider
// connectors into the Tool Gateway. The breaker registry is also returned
// so the caller can expose its state through health checks.
func buildGateway(cfg *config.Config, r reasoner.Reasoner, logger *observability.Logger) (*gateway.Gateway, *breaker.Registry, *cache.Layer) {
	cacheConfig := cache.DefaultConfig()
	cacheConfig.ToolsTTL = time.Duration(cfg.Cache.ToolsTTLSeconds) * time.Second
	cacheConfig.ResultsTTL = time.Duration(cfg.Cache.ResultsTTLSeconds) * time.Second
	cacheConfig.MaxEntries = cfg.Cache.MaxEntries
	cacheConfig.RedisAddr = cfg.Cache.RedisAddr

	var backend cache.Backend
	if cfg.Cache.RedisAddr != "" {
		backend = cache.NewRedisBackend(cfg.Cache.RedisAddr)
	}
	cacheLayer := cache.NewLayer(cacheConfig, backend)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		OpenTimeout:      time.Duration(cfg.Breaker.OpenTimeoutSeconds) * time.Second,
	})

	connectors := []gateway.ProviderConnector{
		chat.New(),
		storage.New(storage.Config{
			Bucket: os.Getenv("STORAGE_BUCKET"),
			Region: os.Getenv("AWS_REGION"),
		}),
		db.New(),
	}

	credStore := mock.NewStaticCredentialStore(map[string]map[string]string{
		"chat": {"bot_token": os.Getenv("SLACK_BOT_TOKEN")},
		"storage": {
			"aws_access_key_id":     os.Getenv("AWS_ACCESS_KEY_ID"),
			"aws_secret_access_key": os.Getenv("AWS_SECRET_ACCESS_KEY"),
		},
		"db": {"dsn": os.Getenv("POSTGRES_DSN")},
	})

	gw := gateway.New(
		connectors,
		credStore,
		cacheLayer,
		breakers,
		gateway.Config{
			CallTimeout:     time.Duration(cfg.Gateway.ToolCallTimeoutSeconds) * time.Second,
			SessionIdleTTL:  30 * time.Minute,
			BreakerDefaults: breaker.DefaultConfig(),
		},
		logger,
		gateway.NewMetrics(),
	)
	return gw, breakers, cacheLayer
}

func buildProviderSet(configured []config.ProviderConfig) map[string]models.Provider {
	out := make(map[string]models.Provider, len(configured))
	for _, p := range configured {
		out[p.ID] = models.Provider{
			ID:          p.ID,
			DisplayName: p.DisplayName,
			Enabled:     p.Enabled,
			Priority:    p.Priority,
			Keywords:    p.Keywords,
		}
	}
	return out
}
