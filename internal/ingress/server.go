// Package ingress implements the query orchestrator's HTTP surface:
// synchronous and streaming query endpoints, plus detection/suggestion,
// registered on a plain net/http.ServeMux and wrapped with request-id,
// auth, rate-limit, and logging middleware.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/nexusquery/orchestrator/internal/detector"
	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	"github.com/nexusquery/orchestrator/internal/infra"
	"github.com/nexusquery/orchestrator/internal/observability"
	"github.com/nexusquery/orchestrator/internal/orchestrator"
	"github.com/nexusquery/orchestrator/internal/ratelimit"
	"github.com/nexusquery/orchestrator/pkg/models"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,64}$`)

// Dependencies bundles everything the HTTP surface needs to serve a request.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Detector     *detector.Detector
	Providers    func() map[string]models.Provider
	Limiter      *ratelimit.Limiter
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
	Auth         AuthConfig
	// Health registers readiness checks (breaker state, provider sessions).
	// A nil registry degrades /health to a static ok response.
	Health *infra.HealthCheckRegistry
}

// Handler serves the orchestrator's external HTTP interface.
type Handler struct {
	deps    Dependencies
	mux     *http.ServeMux
	limiter *ratelimit.Limiter
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	auth    AuthConfig
	health  *infra.HealthCheckRegistry
}

// NewHandler builds the HTTP handler and registers every route.
func NewHandler(deps Dependencies) *Handler {
	h := &Handler{
		deps:    deps,
		mux:     http.NewServeMux(),
		limiter: deps.Limiter,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		auth:    deps.Auth,
		health:  deps.Health,
	}
	h.routes()
	return h
}

func (h *Handler) routes() {
	h.mux.HandleFunc("/health", h.handleHealth)
	h.mux.HandleFunc("/api/agent/query", h.wrap(h.handleQuery))
	h.mux.HandleFunc("/api/agent/query/stream", h.wrap(h.handleQueryStream))
	h.mux.HandleFunc("/api/agent/detect", h.wrap(h.handleDetect))
	h.mux.HandleFunc("/api/agent/suggest", h.wrap(h.handleSuggest))
}

// wrap applies the middleware chain common to every agent-facing route.
func (h *Handler) wrap(next http.HandlerFunc) http.HandlerFunc {
	return h.withLogging(h.withRequestContext(h.withRateLimit(next)))
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}
	report := h.health.CheckAll(r.Context())
	status := http.StatusOK
	if !report.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	principalID := observability.GetPrincipalID(r.Context())
	resp, err := h.deps.Orchestrator.Process(r.Context(), principalID, req)
	if err != nil {
		h.recordError(r.Context(), err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, orcherrors.New(orcherrors.InternalError, "streaming unsupported by response writer"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	principalID := observability.GetPrincipalID(r.Context())
	events := h.deps.Orchestrator.Stream(r.Context(), principalID, req)
	for ev := range events {
		payload, err := json.Marshal(map[string]any{
			"type":    ev.Type,
			"at":      ev.At,
			"message": ev.Message,
			"data":    ev.Data,
		})
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		if ev.Type == orchestrator.EventError {
			h.recordError(r.Context(), orcherrors.New(orcherrors.Code(fmt.Sprint(ev.Data["code"])), ev.Message))
		}
	}
}

type detectRequest struct {
	Query string `json:"query"`
}

func (h *Handler) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, orcherrors.New(orcherrors.ValidationError, "request body must be valid JSON"))
		return
	}
	if len(req.Query) == 0 || len(req.Query) > 100000 {
		writeError(w, orcherrors.New(orcherrors.ValidationError, "query must be 1..100000 characters"))
		return
	}

	ranked, err := h.deps.Detector.Detect(r.Context(), req.Query, providerList(h.deps.Providers()))
	if err != nil {
		h.recordError(r.Context(), err)
		writeError(w, err)
		return
	}

	confident := 0
	for _, rel := range ranked {
		if rel.Confidence >= 0.5 {
			confident++
		}
	}

	reasoning := "single relevant source identified"
	if confident >= 2 {
		reasoning = "multiple sources clear the relevance threshold"
	}

	type suggestion struct {
		ProviderID string  `json:"provider_id"`
		Confidence float64 `json:"confidence"`
	}
	suggested := make([]suggestion, 0, len(ranked))
	for _, rel := range ranked {
		suggested = append(suggested, suggestion{ProviderID: rel.ProviderID, Confidence: rel.Confidence})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"is_multi_source": confident >= 2,
		"suggested":       suggested,
		"reasoning":       reasoning,
	})
}

type suggestRequest struct {
	Query          string `json:"query"`
	MaxSuggestions int    `json:"max_suggestions"`
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, orcherrors.New(orcherrors.ValidationError, "request body must be valid JSON"))
		return
	}
	if len(req.Query) == 0 || len(req.Query) > 100000 {
		writeError(w, orcherrors.New(orcherrors.ValidationError, "query must be 1..100000 characters"))
		return
	}
	if req.MaxSuggestions <= 0 {
		req.MaxSuggestions = 5
	}

	ranked, err := h.deps.Detector.Detect(r.Context(), req.Query, providerList(h.deps.Providers()))
	if err != nil {
		h.recordError(r.Context(), err)
		writeError(w, err)
		return
	}
	if len(ranked) > req.MaxSuggestions {
		ranked = ranked[:req.MaxSuggestions]
	}
	writeJSON(w, http.StatusOK, ranked)
}

func (h *Handler) recordError(ctx context.Context, err error) {
	code := orcherrors.CodeOf(err)
	if h.metrics != nil {
		h.metrics.RecordError(string(code), "")
	}
	if h.logger != nil {
		h.logger.Error(ctx, "request failed", "code", string(code), "error", err.Error())
	}
}

func decodeQuery(r *http.Request) (models.MultiSourceRequest, error) {
	var req models.MultiSourceRequest
	req.IncludePlan = true
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, orcherrors.New(orcherrors.ValidationError, "request body must be valid JSON")
	}
	if len(req.Query) == 0 || len(req.Query) > 100000 {
		return req, orcherrors.New(orcherrors.ValidationError, "query must be 1..100000 characters")
	}
	if req.SessionID != "" && !sessionIDPattern.MatchString(req.SessionID) {
		return req, orcherrors.New(orcherrors.ValidationError, "session_id must match [A-Za-z0-9-]{8,64}")
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		return req, orcherrors.New(orcherrors.ValidationError, "confidence_threshold must be in [0,1]")
	}
	if req.MaxSources != 0 && (req.MaxSources < 1 || req.MaxSources > 5) {
		return req, orcherrors.New(orcherrors.ValidationError, "max_sources must be in [1,5]")
	}
	return req, nil
}

func providerList(configured map[string]models.Provider) []models.Provider {
	out := make([]models.Provider, 0, len(configured))
	for _, p := range configured {
		out = append(out, p)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := orcherrors.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), map[string]any{
		"code":    string(code),
		"message": err.Error(),
	})
}

func authMissingError() error {
	return orcherrors.New(orcherrors.AuthTokenMissing, "a valid bearer token is required")
}

func rateLimitError(retryAfterSeconds int) error {
	return orcherrors.New(orcherrors.RateLimitExceeded, fmt.Sprintf("rate limit exceeded, retry after %ds", retryAfterSeconds))
}
