package ingress

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nexusquery/orchestrator/internal/observability"
	"github.com/nexusquery/orchestrator/internal/ratelimit"
)

// withRequestContext stamps a request_id (from the incoming header, or
// freshly generated) and the decoded principal_id onto the request context
// before the handler runs.
func (h *Handler) withRequestContext(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := observability.AddRequestID(r.Context(), requestID)

		principalID, ok := principalFromRequest(r, h.auth)
		if !ok {
			writeError(w, authMissingError())
			return
		}
		ctx = observability.AddPrincipalID(ctx, principalID)
		w.Header().Set("X-Request-ID", requestID)

		next(w, r.WithContext(ctx))
	}
}

// withRateLimit enforces the sliding-window budget keyed by principal,
// skipping paths the limiter configuration excludes (health checks).
func (h *Handler) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil || h.limiter.IsExcludedPath(r.URL.Path) {
			next(w, r)
			return
		}

		principalID := observability.GetPrincipalID(r.Context())
		key := ratelimit.KeyFromRequest(principalID, r.Header.Get("X-Forwarded-For"), r.RemoteAddr)
		decision := h.limiter.Allow(key)
		for k, v := range decision.Headers() {
			w.Header()[k] = v
		}
		if !decision.Allowed {
			writeError(w, rateLimitError(decision.RetryAfterSeconds))
			return
		}
		next(w, r)
	}
}

// withLogging records the request outcome and duration once the handler
// returns, and traces the request span end to end when tracing is enabled.
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if h.tracer != nil {
			var span interface{ End() }
			var spanCtx context.Context
			spanCtx, span = h.tracer.TraceHTTPRequest(ctx, r.Method, r.URL.Path)
			ctx = spanCtx
			defer span.End()
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(ctx))

		elapsed := time.Since(start)
		if h.logger != nil {
			h.logger.Info(ctx, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
			)
		}
		if h.metrics != nil {
			h.metrics.RecordRequest(r.Method, r.URL.Path, http.StatusText(rec.status), elapsed.Seconds())
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
