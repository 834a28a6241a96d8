// Package planner selects, filters and orders providers for a request into
// a Plan, deciding between parallel and sequential execution mode.
package planner

import (
	"fmt"

	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Config tunes default thresholds used when the caller's request leaves
// them unset.
type Config struct {
	DefaultConfidenceThreshold float64
	DefaultMaxSources          int
}

// DefaultConfig matches the documented request defaults: a query that omits
// confidence_threshold and max_sources selects up to 3 sources at >= 0.5
// confidence.
func DefaultConfig() Config {
	return Config{DefaultConfidenceThreshold: 0.5, DefaultMaxSources: 3}
}

// Planner turns detector output and request hints into an execution Plan.
type Planner struct {
	config Config
}

// New builds a Planner.
func New(config Config) *Planner {
	return &Planner{config: config}
}

// Plan selects and orders providers. configured lists every provider the
// principal may use; ranked is the detector's relevance-ordered output
// (ignored when request.Sources pins an explicit list).
func (p *Planner) Plan(query string, request models.MultiSourceRequest, ranked []models.ProviderRelevance, configured map[string]models.Provider, medianLatencyMS map[string]int) (models.Plan, error) {
	plan := models.Plan{
		Query:  query,
		Ranked: ranked,
		Mode:   models.ExecutionParallel,
	}

	if len(request.Sources) > 0 {
		chosen, err := intersectRequested(request.Sources, configured)
		if err != nil {
			return models.Plan{}, err
		}
		plan.Chosen = chosen
		plan.Reasoning = "caller pinned an explicit source list"
	} else {
		threshold := request.ConfidenceThreshold
		if threshold <= 0 {
			threshold = p.config.DefaultConfidenceThreshold
		}
		maxSources := request.MaxSources
		if maxSources <= 0 {
			maxSources = p.config.DefaultMaxSources
		}
		plan.Chosen = filterAndTruncate(ranked, threshold, maxSources)
		plan.Reasoning = fmt.Sprintf("selected %d of %d ranked sources at confidence >= %.2f", len(plan.Chosen), len(ranked), threshold)
	}

	if len(plan.Chosen) == 0 {
		return models.Plan{}, orcherrors.New(orcherrors.ValidationError, "no provider cleared selection for this query")
	}

	// mode is always parallel today; BuildDependencyGraph-style staging is
	// reserved for a future leg that consumes another leg's output.
	plan.Mode = decideMode(plan.Chosen)
	plan.EstimatedMS = maxMedian(plan.Chosen, medianLatencyMS)

	return plan, nil
}

func intersectRequested(requested []string, configured map[string]models.Provider) ([]string, error) {
	chosen := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := configured[id]; !ok {
			return nil, orcherrors.New(orcherrors.InvalidProvider, "unknown provider in sources: "+id).
				WithDetails(map[string]any{"provider_id": id})
		}
		chosen = append(chosen, id)
	}
	return chosen, nil
}

func filterAndTruncate(ranked []models.ProviderRelevance, threshold float64, maxSources int) []string {
	chosen := make([]string, 0, maxSources)
	for _, r := range ranked {
		if r.Confidence < threshold {
			continue
		}
		chosen = append(chosen, r.ProviderID)
		if len(chosen) >= maxSources {
			break
		}
	}
	return chosen
}

// decideMode is a trivial single-stage graph today: every chosen provider
// is independent, so the plan is always parallel. Kept as a real decision
// point (rather than a hardcoded constant) so introducing staged/sequential
// legs later only changes this function.
func decideMode(chosen []string) models.ExecutionMode {
	return models.ExecutionParallel
}

// maxMedian returns the largest recent per-provider median latency among
// chosen providers; parallel execution bounds total time by the slowest leg.
func maxMedian(chosen []string, medianLatencyMS map[string]int) int64 {
	max := 0
	for _, id := range chosen {
		if m := medianLatencyMS[id]; m > max {
			max = m
		}
	}
	return int64(max)
}
