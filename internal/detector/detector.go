// Package detector implements provider relevance detection: a fast keyword
// match-ratio pass, refined by an LLM rank call only when the keyword pass
// does not produce a confident verdict.
package detector

import (
	"context"
	"sort"
	"strings"

	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Config tunes the keyword-to-LLM tiering.
type Config struct {
	// ConfidentThreshold is the per-provider keyword-match confidence above
	// which a candidate counts as "clearly relevant".
	ConfidentThreshold float64
	// MinConfidentCandidates is how many providers must clear
	// ConfidentThreshold before the keyword pass is trusted outright.
	MinConfidentCandidates int
}

// DefaultConfig matches the detector design's tiering rule: keyword
// confidence is authoritative once at least two candidates clearly match;
// otherwise the LLM rank call fully replaces it (no blending of the two).
func DefaultConfig() Config {
	return Config{ConfidentThreshold: 0.5, MinConfidentCandidates: 2}
}

// Detector scores providers for relevance to a query.
type Detector struct {
	config   Config
	reasoner reasoner.Reasoner
}

// New builds a Detector. reasoner may be nil if only the keyword pass is
// desired (e.g. in tests, or when no LLM backend is configured).
func New(config Config, r reasoner.Reasoner) *Detector {
	return &Detector{config: config, reasoner: r}
}

// Detect scores every enabled provider against query, in descending
// confidence order.
func (d *Detector) Detect(ctx context.Context, query string, providers []models.Provider) ([]models.ProviderRelevance, error) {
	keywordResults := keywordPass(query, providers)

	confident := 0
	for _, r := range keywordResults {
		if r.Confidence >= d.config.ConfidentThreshold {
			confident++
		}
	}

	if confident >= d.config.MinConfidentCandidates || d.reasoner == nil {
		sortByConfidenceDesc(keywordResults, providers)
		return keywordResults, nil
	}

	candidates := make([]reasoner.RankCandidate, 0, len(providers))
	for _, p := range providers {
		if !p.Enabled {
			continue
		}
		candidates = append(candidates, reasoner.RankCandidate{
			ProviderID:  p.ID,
			DisplayName: p.DisplayName,
			Description: describeKeywords(p),
		})
	}

	ranked, err := d.reasoner.Rank(ctx, query, candidates)
	if err != nil {
		// LLM refinement failed: fall back to the keyword pass rather than
		// surfacing an error for what is, at worst, a lower-confidence result.
		sortByConfidenceDesc(keywordResults, providers)
		return keywordResults, nil
	}

	results := make([]models.ProviderRelevance, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, models.ProviderRelevance{
			ProviderID:        r.ProviderID,
			Confidence:        r.Confidence,
			Reasoning:         r.Reasoning,
			SuggestedApproach: r.SuggestedApproach,
		})
	}
	sortByConfidenceDesc(results, providers)
	return results, nil
}

// keywordPass scores each enabled provider by the fraction of its declared
// keywords that appear in the (lowercased) query, weighted per keyword.
func keywordPass(query string, providers []models.Provider) []models.ProviderRelevance {
	content := strings.ToLower(query)
	results := make([]models.ProviderRelevance, 0, len(providers))

	for _, p := range providers {
		if !p.Enabled || len(p.Keywords) == 0 {
			continue
		}
		var matchedWeight, totalWeight float64
		var matchedTerms []string
		for keyword, weight := range p.Keywords {
			if weight <= 0 {
				weight = 1.0
			}
			totalWeight += weight
			if strings.Contains(content, strings.ToLower(keyword)) {
				matchedWeight += weight
				matchedTerms = append(matchedTerms, keyword)
			}
		}
		if matchedWeight == 0 || totalWeight == 0 {
			continue
		}
		results = append(results, models.ProviderRelevance{
			ProviderID: p.ID,
			Confidence: matchedWeight / totalWeight,
			Reasoning:  "keyword match: " + strings.Join(matchedTerms, ", "),
		})
	}
	return results
}

func describeKeywords(p models.Provider) string {
	terms := make([]string, 0, len(p.Keywords))
	for k := range p.Keywords {
		terms = append(terms, k)
	}
	sort.Strings(terms)
	return "handles queries about: " + strings.Join(terms, ", ")
}

// sortByConfidenceDesc orders results by descending confidence, breaking
// ties first on the provider's declared priority (higher first), then
// lexicographically on provider_id for a fully deterministic order.
func sortByConfidenceDesc(results []models.ProviderRelevance, providers []models.Provider) {
	priority := make(map[string]int, len(providers))
	for _, p := range providers {
		priority[p.ID] = p.Priority
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if pa, pb := priority[a.ProviderID], priority[b.ProviderID]; pa != pb {
			return pa > pb
		}
		return a.ProviderID < b.ProviderID
	})
}
