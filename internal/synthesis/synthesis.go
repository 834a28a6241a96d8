// Package synthesis merges per-provider results into one natural-language
// answer, streaming tokens from the configured Reasoner with a deterministic
// fallback when the reasoner is unavailable or fails mid-stream.
package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexusquery/orchestrator/internal/infra"
	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"
)

const (
	defaultSourceBlockCap = 2000
	noResultsFallback     = "No results from configured sources for that query."
)

// Config tunes synthesis truncation.
type Config struct {
	SourceBlockCapChars int
}

// DefaultConfig matches the synthesizer design's default cap.
func DefaultConfig() Config {
	return Config{SourceBlockCapChars: defaultSourceBlockCap}
}

// Synthesizer merges SourceQueryResults into one response.
type Synthesizer struct {
	config   Config
	reasoner reasoner.Reasoner
}

// New builds a Synthesizer. reasoner may be nil to always use the
// deterministic concatenation fallback.
func New(config Config, r reasoner.Reasoner) *Synthesizer {
	if config.SourceBlockCapChars <= 0 {
		config.SourceBlockCapChars = defaultSourceBlockCap
	}
	return &Synthesizer{config: config, reasoner: r}
}

// Chunk is one piece of a streamed synthesis.
type Chunk struct {
	Text string
	Done bool
}

// Synthesize streams the merged answer for query over results. The returned
// channel is always closed, with a final Chunk{Done: true}.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []models.SourceQueryResult) <-chan Chunk {
	usable := usableResults(results)
	out := make(chan Chunk)

	if len(usable) == 0 {
		go func() {
			defer close(out)
			out <- Chunk{Text: noResultsFallback}
			out <- Chunk{Done: true}
		}()
		return out
	}

	if s.reasoner == nil {
		go func() {
			defer close(out)
			s.writeFallback(ctx, usable, out)
		}()
		return out
	}

	input := reasoner.SynthesisInput{Query: query, Results: truncate(usable, s.config.SourceBlockCapChars)}
	chunks, err := s.reasoner.Synthesize(ctx, input)
	if err != nil {
		go func() {
			defer close(out)
			s.writeFallback(ctx, usable, out)
		}()
		return out
	}

	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Error != nil {
				s.writeFallback(ctx, usable, out)
				return
			}
			if chunk.Text != "" {
				select {
				case out <- Chunk{Text: chunk.Text}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				out <- Chunk{Done: true}
				return
			}
		}
	}()
	return out
}

// writeFallback emits the deterministic one-section-per-provider
// concatenation plus a final Done chunk. The caller owns closing out.
func (s *Synthesizer) writeFallback(ctx context.Context, results []models.SourceQueryResult, out chan<- Chunk) {
	for _, r := range truncate(results, s.config.SourceBlockCapChars) {
		text := fmt.Sprintf("## %s\n%s\n\n", r.ProviderID, r.Summary)
		select {
		case out <- Chunk{Text: text}:
		case <-ctx.Done():
			return
		}
	}
	out <- Chunk{Done: true}
}

func usableResults(results []models.SourceQueryResult) []models.SourceQueryResult {
	usable := make([]models.SourceQueryResult, 0, len(results))
	for _, r := range results {
		if r.Succeeded && strings.TrimSpace(r.Summary) != "" {
			usable = append(usable, r)
		}
	}
	return usable
}

func truncate(results []models.SourceQueryResult, cap int) []models.SourceQueryResult {
	out := make([]models.SourceQueryResult, len(results))
	for i, r := range results {
		r.Summary = infra.TruncateWithEllipsis(r.Summary, cap)
		out[i] = r
	}
	return out
}
