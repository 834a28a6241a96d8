package synthesis_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/internal/synthesis"
	"github.com/nexusquery/orchestrator/pkg/models"
)

func drain(ch <-chan synthesis.Chunk) string {
	var sb strings.Builder
	for chunk := range ch {
		sb.WriteString(chunk.Text)
	}
	return sb.String()
}

func TestSynthesize_NoUsableResultsReturnsFallbackMessage(t *testing.T) {
	s := synthesis.New(synthesis.DefaultConfig(), nil)
	out := s.Synthesize(context.Background(), "q", []models.SourceQueryResult{{ProviderID: "chat", Succeeded: false}})
	text := drain(out)
	if !strings.Contains(text, "No results from configured sources") {
		t.Fatalf("text = %q, want the no-results fallback", text)
	}
}

func TestSynthesize_NilReasonerConcatenates(t *testing.T) {
	s := synthesis.New(synthesis.DefaultConfig(), nil)
	results := []models.SourceQueryResult{
		{ProviderID: "chat", Succeeded: true, Summary: "chat summary"},
		{ProviderID: "db", Succeeded: true, Summary: "db summary"},
	}
	text := drain(s.Synthesize(context.Background(), "q", results))
	if !strings.Contains(text, "chat summary") || !strings.Contains(text, "db summary") {
		t.Fatalf("text = %q, want both source summaries", text)
	}
}

func TestSynthesize_ReasonerStreamIsForwarded(t *testing.T) {
	mockReasoner := &reasoner.Mock{
		SynthesizeFunc: func(ctx context.Context, input reasoner.SynthesisInput) (<-chan reasoner.SynthesisChunk, error) {
			out := make(chan reasoner.SynthesisChunk, 2)
			out <- reasoner.SynthesisChunk{Text: "streamed answer"}
			out <- reasoner.SynthesisChunk{Done: true}
			close(out)
			return out, nil
		},
	}
	s := synthesis.New(synthesis.DefaultConfig(), mockReasoner)
	results := []models.SourceQueryResult{{ProviderID: "chat", Succeeded: true, Summary: "x"}}
	text := drain(s.Synthesize(context.Background(), "q", results))
	if text != "streamed answer" {
		t.Fatalf("text = %q, want streamed answer", text)
	}
}

func TestSynthesize_ReasonerMidStreamErrorFallsBack(t *testing.T) {
	mockReasoner := &reasoner.Mock{
		SynthesizeFunc: func(ctx context.Context, input reasoner.SynthesisInput) (<-chan reasoner.SynthesisChunk, error) {
			out := make(chan reasoner.SynthesisChunk, 1)
			out <- reasoner.SynthesisChunk{Error: errors.New("stream broke"), Done: true}
			close(out)
			return out, nil
		},
	}
	s := synthesis.New(synthesis.DefaultConfig(), mockReasoner)
	results := []models.SourceQueryResult{{ProviderID: "chat", Succeeded: true, Summary: "fallback summary"}}
	text := drain(s.Synthesize(context.Background(), "q", results))
	if !strings.Contains(text, "fallback summary") {
		t.Fatalf("text = %q, want fallback to deterministic concatenation", text)
	}
}

func TestSynthesize_TruncatesLongSourceBlocks(t *testing.T) {
	s := synthesis.New(synthesis.Config{SourceBlockCapChars: 10}, nil)
	results := []models.SourceQueryResult{{ProviderID: "chat", Succeeded: true, Summary: strings.Repeat("a", 100)}}
	text := drain(s.Synthesize(context.Background(), "q", results))
	if strings.Contains(text, strings.Repeat("a", 100)) {
		t.Error("expected the long summary to be truncated")
	}
	if !strings.Contains(text, "…") {
		t.Error("expected an ellipsis marker on the truncated block")
	}
}
