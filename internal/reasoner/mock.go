package reasoner

import (
	"context"

	"github.com/nexusquery/orchestrator/pkg/models"
)

// Mock is a scriptable Reasoner for use in tests of the detector, planner,
// and synthesis components, which depend only on the Reasoner interface.
type Mock struct {
	NameValue       string
	RankFunc        func(ctx context.Context, query string, candidates []RankCandidate) ([]RankResult, error)
	SelectToolsFunc func(ctx context.Context, query string, tools []models.ToolDescriptor, history []ToolResultEntry) (SelectToolsResult, error)
	SynthesizeFunc  func(ctx context.Context, input SynthesisInput) (<-chan SynthesisChunk, error)
}

func (m *Mock) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

func (m *Mock) Rank(ctx context.Context, query string, candidates []RankCandidate) ([]RankResult, error) {
	if m.RankFunc == nil {
		return nil, nil
	}
	return m.RankFunc(ctx, query, candidates)
}

func (m *Mock) SelectTools(ctx context.Context, query string, tools []models.ToolDescriptor, history []ToolResultEntry) (SelectToolsResult, error) {
	if m.SelectToolsFunc == nil {
		return SelectToolsResult{Done: true}, nil
	}
	return m.SelectToolsFunc(ctx, query, tools, history)
}

func (m *Mock) Synthesize(ctx context.Context, input SynthesisInput) (<-chan SynthesisChunk, error) {
	if m.SynthesizeFunc == nil {
		out := make(chan SynthesisChunk, 1)
		out <- SynthesisChunk{Done: true}
		close(out)
		return out, nil
	}
	return m.SynthesizeFunc(ctx, input)
}
