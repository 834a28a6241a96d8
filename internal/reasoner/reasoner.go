// Package reasoner defines the abstract LLM-backed decision surface used by
// the detector (C7), planner (C8) and synthesis (C10) components. Concrete
// backends live in subpackages (anthropic, openai, bedrock, gemini) and all
// satisfy the same Reasoner contract, mirroring how the agent runtime treats
// every LLMProvider uniformly.
package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexusquery/orchestrator/pkg/models"
)

// RankCandidate is one provider under consideration for a query.
type RankCandidate struct {
	ProviderID  string
	DisplayName string
	Description string
}

// RankResult is the reasoner's relevance judgment for a single candidate.
type RankResult struct {
	ProviderID        string
	Confidence        float64
	Reasoning         string
	SuggestedApproach string
}

// ToolChoice is a single tool the reasoner selected for a leg, with the
// arguments it wants to call it with.
type ToolChoice struct {
	ToolName string
	Args     map[string]any
}

// ToolResultEntry records one tool call already made during a leg, fed back
// into the next SelectTools call so the reasoner can decide its next step
// (or stop) in light of what it has already seen.
type ToolResultEntry struct {
	ToolName string
	Args     map[string]any
	Result   any
	Err      string
}

// MaxHistoryEntries bounds how many of a leg's most recent tool-result
// entries are retained and passed to SelectTools, so a long-running leg's
// prompt doesn't grow without bound.
const MaxHistoryEntries = 5

// BoundHistory returns the last n entries of history (or fewer), dropping
// the oldest first.
func BoundHistory(history []ToolResultEntry, n int) []ToolResultEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// SelectToolsResult is the reasoner's decision for one iteration of a
// provider leg.
type SelectToolsResult struct {
	// Choices are further tool calls to make this iteration.
	Choices []ToolChoice
	// Done reports that the history seen so far is enough to answer; Answer
	// then holds the reasoner's synthesized per-leg response. Choices is
	// empty whenever Done is true.
	Done   bool
	Answer string
}

// SynthesisInput bundles the per-source results the reasoner must merge
// into one coherent answer.
type SynthesisInput struct {
	Query   string
	Results []models.SourceQueryResult
}

// Reasoner is the abstract LLM decision surface: relevance ranking, tool
// selection for a single provider leg, and final multi-source synthesis.
// Every method accepts a context so a slow backend can be bounded by the
// caller's deadline.
type Reasoner interface {
	// Rank scores each candidate's relevance to query. Used by the detector
	// when the keyword fast-path does not produce a confident verdict.
	Rank(ctx context.Context, query string, candidates []RankCandidate) ([]RankResult, error)

	// SelectTools decides the next step for one provider leg: either further
	// tools (and arguments) to call, or a terminal answer synthesized from
	// history, a bounded window of the tool calls already made this leg and
	// their outcomes.
	SelectTools(ctx context.Context, query string, tools []models.ToolDescriptor, history []ToolResultEntry) (SelectToolsResult, error)

	// Synthesize merges per-provider results into a single natural-language
	// response. Returns a channel of text chunks so callers can stream the
	// synthesis incrementally; the channel is closed when synthesis completes
	// or fails (a final chunk carries an error, if any).
	Synthesize(ctx context.Context, input SynthesisInput) (<-chan SynthesisChunk, error)

	// Name identifies the backend for logging and metrics labels.
	Name() string
}

// SynthesisChunk is one piece of a streamed synthesis response.
type SynthesisChunk struct {
	Text  string
	Done  bool
	Error error
}

// WriteHistory renders a bounded tool-call history into prompt text, shared
// by every backend's SelectTools so the "already called" framing stays
// identical across providers.
func WriteHistory(sb *strings.Builder, history []ToolResultEntry) {
	if len(history) == 0 {
		return
	}
	sb.WriteString("\nAlready called this turn:\n")
	for _, h := range history {
		argsBytes, _ := json.Marshal(h.Args)
		if h.Err != "" {
			fmt.Fprintf(sb, "- %s(%s) -> error: %s\n", h.ToolName, string(argsBytes), h.Err)
			continue
		}
		resultBytes, _ := json.Marshal(h.Result)
		fmt.Fprintf(sb, "- %s(%s) -> %s\n", h.ToolName, string(argsBytes), string(resultBytes))
	}
}

// rawSelectToolsResponse is the wire shape every backend asks its model to
// respond with for SelectTools.
type rawSelectToolsResponse struct {
	Done      bool   `json:"done"`
	Answer    string `json:"answer"`
	ToolCalls []struct {
		ToolName string         `json:"tool_name"`
		Args     map[string]any `json:"args"`
	} `json:"tool_calls"`
}

// ParseSelectToolsResponse decodes a model's JSON response (after the
// caller has stripped any surrounding prose) into a SelectToolsResult. A
// response with no tool_calls and done=false is treated as terminal too:
// the model has nothing further it wants to call.
func ParseSelectToolsResponse(jsonText string) (SelectToolsResult, error) {
	var raw rawSelectToolsResponse
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return SelectToolsResult{}, fmt.Errorf("could not parse tool selection response: %w", err)
	}
	choices := make([]ToolChoice, 0, len(raw.ToolCalls))
	for _, item := range raw.ToolCalls {
		choices = append(choices, ToolChoice{ToolName: item.ToolName, Args: item.Args})
	}
	return SelectToolsResult{
		Choices: choices,
		Done:    raw.Done || len(choices) == 0,
		Answer:  raw.Answer,
	}, nil
}
