// Package gemini implements reasoner.Reasoner over Google's Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Config parameterizes the Gemini-backed reasoner.
type Config struct {
	APIKey       string
	DefaultModel string
}

// Reasoner implements reasoner.Reasoner against Gemini.
type Reasoner struct {
	client       *genai.Client
	defaultModel string
}

// New builds a Gemini-backed reasoner.
func New(ctx context.Context, cfg Config) (*Reasoner, error) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini reasoner: failed to create client: %w", err)
	}
	return &Reasoner{client: client, defaultModel: cfg.DefaultModel}, nil
}

func (r *Reasoner) Name() string { return "gemini" }

func (r *Reasoner) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.Models.GenerateContent(ctx, r.defaultModel, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (r *Reasoner) Rank(ctx context.Context, query string, candidates []reasoner.RankCandidate) ([]reasoner.RankResult, error) {
	var sb strings.Builder
	sb.WriteString("Rank each data source's relevance to the query. Respond with ONLY a JSON array of ")
	sb.WriteString(`{"provider_id", "confidence" (0-1), "reasoning", "suggested_approach"}.` + "\n\nQuery: ")
	sb.WriteString(query)
	sb.WriteString("\n\nSources:\n")
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", c.ProviderID, c.DisplayName, c.Description)
	}
	text, err := r.complete(ctx, sb.String())
	if err != nil {
		return nil, err
	}
	var raw []struct {
		ProviderID        string  `json:"provider_id"`
		Confidence        float64 `json:"confidence"`
		Reasoning         string  `json:"reasoning"`
		SuggestedApproach string  `json:"suggested_approach"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return nil, fmt.Errorf("gemini reasoner: could not parse ranking response: %w", err)
	}
	out := make([]reasoner.RankResult, 0, len(raw))
	for _, item := range raw {
		out = append(out, reasoner.RankResult{
			ProviderID: item.ProviderID, Confidence: item.Confidence,
			Reasoning: item.Reasoning, SuggestedApproach: item.SuggestedApproach,
		})
	}
	return out, nil
}

func (r *Reasoner) SelectTools(ctx context.Context, query string, tools []models.ToolDescriptor, history []reasoner.ToolResultEntry) (reasoner.SelectToolsResult, error) {
	var sb strings.Builder
	sb.WriteString("Decide whether you have enough to answer, or which tools to call next. ")
	sb.WriteString(`Respond with ONLY a JSON object: {"done": bool, "answer": string, "tool_calls": [{"tool_name", "args"}]}.` + "\n\nQuery: ")
	sb.WriteString(query)
	sb.WriteString("\n\nTools:\n")
	for _, t := range tools {
		schemaBytes, _ := json.Marshal(t.InputSchema)
		fmt.Fprintf(&sb, "- %s: %s (schema: %s)\n", t.Name, t.Description, string(schemaBytes))
	}
	reasoner.WriteHistory(&sb, history)

	text, err := r.complete(ctx, sb.String())
	if err != nil {
		return reasoner.SelectToolsResult{}, err
	}
	result, err := reasoner.ParseSelectToolsResponse(extractJSON(text))
	if err != nil {
		return reasoner.SelectToolsResult{}, fmt.Errorf("gemini reasoner: %w", err)
	}
	return result, nil
}

// Synthesize issues a single GenerateContent call and delivers the whole
// response as one chunk over the streamed interface.
func (r *Reasoner) Synthesize(ctx context.Context, input reasoner.SynthesisInput) (<-chan reasoner.SynthesisChunk, error) {
	var sb strings.Builder
	sb.WriteString("Synthesize one coherent answer from these source results, noting any failures.\n\nQuery: ")
	sb.WriteString(input.Query)
	sb.WriteString("\n\n")
	for _, res := range input.Results {
		if res.Succeeded {
			fmt.Fprintf(&sb, "[%s] %s\n", res.ProviderID, res.Summary)
		} else {
			fmt.Fprintf(&sb, "[%s] FAILED: %s\n", res.ProviderID, res.ErrorMessage)
		}
	}

	out := make(chan reasoner.SynthesisChunk, 2)
	text, err := r.complete(ctx, sb.String())
	if err != nil {
		out <- reasoner.SynthesisChunk{Error: err, Done: true}
		close(out)
		return out, nil
	}
	out <- reasoner.SynthesisChunk{Text: text}
	out <- reasoner.SynthesisChunk{Done: true}
	close(out)
	return out, nil
}

func extractJSON(text string) string {
	start := strings.IndexAny(text, "[{")
	end := strings.LastIndexAny(text, "]}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
