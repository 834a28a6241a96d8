// Package anthropic implements reasoner.Reasoner over Anthropic's Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/nexusquery/orchestrator/internal/infra"
	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Config parameterizes the Anthropic-backed reasoner.
type Config struct {
	APIKey       string
	DefaultModel string
	MaxRetries   int
	RetryDelay   time.Duration
}

// Reasoner implements reasoner.Reasoner against Claude.
type Reasoner struct {
	client       anthropic.Client
	defaultModel string
	maxRetries   int
	retryDelay   time.Duration
}

// New builds an Anthropic-backed reasoner.
func New(cfg Config) *Reasoner {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-sonnet-4-20250514"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Reasoner{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		defaultModel: cfg.DefaultModel,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}
}

func (r *Reasoner) Name() string { return "anthropic" }

// Rank asks Claude to score each candidate's relevance to query, parsing a
// JSON array response. Callers should treat a parse failure as "no
// confident ranking" rather than a hard error upstream.
func (r *Reasoner) Rank(ctx context.Context, query string, candidates []reasoner.RankCandidate) ([]reasoner.RankResult, error) {
	var sb strings.Builder
	sb.WriteString("You are ranking data sources by relevance to a user query. ")
	sb.WriteString("Respond with ONLY a JSON array, one object per source, each with ")
	sb.WriteString(`"provider_id", "confidence" (0.0-1.0), "reasoning", and "suggested_approach".`)
	sb.WriteString("\n\nQuery: ")
	sb.WriteString(query)
	sb.WriteString("\n\nSources:\n")
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", c.ProviderID, c.DisplayName, c.Description)
	}

	text, err := r.completeOnce(ctx, sb.String())
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
		return nil, fmt.Errorf("anthropic reasoner: could not parse ranking response: %w", err)
	}

	results := make([]reasoner.RankResult, 0, len(raw))
	for _, item := range raw {
		results = append(results, reasoner.RankResult{
			ProviderID:        item.ProviderID,
			Confidence:        item.Confidence,
			Reasoning:         item.Reasoning,
			SuggestedApproach: item.SuggestedApproach,
		})
	}
	return results, nil
}

// SelectTools asks Claude which tools (with arguments) to invoke next
// against a single provider's tool set, given a bounded window of what has
// already been called and returned this leg, or to declare it has enough to
// answer.
func (r *Reasoner) SelectTools(ctx context.Context, query string, tools []models.ToolDescriptor, history []reasoner.ToolResultEntry) (reasoner.SelectToolsResult, error) {
	var sb strings.Builder
	sb.WriteString("Given the query, the available tools, and any tools already called this turn, decide whether you ")
	sb.WriteString("have enough to answer or need to call more tools. ")
	sb.WriteString(`Respond with ONLY a JSON object: {"done": bool, "answer": string, "tool_calls": [{"tool_name", "args"}]}. `)
	sb.WriteString(`Set "done" true and fill "answer" with the final answer once you have enough; otherwise leave ` +
		`"answer" empty and list the next tool_calls in call order.` + "\n\nQuery: ")
	sb.WriteString(query)
	sb.WriteString("\n\nTools:\n")
	for _, t := range tools {
		schemaBytes, _ := json.Marshal(t.InputSchema)
		fmt.Fprintf(&sb, "- %s: %s (schema: %s)\n", t.Name, t.Description, string(schemaBytes))
	}
	reasoner.WriteHistory(&sb, history)

	text, err := r.completeOnce(ctx, sb.String())
	if err != nil {
		return reasoner.SelectToolsResult{}, err
	}

	result, err := reasoner.ParseSelectToolsResponse(extractJSON(text))
	if err != nil {
		return reasoner.SelectToolsResult{}, fmt.Errorf("anthropic reasoner: %w", err)
	}
	return result, nil
}

// Synthesize streams a merged response over all source results.
func (r *Reasoner) Synthesize(ctx context.Context, input reasoner.SynthesisInput) (<-chan reasoner.SynthesisChunk, error) {
	var sb strings.Builder
	sb.WriteString("Synthesize a single coherent answer to the user's query from the following source results. ")
	sb.WriteString("Note any sources that failed or disagree.\n\nQuery: ")
	sb.WriteString(input.Query)
	sb.WriteString("\n\n")
	for _, res := range input.Results {
		if res.Succeeded {
			fmt.Fprintf(&sb, "[%s] %s\n", res.ProviderID, res.Summary)
		} else {
			fmt.Fprintf(&sb, "[%s] FAILED: %s\n", res.ProviderID, res.ErrorMessage)
		}
	}

	stream := r.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.defaultModel),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	})

	out := make(chan reasoner.SynthesisChunk)
	go func() {
		defer close(out)
		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				out <- reasoner.SynthesisChunk{Error: err, Done: true}
				return
			}
			switch delta := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta.Delta.Text != "" {
					select {
					case out <- reasoner.SynthesisChunk{Text: delta.Delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- reasoner.SynthesisChunk{Error: err, Done: true}
			return
		}
		out <- reasoner.SynthesisChunk{Done: true}
	}()
	return out, nil
}

// completeOnce issues a single non-streamed request and returns its
// concatenated text content, retrying transient failures with linear backoff.
func (r *Reasoner) completeOnce(ctx context.Context, prompt string) (string, error) {
	cfg := &infra.RetryConfig{
		MaxAttempts:  r.maxRetries - 1,
		InitialDelay: r.retryDelay,
		MaxDelay:     r.retryDelay * time.Duration(r.maxRetries),
		Strategy:     infra.BackoffLinear,
	}
	text, result := infra.Retry(ctx, cfg, func(ctx context.Context) (string, error) {
		message, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(r.defaultModel),
			MaxTokens: 1024,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, block := range message.Content {
			if text, ok := block.AsAny().(anthropic.TextBlock); ok {
				sb.WriteString(text.Text)
			}
		}
		return sb.String(), nil
	})
	return text, result.LastError
}

// extractJSON trims any leading/trailing prose around a JSON array or
// object — models asked for "only JSON" sometimes wrap it in prose anyway.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "[{")
	end := strings.LastIndexAny(text, "]}")
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
