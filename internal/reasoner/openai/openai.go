// Package openai implements reasoner.Reasoner over OpenAI's chat completion API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Config parameterizes the OpenAI-backed reasoner.
type Config struct {
	APIKey       string
	DefaultModel string
}

// Reasoner implements reasoner.Reasoner against OpenAI's chat API.
type Reasoner struct {
	client       *openai.Client
	defaultModel string
}

// New builds an OpenAI-backed reasoner.
func New(cfg Config) *Reasoner {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openai.GPT4o
	}
	return &Reasoner{client: openai.NewClient(cfg.APIKey), defaultModel: cfg.DefaultModel}
}

func (r *Reasoner) Name() string { return "openai" }

func (r *Reasoner) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.defaultModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai reasoner: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
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
		return nil, fmt.Errorf("openai reasoner: could not parse ranking response: %w", err)
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
		return reasoner.SelectToolsResult{}, fmt.Errorf("openai reasoner: %w", err)
	}
	return result, nil
}

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

	stream, err := r.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     r.defaultModel,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: sb.String()}},
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan reasoner.SynthesisChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					out <- reasoner.SynthesisChunk{Done: true}
					return
				}
				out <- reasoner.SynthesisChunk{Error: err, Done: true}
				return
			}
			if len(resp.Choices) > 0 {
				select {
				case out <- reasoner.SynthesisChunk{Text: resp.Choices[0].Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
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
