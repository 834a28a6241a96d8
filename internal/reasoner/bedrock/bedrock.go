// Package bedrock implements reasoner.Reasoner over AWS Bedrock's Converse API.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// Config parameterizes the Bedrock-backed reasoner.
type Config struct {
	Region       string
	DefaultModel string
}

// Reasoner implements reasoner.Reasoner against AWS Bedrock.
type Reasoner struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// New builds a Bedrock-backed reasoner using the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Reasoner, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock reasoner: loading AWS config: %w", err)
	}
	return &Reasoner{client: bedrockruntime.NewFromConfig(awsCfg), defaultModel: cfg.DefaultModel}, nil
}

func (r *Reasoner) Name() string { return "bedrock" }

func (r *Reasoner) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(r.defaultModel),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
	})
	if err != nil {
		return "", err
	}
	output, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("bedrock reasoner: unexpected response shape")
	}
	var sb strings.Builder
	for _, block := range output.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}
	return sb.String(), nil
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
		return nil, fmt.Errorf("bedrock reasoner: could not parse ranking response: %w", err)
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
		return reasoner.SelectToolsResult{}, fmt.Errorf("bedrock reasoner: %w", err)
	}
	return result, nil
}

// Synthesize issues a single Converse call and delivers the whole response
// as one chunk; Bedrock's ConverseStream is reserved for the agent runtime's
// own chat loop, not this shorter-lived synthesis path.
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
