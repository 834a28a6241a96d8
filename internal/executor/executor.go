// Package executor fans a Plan out across providers with bounded
// concurrency, running each provider's tool-use loop independently and
// packaging every outcome — success or failure — into a SourceQueryResult.
package executor

import (
	"context"
	"sync"
	"time"

	gateway "github.com/nexusquery/orchestrator/internal/toolgateway"
	"github.com/nexusquery/orchestrator/internal/infra"
	"github.com/nexusquery/orchestrator/internal/reasoner"
	"github.com/nexusquery/orchestrator/pkg/models"

	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
)

// Config tunes concurrency and the per-leg tool-use loop.
type Config struct {
	MaxConcurrentLegs int
	MaxIterations     int
	TotalDeadline     time.Duration
}

// DefaultConfig matches the executor design's defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrentLegs: 3, MaxIterations: 6, TotalDeadline: 30 * time.Second}
}

// LegEvent is emitted as each provider leg progresses, for the orchestrator
// to forward as streaming events (C11).
type LegEvent struct {
	ProviderID string
	Kind       string // "started", "tool_call", "tool_result", "completed", "failed"
	Detail     string
}

// Executor runs a Plan's legs against the gateway.
type Executor struct {
	gw       *gateway.Gateway
	reasoner reasoner.Reasoner
	config   Config
}

// New builds an Executor.
func New(gw *gateway.Gateway, r reasoner.Reasoner, config Config) *Executor {
	if config.MaxConcurrentLegs <= 0 {
		config.MaxConcurrentLegs = 3
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 6
	}
	return &Executor{gw: gw, reasoner: r, config: config}
}

// Run executes every provider in plan.Chosen concurrently (bounded by
// MaxConcurrentLegs), returning one SourceQueryResult per provider in plan
// order. events, if non-nil, receives progress notifications; it is never
// closed by Run (the caller owns its lifecycle).
func (e *Executor) Run(ctx context.Context, principalID string, plan models.Plan, events chan<- LegEvent) []models.SourceQueryResult {
	deadlineCtx := ctx
	if e.config.TotalDeadline > 0 {
		var cancel context.CancelFunc
		deadlineCtx, cancel = context.WithTimeout(ctx, e.config.TotalDeadline)
		defer cancel()
	}

	sem := infra.NewSemaphore(int64(e.config.MaxConcurrentLegs))

	results := make([]models.SourceQueryResult, len(plan.Chosen))
	var wg sync.WaitGroup

	for i, providerID := range plan.Chosen {
		i, providerID := i, providerID
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(deadlineCtx, 1); err != nil {
				results[i] = failedResult(providerID, orcherrors.Wrap(orcherrors.InternalError, "deadline", err))
				emit(events, LegEvent{ProviderID: providerID, Kind: "failed", Detail: "deadline"})
				return
			}
			defer sem.Release(1)

			emit(events, LegEvent{ProviderID: providerID, Kind: "started"})
			result := e.runLeg(deadlineCtx, principalID, providerID, plan.Query, events)
			results[i] = result
			if result.Succeeded {
				emit(events, LegEvent{ProviderID: providerID, Kind: "completed"})
			} else {
				emit(events, LegEvent{ProviderID: providerID, Kind: "failed", Detail: result.ErrorMessage})
			}
		}()
	}

	wg.Wait()
	return results
}

func (e *Executor) runLeg(ctx context.Context, principalID, providerID, query string, events chan<- LegEvent) models.SourceQueryResult {
	start := time.Now()

	tools, err := e.gw.ListTools(ctx, principalID, providerID)
	if err != nil {
		return failedResult(providerID, err)
	}

	var toolsCalled []string
	var lastFingerprint string
	consecutiveSameFailures := 0
	var lastSummary string
	var history []reasoner.ToolResultEntry

	for iteration := 0; iteration < e.config.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return failedResultWithDuration(providerID, orcherrors.Wrap(orcherrors.InternalError, "deadline", ctx.Err()), time.Since(start), toolsCalled)
		}

		decision, err := e.reasoner.SelectTools(ctx, query, tools, reasoner.BoundHistory(history, reasoner.MaxHistoryEntries))
		if err != nil {
			return failedResultWithDuration(providerID, orcherrors.Wrap(orcherrors.ToolExecutionError, "tool selection failed", err), time.Since(start), toolsCalled)
		}

		if decision.Done {
			// Terminal: the reasoner has synthesized its per-leg answer from
			// the tool-call history, falling back to the last raw tool
			// payload if it returned no answer text of its own.
			summary := decision.Answer
			if summary == "" {
				summary = lastSummary
			}
			return models.SourceQueryResult{
				ProviderID:  providerID,
				Succeeded:   true,
				Summary:     summary,
				ToolsCalled: toolsCalled,
				DurationMS:  time.Since(start).Milliseconds(),
				CompletedAt: time.Now(),
			}
		}

		for _, choice := range decision.Choices {
			emit(events, LegEvent{ProviderID: providerID, Kind: "tool_call", Detail: choice.ToolName})

			res, err := e.gw.CallTool(ctx, principalID, providerID, choice.ToolName, choice.Args)
			toolsCalled = append(toolsCalled, choice.ToolName)

			if err != nil {
				history = append(history, reasoner.ToolResultEntry{ToolName: choice.ToolName, Args: choice.Args, Err: err.Error()})

				if orcherrors.IsCode(err, orcherrors.CircuitOpen) {
					// Short-circuit the leg: the provider is unhealthy.
					return failedResultWithDuration(providerID, err, time.Since(start), toolsCalled)
				}
				fp := choice.ToolName
				if fp == lastFingerprint {
					consecutiveSameFailures++
				} else {
					consecutiveSameFailures = 1
					lastFingerprint = fp
				}
				if consecutiveSameFailures >= 2 {
					return failedResultWithDuration(providerID, err, time.Since(start), toolsCalled)
				}
				continue
			}
			consecutiveSameFailures = 0

			emit(events, LegEvent{ProviderID: providerID, Kind: "tool_result", Detail: choice.ToolName})
			history = append(history, reasoner.ToolResultEntry{ToolName: choice.ToolName, Args: choice.Args, Result: res.Payload})
			if summary, ok := res.Payload.(string); ok {
				lastSummary = summary
			}
		}
	}

	return failedResultWithDuration(providerID, orcherrors.New(orcherrors.InternalError, "exceeded max iterations without a terminal result"), time.Since(start), toolsCalled)
}

func failedResult(providerID string, err error) models.SourceQueryResult {
	return failedResultWithDuration(providerID, err, 0, nil)
}

func failedResultWithDuration(providerID string, err error, duration time.Duration, toolsCalled []string) models.SourceQueryResult {
	code := orcherrors.CodeOf(err)
	return models.SourceQueryResult{
		ProviderID:   providerID,
		Succeeded:    false,
		ToolsCalled:  toolsCalled,
		DurationMS:   duration.Milliseconds(),
		CompletedAt:  time.Now(),
		ErrorCode:    string(code),
		ErrorMessage: err.Error(),
	}
}

func emit(events chan<- LegEvent, e LegEvent) {
	if events == nil {
		return
	}
	select {
	case events <- e:
	default:
	}
}
