// Package orchestrator is the top-level request state machine: plan, fan
// out, synthesize, in either a synchronous process() or streaming stream()
// mode over the same underlying pipeline.
package orchestrator

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nexusquery/orchestrator/internal/detector"
	"github.com/nexusquery/orchestrator/internal/executor"
	orcherrors "github.com/nexusquery/orchestrator/internal/errors"
	"github.com/nexusquery/orchestrator/internal/planner"
	"github.com/nexusquery/orchestrator/internal/synthesis"
	"github.com/nexusquery/orchestrator/pkg/models"
)

// EventType is one of the nine closed stream event kinds.
type EventType string

const (
	EventStarted        EventType = "started"
	EventPlanning       EventType = "planning"
	EventPlanComplete   EventType = "plan_complete"
	EventSourceStart    EventType = "source_start"
	EventSourceComplete EventType = "source_complete"
	EventSynthesizing   EventType = "synthesizing"
	EventSynthesisChunk EventType = "synthesis_chunk"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is one entry in the request's event stream.
type Event struct {
	Type    EventType
	At      time.Time
	Message string
	Data    map[string]any
}

// Dependencies bundles the components the orchestrator wires together.
type Dependencies struct {
	Detector    *detector.Detector
	Planner     *planner.Planner
	Executor    *executor.Executor
	Synthesizer *synthesis.Synthesizer
	Providers   func() map[string]models.Provider // current configured provider set
}

// Orchestrator runs the full detect -> plan -> execute -> synthesize pipeline.
type Orchestrator struct {
	deps Dependencies
	seq  uint64
}

// New builds an Orchestrator over the given component set.
func New(deps Dependencies) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Process runs the pipeline to completion and returns a single response.
// It is a thin synchronous wrapper over Stream: every event is consumed and
// the final response assembled from plan_complete/source_complete/done data.
func (o *Orchestrator) Process(ctx context.Context, principalID string, request models.MultiSourceRequest) (models.MultiSourceResponse, error) {
	events := o.Stream(ctx, principalID, request)

	var (
		resp       models.MultiSourceResponse
		plan       models.Plan
		sourceResults []models.SourceQueryResult
		start      = time.Now()
		synthesized string
	)

	for ev := range events {
		switch ev.Type {
		case EventPlanComplete:
			if p, ok := ev.Data["plan"].(models.Plan); ok {
				plan = p
			}
		case EventSourceComplete:
			if r, ok := ev.Data["result"].(models.SourceQueryResult); ok {
				sourceResults = append(sourceResults, r)
			}
		case EventSynthesisChunk:
			if text, ok := ev.Data["content"].(string); ok {
				synthesized += text
			}
		case EventError:
			code, _ := ev.Data["code"].(string)
			message, _ := ev.Data["message"].(string)
			return models.MultiSourceResponse{}, orcherrors.New(orcherrors.Code(code), message)
		case EventDone:
			// no-op: loop will end naturally when the channel closes.
		}
	}

	var successful, failed []string
	for _, r := range sourceResults {
		if r.Succeeded {
			successful = append(successful, r.ProviderID)
		} else {
			failed = append(failed, r.ProviderID)
		}
	}

	resp = models.MultiSourceResponse{
		Response:          synthesized,
		SessionID:         request.SessionID,
		Status:            models.DeriveStatus(successful, failed),
		SourceResults:     sourceResults,
		SuccessfulSources: successful,
		FailedSources:     failed,
		TotalDurationMS:   time.Since(start).Milliseconds(),
		CompletedAt:       time.Now(),
	}
	if request.IncludePlan {
		resp.Plan = &plan
	}
	return resp, nil
}

// Stream runs the pipeline and returns a channel of progress events,
// following the nine-member event vocabulary. The channel is always
// closed: by a terminal `done` or `error` event, or when ctx is cancelled
// (which itself produces an `error` event before closing).
func (o *Orchestrator) Stream(ctx context.Context, principalID string, request models.MultiSourceRequest) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)
		start := time.Now()

		o.emit(out, EventStarted, "", nil)

		if ctx.Err() != nil {
			o.emitError(out, orcherrors.InternalError, "request cancelled before planning")
			return
		}

		o.emit(out, EventPlanning, "", nil)

		configured := o.deps.Providers()
		providerList := make([]models.Provider, 0, len(configured))
		for _, p := range configured {
			providerList = append(providerList, p)
		}

		relevance, err := o.deps.Detector.Detect(ctx, request.Query, providerList)
		if err != nil {
			o.emitError(out, orcherrors.CodeOf(err), err.Error())
			return
		}

		plan, err := o.deps.Planner.Plan(request.Query, request, relevance, configured, nil)
		if err != nil {
			o.emitError(out, orcherrors.CodeOf(err), err.Error())
			return
		}
		o.emit(out, EventPlanComplete, "", map[string]any{"plan": plan})

		legEvents := make(chan executor.LegEvent, 32)
		done := make(chan struct{})
		var results []models.SourceQueryResult
		go func() {
			defer close(done)
			results = o.deps.Executor.Run(ctx, principalID, plan, legEvents)
			close(legEvents)
		}()

		for legEvent := range legEvents {
			if legEvent.Kind == "started" {
				o.emit(out, EventSourceStart, "", map[string]any{"provider_id": legEvent.ProviderID})
			}
		}
		<-done

		for _, r := range results {
			o.emit(out, EventSourceComplete, "", map[string]any{
				"provider_id": r.ProviderID,
				"succeeded":   r.Succeeded,
				"duration_ms": r.DurationMS,
				"result":      r,
			})
		}

		if ctx.Err() != nil {
			o.emitError(out, orcherrors.InternalError, "request cancelled during fan-out")
			return
		}

		o.emit(out, EventSynthesizing, "", nil)
		chunks := o.deps.Synthesizer.Synthesize(ctx, request.Query, results)
		for chunk := range chunks {
			if chunk.Text != "" {
				o.emit(out, EventSynthesisChunk, "", map[string]any{"content": chunk.Text})
			}
		}

		o.emit(out, EventDone, "", map[string]any{"total_duration_ms": time.Since(start).Milliseconds()})
	}()

	return out
}

func (o *Orchestrator) emit(out chan<- Event, t EventType, message string, data map[string]any) {
	atomic.AddUint64(&o.seq, 1)
	out <- Event{Type: t, At: time.Now(), Message: message, Data: data}
}

func (o *Orchestrator) emitError(out chan<- Event, code orcherrors.Code, message string) {
	o.emit(out, EventError, message, map[string]any{"code": string(code), "message": message})
}
