package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/runline/runline/pkg/eventbus"
	"github.com/runline/runline/pkg/events"
	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/otelhelper"
	"github.com/runline/runline/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/runline/runline/pkg/services"

// Engine drives run execution: instantiating runs from form submissions,
// starting and completing steps, resolving branches and advancing or pausing
// runs. All state transitions happen inside storage transactions; the engine
// itself is stateless between requests.
type Engine struct {
	persistence persistence.Persistence
	authorizer  Authorizer
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewEngine creates an execution engine. The publisher may be nil, in which
// case lifecycle events are not emitted.
func NewEngine(p persistence.Persistence, authorizer Authorizer, publisher eventbus.EventPublisher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		persistence: p,
		authorizer:  authorizer,
		publisher:   publisher,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
}

// publish emits a lifecycle event best-effort, after the transaction that
// produced it has committed. A broken bus never fails a request.
func (e *Engine) publish(ctx context.Context, runID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, runID, event)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "run_id", runID, "error", err)
	}
}

func (e *Engine) baseEvent(eventType events.EventType, runID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

// StartStep moves a pending step to in progress. Starting is optional
// bookkeeping, not a gate: completing a pending step directly is legal.
// Calling StartStep on a step already in progress is a no-op success.
func (e *Engine) StartStep(ctx context.Context, stepID, requesterID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start_step",
		attribute.String(otelhelper.StepIDKey, stepID))
	defer span.End()

	var started *models.RunStep

	err := e.persistence.Transaction(ctx, func(ctx context.Context, tx persistence.UpdateTx) error {
		step, err := tx.StepByID(ctx, stepID)
		if err != nil {
			return err
		}

		if step.DoerID != requesterID {
			return &EngineError{Op: "StartStep", StepID: stepID, Err: ErrNotAssignee}
		}

		if !step.IsOpen() {
			return &EngineError{Op: "StartStep", StepID: stepID, Err: ErrStepNotOpen}
		}

		if step.Status == models.RunStepStatusInProgress {
			return nil
		}

		now := time.Now().UTC()
		step.Status = models.RunStepStatusInProgress

		if step.StartedAt == nil {
			step.StartedAt = &now
		}

		err = tx.UpdateStep(ctx, step)
		if err != nil {
			return err
		}

		started = step

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if started != nil {
		event := events.StepStarted{
			BaseEvent: e.baseEvent(events.StepStartedEvent, started.RunID),
			StepID:    started.ID,
			DoerID:    started.DoerID,
		}
		e.publish(ctx, started.RunID, event)
	}

	return nil
}

// CompleteStepRequest carries the inputs of a step completion.
type CompleteStepRequest struct {
	StepID         string
	Comment        string
	AttachmentPath string
	Decision       string // Branch outcome for decision nodes; matched case-insensitively
}

// CompleteResult reports the outcome of a step completion.
type CompleteResult struct {
	Completed        bool   `json:"completed"`
	AlreadyCompleted bool   `json:"already_completed,omitempty"`
	RunCompleted     bool   `json:"run_completed"`
	NextNodeID       string `json:"next_node_id,omitempty"`
}

// CompleteStep closes the step and advances the run along the resolved
// branch. Everything runs in one transaction holding a row lock on the step,
// which serializes concurrent completion attempts and makes the
// already-completed short circuit race-free.
//
// A failed branch resolution is not a rollback: the step's completion and the
// run's transition to paused are committed, and the branch error is returned
// alongside the result so the caller sees both the completion and the stall.
func (e *Engine) CompleteStep(ctx context.Context, req CompleteStepRequest, requesterID string) (*CompleteResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.complete_step",
		attribute.String(otelhelper.StepIDKey, req.StepID))
	defer span.End()

	result := &CompleteResult{}

	var (
		runID     string
		branchErr error
		emit      []eventbus.Event
	)

	err := e.persistence.Transaction(ctx, func(ctx context.Context, tx persistence.UpdateTx) error {
		step, err := tx.StepForUpdate(ctx, req.StepID)
		if err != nil {
			return err
		}

		run, err := tx.RunByID(ctx, step.RunID)
		if err != nil {
			return err
		}

		runID = run.ID
		span.SetAttributes(attribute.String(otelhelper.RunIDKey, run.ID))

		if step.DoerID != requesterID {
			return &EngineError{Op: "CompleteStep", StepID: step.ID, Err: ErrNotAssignee}
		}

		// Duplicate submissions and double-clicks race the lock; the loser
		// finds the step already completed and reports success unchanged.
		if step.Status == models.RunStepStatusCompleted {
			result.Completed = true
			result.AlreadyCompleted = true
			result.RunCompleted = run.Status == models.RunStatusCompleted

			return nil
		}

		if !step.IsOpen() {
			return &EngineError{Op: "CompleteStep", StepID: step.ID, Err: ErrStepNotOpen}
		}

		if run.Status != models.RunStatusRunning {
			return &EngineError{Op: "CompleteStep", RunID: run.ID, Err: ErrRunNotRunning}
		}

		flow, err := tx.FlowByID(ctx, run.FlowID)
		if err != nil {
			return err
		}

		if node := flow.Node(step.NodeID); node != nil {
			if node.Rules.CommentRequired && strings.TrimSpace(req.Comment) == "" {
				return &EngineError{Op: "CompleteStep", StepID: step.ID, Err: ErrCommentRequired}
			}

			if node.Rules.AttachmentRequired && req.AttachmentPath == "" && step.AttachmentPath == "" {
				return &EngineError{Op: "CompleteStep", StepID: step.ID, Err: ErrAttachmentRequired}
			}
		}

		now := time.Now().UTC()

		step.Status = models.RunStepStatusCompleted
		step.ActualAt = &now

		if step.StartedAt == nil {
			step.StartedAt = &now
		}

		if req.Comment != "" {
			step.Comment = req.Comment
		}

		if req.AttachmentPath != "" {
			step.AttachmentPath = req.AttachmentPath
		}

		err = tx.UpdateStep(ctx, step)
		if err != nil {
			return err
		}

		result.Completed = true

		emit = append(emit, events.StepCompleted{
			BaseEvent: e.baseEvent(events.StepCompletedEvent, run.ID),
			StepID:    step.ID,
			NodeID:    step.NodeID,
			DoerID:    step.DoerID,
			Decision:  req.Decision,
		})

		pause := func(reason error) error {
			run.Status = models.RunStatusPaused

			err := tx.UpdateRun(ctx, run)
			if err != nil {
				return err
			}

			branchErr = &EngineError{Op: "CompleteStep", RunID: run.ID, Err: reason}
			emit = append(emit, events.RunPaused{
				BaseEvent: e.baseEvent(events.RunPausedEvent, run.ID),
				NodeID:    step.NodeID,
				Reason:    reason.Error(),
			})

			return nil
		}

		next, resolveErr := resolveBranch(flow, step.NodeID, req.Decision)
		if resolveErr != nil {
			return pause(resolveErr)
		}

		if next.IsEnd() {
			run.Status = models.RunStatusCompleted
			run.CompletedAt = &now
			run.CurrentNodeID = next.ID

			err = tx.UpdateRun(ctx, run)
			if err != nil {
				return err
			}

			result.RunCompleted = true

			emit = append(emit, events.RunCompleted{
				BaseEvent:   e.baseEvent(events.RunCompletedEvent, run.ID),
				CompletedAt: now,
			})

			return nil
		}

		// The instantiator created a step for every mapped node; a missing
		// record means the graph changed under a live run.
		nextStep, err := tx.StepByRunAndNode(ctx, run.ID, next.ID)
		if err != nil {
			if persistence.IsStepNotFound(err) {
				return pause(ErrNextStepNotFound)
			}

			return err
		}

		nextStep.Activate(now)

		err = tx.UpdateStep(ctx, nextStep)
		if err != nil {
			return err
		}

		run.CurrentNodeID = next.ID

		err = tx.UpdateRun(ctx, run)
		if err != nil {
			return err
		}

		result.NextNodeID = next.ID

		emit = append(emit, events.StepActivated{
			BaseEvent: e.baseEvent(events.StepActivatedEvent, run.ID),
			StepID:    nextStep.ID,
			NodeID:    nextStep.NodeID,
			DoerID:    nextStep.DoerID,
			PlannedAt: nextStep.PlannedAt,
		})

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	for _, event := range emit {
		e.publish(ctx, runID, event)
	}

	if branchErr != nil {
		otelhelper.SetError(span, branchErr)

		return result, branchErr
	}

	return result, nil
}

// resolveBranch picks the successor node after completing nodeID. A single
// outgoing edge is followed unconditionally; multiple edges require exactly
// one condition match. The engine never guesses: anything else is an error
// the caller turns into a pause.
func resolveBranch(flow *models.Flow, nodeID, decision string) (*models.FlowNode, error) {
	edges := flow.EdgesFrom(nodeID)

	var chosen *models.FlowEdge

	switch len(edges) {
	case 0:
		return nil, ErrNoNextStep
	case 1:
		chosen = edges[0]
	default:
		matched := flow.MatchEdges(nodeID, decision)

		switch len(matched) {
		case 0:
			return nil, ErrNoNextStep
		case 1:
			chosen = matched[0]
		default:
			return nil, ErrAmbiguousBranch
		}
	}

	next := flow.Node(chosen.TargetNodeID)
	if next == nil {
		return nil, ErrNoNextStep
	}

	return next, nil
}

// CancelRun terminates a running or paused run. Step history is preserved
// as-is; cancellation is a status transition, not a deletion.
func (e *Engine) CancelRun(ctx context.Context, runID, requesterID string) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.cancel_run",
		attribute.String(otelhelper.RunIDKey, runID))
	defer span.End()

	if e.authorizer == nil || !e.authorizer.Allow(ctx, requesterID, ActionCancelRun) {
		err := &EngineError{Op: "CancelRun", RunID: runID, Err: ErrNotPermitted}
		otelhelper.SetError(span, err)

		return err
	}

	err := e.persistence.Transaction(ctx, func(ctx context.Context, tx persistence.UpdateTx) error {
		run, err := tx.RunByID(ctx, runID)
		if err != nil {
			return err
		}

		if !run.IsOpen() {
			return &EngineError{Op: "CancelRun", RunID: runID, Err: ErrRunClosed}
		}

		run.Status = models.RunStatusCancelled

		return tx.UpdateRun(ctx, run)
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	event := events.RunCancelled{
		BaseEvent:   e.baseEvent(events.RunCancelledEvent, runID),
		CancelledBy: requesterID,
	}
	e.publish(ctx, runID, event)

	return nil
}
