package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/runline/runline/pkg/events"
	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/otelhelper"
	"github.com/runline/runline/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// SubmitRequest carries one form submission.
type SubmitRequest struct {
	FormID      string
	Title       string
	Data        map[string]any
	SubmitterID string
}

// Submit validates a form submission and instantiates a run: one run row plus
// one step row per step assignment, all inside a single transaction. The
// first mapped step is activated immediately; the rest wait for the walk to
// reach them.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.submit",
		attribute.String(otelhelper.FormIDKey, req.FormID))
	defer span.End()

	var (
		run       *models.Run
		firstStep *models.RunStep
	)

	err := e.persistence.Transaction(ctx, func(ctx context.Context, tx persistence.UpdateTx) error {
		form, err := tx.FormByID(ctx, req.FormID)
		if err != nil {
			return err
		}

		if form.Status != models.FormStatusActive {
			return &EngineError{Op: "Submit", Err: ErrFormInactive}
		}

		err = validateFormData(form.Fields, req.Data)
		if err != nil {
			return err
		}

		assignments, err := tx.StepAssignments(ctx, req.FormID)
		if err != nil {
			return err
		}

		if len(assignments) == 0 {
			return &EngineError{Op: "Submit", Err: ErrNoMappedSteps}
		}

		flow, err := tx.FlowByID(ctx, form.FlowID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		runID, err := uuid.NewV7()
		if err != nil {
			return err
		}

		run = &models.Run{
			ID:            runID.String(),
			FlowID:        form.FlowID,
			FormID:        form.ID,
			Title:         req.Title,
			FormData:      req.Data,
			Status:        models.RunStatusRunning,
			InitiatedBy:   req.SubmitterID,
			CurrentNodeID: assignments[0].NodeID,
			StartedAt:     now,
		}

		err = tx.CreateRun(ctx, run)
		if err != nil {
			return err
		}

		steps := make([]*models.RunStep, 0, len(assignments))

		for i, assignment := range assignments {
			stepID, err := uuid.NewV7()
			if err != nil {
				return err
			}

			step := &models.RunStep{
				ID:              stepID.String(),
				RunID:           run.ID,
				NodeID:          assignment.NodeID,
				DoerID:          assignment.DoerID,
				Status:          models.RunStepStatusWaiting,
				DurationMinutes: assignment.DurationMinutes,
				SortOrder:       assignment.SortOrder,
			}

			if node := flow.Node(assignment.NodeID); node != nil {
				step.StepName = node.Label
				step.StepCode = node.StepCode
			}

			// Only the first assignment has been reached by the walk.
			if i == 0 {
				step.Activate(now)
				firstStep = step
			}

			steps = append(steps, step)
		}

		return tx.CreateRunSteps(ctx, steps)
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	span.SetAttributes(attribute.String(otelhelper.RunIDKey, run.ID))

	e.publish(ctx, run.ID, events.RunStarted{
		BaseEvent:   e.baseEvent(events.RunStartedEvent, run.ID),
		FlowID:      run.FlowID,
		FormID:      run.FormID,
		InitiatedBy: run.InitiatedBy,
	})

	e.publish(ctx, run.ID, events.StepActivated{
		BaseEvent: e.baseEvent(events.StepActivatedEvent, run.ID),
		StepID:    firstStep.ID,
		NodeID:    firstStep.NodeID,
		DoerID:    firstStep.DoerID,
		PlannedAt: firstStep.PlannedAt,
	})

	return run.ID, nil
}
