package services

import (
	"context"
	"fmt"

	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
)

// RunDetail is the single-run projection: the run plus its steps ordered by
// sort order.
type RunDetail struct {
	Run   *models.Run       `json:"run"`
	Steps []*models.RunStep `json:"steps"`
}

// GetRun returns a run with its ordered steps.
func (e *Engine) GetRun(ctx context.Context, runID string) (*RunDetail, error) {
	run, err := e.persistence.RunRepository().RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	steps, err := e.persistence.RunRepository().StepsByRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run steps: %w", err)
	}

	return &RunDetail{Run: run, Steps: steps}, nil
}

// ListRuns returns run summaries, newest first, optionally filtered by flow
// and status.
func (e *Engine) ListRuns(ctx context.Context, opts persistence.ListRunsOptions) ([]*models.RunSummary, error) {
	return e.persistence.RunRepository().ListRuns(ctx, opts)
}

// MyActiveTasks returns the user's open steps ordered by planned deadline.
func (e *Engine) MyActiveTasks(ctx context.Context, userID string) ([]*models.RunStep, error) {
	return e.persistence.RunRepository().ActiveStepsByDoer(ctx, userID)
}

// MyHistory returns the user's closed steps, newest first.
func (e *Engine) MyHistory(ctx context.Context, userID string, limit int) ([]*models.RunStep, error) {
	return e.persistence.RunRepository().HistoryByDoer(ctx, userID, limit)
}

// GetFlow returns a flow definition for read-only display.
func (e *Engine) GetFlow(ctx context.Context, flowID string) (*models.Flow, error) {
	return e.persistence.FlowRepository().FlowByID(ctx, flowID)
}

// GetForm returns a form definition for read-only display.
func (e *Engine) GetForm(ctx context.Context, formID string) (*models.Form, error) {
	return e.persistence.FormRepository().FormByID(ctx, formID)
}

// StepMapping resolves the deterministic executable-step order for a flow,
// merging in any assignments already configured for the form.
func (e *Engine) StepMapping(ctx context.Context, flowID, formID string) ([]MappedStep, error) {
	flow, err := e.persistence.FlowRepository().FlowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	var assignments []*models.StepAssignment

	if formID != "" {
		assignments, err = e.persistence.FormRepository().StepAssignments(ctx, formID)
		if err != nil && !persistence.IsFormNotFound(err) {
			return nil, err
		}
	}

	return ResolveExecutableSteps(flow, assignments), nil
}

// HealthCheck checks the health of the persistence layer.
func (e *Engine) HealthCheck(ctx context.Context) (string, bool) {
	if e.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := e.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
