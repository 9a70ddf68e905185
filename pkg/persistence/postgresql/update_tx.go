package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
)

// UpdateTx binds reads and writes to a single database transaction. It is
// handed to state-changing operations by Persistence.Transaction and is not
// safe for use after the transaction ends.
type UpdateTx struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// FlowByID returns a flow within the transaction.
func (t *UpdateTx) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	return flowByID(ctx, t.tx, t.logger, id)
}

// FormByID returns a form within the transaction.
func (t *UpdateTx) FormByID(ctx context.Context, id string) (*models.Form, error) {
	return formByID(ctx, t.tx, t.logger, id)
}

// StepAssignments returns a form's step mapping within the transaction.
func (t *UpdateTx) StepAssignments(ctx context.Context, formID string) ([]*models.StepAssignment, error) {
	return stepAssignments(ctx, t.tx, t.logger, formID)
}

// CreateRun inserts a new run row.
func (t *UpdateTx) CreateRun(ctx context.Context, run *models.Run) error {
	formData, err := json.Marshal(run.FormData)
	if err != nil {
		return fmt.Errorf("failed to marshal form data: %w", err)
	}

	query := `
		INSERT INTO runs (id, flow_id, form_id, title, form_data,
status, initiated_by, current_node_id, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = t.tx.ExecContext(ctx, query, run.ID, run.FlowID, run.FormID, run.Title,
		formData, run.Status, run.InitiatedBy, run.CurrentNodeID, run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// CreateRunSteps inserts the run's step rows in bulk.
func (t *UpdateTx) CreateRunSteps(ctx context.Context, steps []*models.RunStep) error {
	query := `
		INSERT INTO run_steps (id, run_id, node_id, step_name, step_code, doer_id,
status, duration_minutes, planned_at, started_at, actual_at, sort_order, comment, attachment_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for _, step := range steps {
		_, err := t.tx.ExecContext(ctx, query, step.ID, step.RunID, step.NodeID,
			step.StepName, step.StepCode, step.DoerID, step.Status, step.DurationMinutes,
			step.PlannedAt, step.StartedAt, step.ActualAt, step.SortOrder,
			step.Comment, step.AttachmentPath)
		if err != nil {
			return fmt.Errorf("failed to insert run step for node %s: %w", step.NodeID, err)
		}
	}

	return nil
}

// RunByID returns a run within the transaction.
func (t *UpdateTx) RunByID(ctx context.Context, id string) (*models.Run, error) {
	return runByID(ctx, t.tx, id)
}

// StepByID returns a run step within the transaction, without locking it.
func (t *UpdateTx) StepByID(ctx context.Context, id string) (*models.RunStep, error) {
	return stepByID(ctx, t.tx, id, false)
}

// StepForUpdate reads a step with SELECT ... FOR UPDATE, blocking concurrent
// transactions targeting the same row until this transaction ends.
func (t *UpdateTx) StepForUpdate(ctx context.Context, id string) (*models.RunStep, error) {
	return stepByID(ctx, t.tx, id, true)
}

// StepByRunAndNode returns the step materialized for a node within a run.
func (t *UpdateTx) StepByRunAndNode(ctx context.Context, runID, nodeID string) (*models.RunStep, error) {
	query := `SELECT` + stepColumns + `FROM run_steps WHERE run_id = $1 AND node_id = $2`

	step, err := scanStep(t.tx.QueryRowContext(ctx, query, runID, nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, fmt.Errorf("failed to scan run step: %w", err)
	}

	return step, nil
}

// UpdateRun writes a run's mutable fields.
func (t *UpdateTx) UpdateRun(ctx context.Context, run *models.Run) error {
	query := `
		UPDATE runs SET
			status = $2,
			current_node_id = $3,
			completed_at = $4
		WHERE id = $1
	`

	result, err := t.tx.ExecContext(ctx, query, run.ID, run.Status, run.CurrentNodeID, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewRunError("UpdateRun", run.ID, persistence.ErrRunNotFound)
	}

	return nil
}

// UpdateStep writes a step's mutable fields.
func (t *UpdateTx) UpdateStep(ctx context.Context, step *models.RunStep) error {
	query := `
		UPDATE run_steps SET
			status = $2,
			planned_at = $3,
			started_at = $4,
			actual_at = $5,
			comment = $6,
			attachment_path = $7
		WHERE id = $1
	`

	result, err := t.tx.ExecContext(ctx, query, step.ID, step.Status, step.PlannedAt,
		step.StartedAt, step.ActualAt, step.Comment, step.AttachmentPath)
	if err != nil {
		return fmt.Errorf("failed to update run step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewStepError("UpdateStep", step.ID, persistence.ErrStepNotFound)
	}

	return nil
}
