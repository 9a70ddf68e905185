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

const defaultListLimit = 50

// RunRepository handles the read side of run state. All writes go through the
// transaction-bound UpdateTx.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = `
			id
		  , flow_id
		  , form_id
		  , title
		  , form_data
		  , status
		  , initiated_by
		  , current_node_id
		  , started_at
		  , completed_at
`

const stepColumns = `
			id
		  , run_id
		  , node_id
		  , step_name
		  , step_code
		  , doer_id
		  , status
		  , duration_minutes
		  , planned_at
		  , started_at
		  , actual_at
		  , sort_order
		  , comment
		  , attachment_path
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	run := &models.Run{}

	var formData []byte

	err := row.Scan(&run.ID, &run.FlowID, &run.FormID, &run.Title, &formData,
		&run.Status, &run.InitiatedBy, &run.CurrentNodeID, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}

	if len(formData) > 0 {
		err = json.Unmarshal(formData, &run.FormData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal form data: %w", err)
		}
	}

	return run, nil
}

func scanStep(row rowScanner) (*models.RunStep, error) {
	step := &models.RunStep{}

	err := row.Scan(&step.ID, &step.RunID, &step.NodeID, &step.StepName, &step.StepCode,
		&step.DoerID, &step.Status, &step.DurationMinutes, &step.PlannedAt,
		&step.StartedAt, &step.ActualAt, &step.SortOrder, &step.Comment, &step.AttachmentPath)
	if err != nil {
		return nil, err
	}

	return step, nil
}

func runByID(ctx context.Context, q querier, id string) (*models.Run, error) {
	query := `SELECT` + runColumns + `FROM runs WHERE id = $1`

	run, err := scanRun(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrRunNotFound
		}

		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return run, nil
}

func stepByID(ctx context.Context, q querier, id string, forUpdate bool) (*models.RunStep, error) {
	query := `SELECT` + stepColumns + `FROM run_steps WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	step, err := scanStep(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrStepNotFound
		}

		return nil, fmt.Errorf("failed to scan run step: %w", err)
	}

	return step, nil
}

func querySteps(ctx context.Context, q querier, logger *slog.Logger, query string, args ...any) ([]*models.RunStep, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run steps: %w", err)
	}

	defer closeRows(ctx, rows, logger)

	steps := make([]*models.RunStep, 0)

	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run step: %w", err)
		}

		steps = append(steps, step)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating run steps: %w", err)
	}

	return steps, nil
}

// RunByID returns a run by its ID.
func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.Run, error) {
	return runByID(ctx, r.db, id)
}

// StepByID returns a run step by its ID.
func (r *RunRepository) StepByID(ctx context.Context, id string) (*models.RunStep, error) {
	return stepByID(ctx, r.db, id, false)
}

// StepsByRun returns all steps of a run ordered by sort order.
func (r *RunRepository) StepsByRun(ctx context.Context, runID string) ([]*models.RunStep, error) {
	query := `SELECT` + stepColumns + `FROM run_steps WHERE run_id = $1 ORDER BY sort_order`

	return querySteps(ctx, r.db, r.logger, query, runID)
}

// ListRuns returns run summaries with step progress counts, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, opts persistence.ListRunsOptions) ([]*models.RunSummary, error) {
	if opts.Limit <= 0 || opts.Limit > defaultListLimit {
		opts.Limit = defaultListLimit
	}

	query := `
		SELECT` + runColumns + `
		  , (SELECT COUNT(*) FROM run_steps s WHERE s.run_id = runs.id) AS total_steps
		  , (SELECT COUNT(*) FROM run_steps s WHERE s.run_id = runs.id
				AND s.status IN ('completed', 'skipped')) AS completed_steps
		FROM runs
		WHERE ($1 = '' OR flow_id::text = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3
	`

	status := ""
	if opts.Status != nil {
		status = string(*opts.Status)
	}

	rows, err := r.db.QueryContext(ctx, query, opts.FlowID, status, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer closeRows(ctx, rows, r.logger)

	summaries := make([]*models.RunSummary, 0)

	for rows.Next() {
		summary := &models.RunSummary{Run: &models.Run{}}
		run := summary.Run

		var formData []byte

		err := rows.Scan(&run.ID, &run.FlowID, &run.FormID, &run.Title, &formData,
			&run.Status, &run.InitiatedBy, &run.CurrentNodeID, &run.StartedAt, &run.CompletedAt,
			&summary.TotalSteps, &summary.CompletedSteps)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}

		if len(formData) > 0 {
			err = json.Unmarshal(formData, &run.FormData)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal form data: %w", err)
			}
		}

		summaries = append(summaries, summary)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return summaries, nil
}

// ActiveStepsByDoer returns the doer's open steps ordered by planned deadline.
func (r *RunRepository) ActiveStepsByDoer(ctx context.Context, doerID string) ([]*models.RunStep, error) {
	query := `
		SELECT` + stepColumns + `
		FROM run_steps
		WHERE doer_id = $1 AND status IN ('pending', 'in_progress')
		ORDER BY planned_at
	`

	return querySteps(ctx, r.db, r.logger, query, doerID)
}

// HistoryByDoer returns the doer's closed steps, newest first.
func (r *RunRepository) HistoryByDoer(ctx context.Context, doerID string, limit int) ([]*models.RunStep, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	query := `
		SELECT` + stepColumns + `
		FROM run_steps
		WHERE doer_id = $1 AND status IN ('completed', 'skipped')
		ORDER BY actual_at DESC NULLS LAST
		LIMIT $2
	`

	return querySteps(ctx, r.db, r.logger, query, doerID, limit)
}
