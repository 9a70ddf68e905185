package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
)

// FormRepository handles form and step-assignment database operations.
type FormRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFormRepository creates a new form repository.
func NewFormRepository(db *sql.DB, logger *slog.Logger) *FormRepository {
	return &FormRepository{db: db, logger: logger}
}

// FormByID returns a form with its fields in sort order.
func (r *FormRepository) FormByID(ctx context.Context, id string) (*models.Form, error) {
	return formByID(ctx, r.db, r.logger, id)
}

func formByID(ctx context.Context, q querier, logger *slog.Logger, id string) (*models.Form, error) {
	query := `
		SELECT
			id
		  , flow_id
		  , name
		  , status
		  , created_at
		  , updated_at
		FROM forms
		WHERE id = $1
	`

	form := &models.Form{}

	err := q.QueryRowContext(ctx, query, id).Scan(&form.ID, &form.FlowID, &form.Name,
		&form.Status, &form.CreatedAt, &form.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrFormNotFound
		}

		return nil, fmt.Errorf("failed to scan form: %w", err)
	}

	form.Fields, err = formFields(ctx, q, logger, id)
	if err != nil {
		return nil, err
	}

	return form, nil
}

func formFields(ctx context.Context, q querier, logger *slog.Logger, formID string) ([]*models.FormField, error) {
	query := `
		SELECT
			id
		  , name
		  , label
		  , field_type
		  , is_required
		  , sort_order
		FROM form_fields
		WHERE form_id = $1
		ORDER BY sort_order
	`

	rows, err := q.QueryContext(ctx, query, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to query form fields: %w", err)
	}

	defer closeRows(ctx, rows, logger)

	fields := make([]*models.FormField, 0)

	for rows.Next() {
		field := &models.FormField{}

		err := rows.Scan(&field.ID, &field.Name, &field.Label, &field.FieldType,
			&field.Required, &field.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan form field: %w", err)
		}

		fields = append(fields, field)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating form fields: %w", err)
	}

	return fields, nil
}

// StepAssignments returns the form's step mapping ordered by sort order.
func (r *FormRepository) StepAssignments(ctx context.Context, formID string) ([]*models.StepAssignment, error) {
	return stepAssignments(ctx, r.db, r.logger, formID)
}

func stepAssignments(ctx context.Context, q querier, logger *slog.Logger, formID string) ([]*models.StepAssignment, error) {
	query := `
		SELECT
			id
		  , form_id
		  , node_id
		  , doer_id
		  , duration_minutes
		  , sort_order
		FROM step_assignments
		WHERE form_id = $1
		ORDER BY sort_order
	`

	rows, err := q.QueryContext(ctx, query, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to query step assignments: %w", err)
	}

	defer closeRows(ctx, rows, logger)

	assignments := make([]*models.StepAssignment, 0)

	for rows.Next() {
		assignment := &models.StepAssignment{}

		err := rows.Scan(&assignment.ID, &assignment.FormID, &assignment.NodeID,
			&assignment.DoerID, &assignment.DurationMinutes, &assignment.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step assignment: %w", err)
		}

		assignments = append(assignments, assignment)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating step assignments: %w", err)
	}

	return assignments, nil
}

// Save stores a form and replaces its fields and step assignments. Exists for
// the form module, seeding and tests; the engine never writes forms.
func (r *FormRepository) Save(ctx context.Context, form *models.Form, assignments []*models.StepAssignment) error {
	now := time.Now().UTC()

	if form.CreatedAt.IsZero() {
		form.CreatedAt = now
	}

	form.UpdatedAt = now

	if form.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate form ID: %w", err)
		}

		form.ID = id.String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	formQuery := `
		INSERT INTO forms (id, flow_id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, formQuery, form.ID, form.FlowID, form.Name,
		form.Status, form.CreatedAt, form.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save form base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM form_fields WHERE form_id = $1", form.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing fields: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM step_assignments WHERE form_id = $1", form.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing assignments: %w", err)
	}

	fieldQuery := `
		INSERT INTO form_fields (form_id, id, name, label, field_type, is_required, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, field := range form.Fields {
		if field.ID == "" {
			field.ID = fmt.Sprintf("%s-field-%d", form.ID, i)
		}

		_, err = tx.ExecContext(ctx, fieldQuery, form.ID, field.ID, field.Name,
			field.Label, field.FieldType, field.Required, field.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to save form field %s: %w", field.Name, err)
		}
	}

	assignmentQuery := `
		INSERT INTO step_assignments (id, form_id, node_id, doer_id, duration_minutes, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, assignment := range assignments {
		if assignment.ID == "" {
			id, idErr := uuid.NewV7()
			if idErr != nil {
				err = fmt.Errorf("failed to generate assignment ID: %w", idErr)

				return err
			}

			assignment.ID = id.String()
		}

		assignment.FormID = form.ID

		_, err = tx.ExecContext(ctx, assignmentQuery, assignment.ID, assignment.FormID,
			assignment.NodeID, assignment.DoerID, assignment.DurationMinutes, assignment.SortOrder)
		if err != nil {
			return fmt.Errorf("failed to save step assignment for node %s: %w", assignment.NodeID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit form save: %w", err)
	}

	return nil
}
