// Package persistence provides the data storage abstraction for flows, forms
// and runs.
package persistence

import (
	"context"

	"github.com/runline/runline/pkg/models"
)

// Persistence is the storage entry point. The relational store is the single
// source of truth; the engine holds no authoritative state between requests.
type Persistence interface {
	FlowRepository() FlowRepository
	FormRepository() FormRepository
	RunRepository() RunRepository

	// Transaction runs fn atomically. Nothing fn writes through tx is visible
	// until fn returns nil; any error rolls the whole transaction back.
	Transaction(ctx context.Context, fn func(ctx context.Context, tx UpdateTx) error) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository reads and seeds flow graphs. The engine only reads; Save
// exists for the authoring module, seeding and tests.
type FlowRepository interface {
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
}

// FormRepository reads and seeds forms and their step assignments.
type FormRepository interface {
	FormByID(ctx context.Context, id string) (*models.Form, error)
	StepAssignments(ctx context.Context, formID string) ([]*models.StepAssignment, error)
	Save(ctx context.Context, form *models.Form, assignments []*models.StepAssignment) error
}

// ListRunsOptions filters and bounds the run list projection.
type ListRunsOptions struct {
	FlowID string
	Status *models.RunStatus
	Limit  int
}

// RunRepository is the read side of run state. All writes go through UpdateTx.
type RunRepository interface {
	RunByID(ctx context.Context, id string) (*models.Run, error)
	StepsByRun(ctx context.Context, runID string) ([]*models.RunStep, error)
	StepByID(ctx context.Context, id string) (*models.RunStep, error)
	ListRuns(ctx context.Context, opts ListRunsOptions) ([]*models.RunSummary, error)

	// ActiveStepsByDoer returns the doer's open steps ordered by planned
	// deadline, soonest first.
	ActiveStepsByDoer(ctx context.Context, doerID string) ([]*models.RunStep, error)

	// HistoryByDoer returns the doer's closed steps, newest first, bounded.
	HistoryByDoer(ctx context.Context, doerID string, limit int) ([]*models.RunStep, error)
}

// UpdateTx is the transaction-scoped view used by state-changing operations.
// Reads through it observe the transaction's own writes; StepForUpdate
// additionally locks the step row against concurrent completion attempts.
type UpdateTx interface {
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	FormByID(ctx context.Context, id string) (*models.Form, error)
	StepAssignments(ctx context.Context, formID string) ([]*models.StepAssignment, error)

	CreateRun(ctx context.Context, run *models.Run) error
	CreateRunSteps(ctx context.Context, steps []*models.RunStep) error

	RunByID(ctx context.Context, id string) (*models.Run, error)
	StepByID(ctx context.Context, id string) (*models.RunStep, error)

	// StepForUpdate reads a step with SELECT ... FOR UPDATE semantics,
	// serializing concurrent transactions targeting the same step.
	StepForUpdate(ctx context.Context, id string) (*models.RunStep, error)

	StepByRunAndNode(ctx context.Context, runID, nodeID string) (*models.RunStep, error)

	UpdateRun(ctx context.Context, run *models.Run) error
	UpdateStep(ctx context.Context, step *models.RunStep) error
}
