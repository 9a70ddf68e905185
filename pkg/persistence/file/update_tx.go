package file

import (
	"context"

	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
)

// updateTx buffers run mutations while the store's write lock is held and
// flushes them to disk on commit. Reads observe the buffered state, matching
// the read-your-writes behavior of a database transaction.
type updateTx struct {
	p     *Persistence
	runs  map[string]*runDocument
	dirty map[string]bool
}

func newUpdateTx(p *Persistence) *updateTx {
	return &updateTx{
		p:     p,
		runs:  make(map[string]*runDocument),
		dirty: make(map[string]bool),
	}
}

func (t *updateTx) flush() error {
	for id := range t.dirty {
		err := t.p.writeJSON(t.p.path("runs", id+".json"), t.runs[id])
		if err != nil {
			return err
		}
	}

	return nil
}

func (t *updateTx) runDoc(id string) (*runDocument, error) {
	if doc, ok := t.runs[id]; ok {
		return doc, nil
	}

	doc, err := t.p.loadRun(id)
	if err != nil {
		return nil, err
	}

	t.runs[id] = doc

	return doc, nil
}

// FlowByID returns a flow. Flows are read-only to the engine, so no buffering.
func (t *updateTx) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	return t.p.loadFlow(id)
}

// FormByID returns a form. Forms are read-only to the engine, so no buffering.
func (t *updateTx) FormByID(ctx context.Context, id string) (*models.Form, error) {
	doc, err := t.p.loadForm(id)
	if err != nil {
		return nil, err
	}

	return doc.Form, nil
}

// StepAssignments returns a form's step mapping ordered by sort order.
func (t *updateTx) StepAssignments(ctx context.Context, formID string) ([]*models.StepAssignment, error) {
	doc, err := t.p.loadForm(formID)
	if err != nil {
		return nil, err
	}

	return sortedAssignments(doc), nil
}

// CreateRun buffers a new run document.
func (t *updateTx) CreateRun(ctx context.Context, run *models.Run) error {
	t.runs[run.ID] = &runDocument{Run: run, Steps: make([]*models.RunStep, 0)}
	t.dirty[run.ID] = true

	return nil
}

// CreateRunSteps buffers the run's step rows.
func (t *updateTx) CreateRunSteps(ctx context.Context, steps []*models.RunStep) error {
	for _, step := range steps {
		doc, err := t.runDoc(step.RunID)
		if err != nil {
			return err
		}

		doc.Steps = append(doc.Steps, step)
		t.dirty[step.RunID] = true
	}

	return nil
}

// RunByID returns a run, observing buffered writes.
func (t *updateTx) RunByID(ctx context.Context, id string) (*models.Run, error) {
	doc, err := t.runDoc(id)
	if err != nil {
		return nil, err
	}

	return doc.Run, nil
}

// StepByID returns a step by id, scanning buffered and stored runs.
func (t *updateTx) StepByID(ctx context.Context, id string) (*models.RunStep, error) {
	return t.findStep(id)
}

// StepForUpdate returns a step by id. The store's write lock already excludes
// every other transaction, so no extra locking is needed here.
func (t *updateTx) StepForUpdate(ctx context.Context, id string) (*models.RunStep, error) {
	return t.findStep(id)
}

func (t *updateTx) findStep(id string) (*models.RunStep, error) {
	for _, doc := range t.runs {
		for _, step := range doc.Steps {
			if step.ID == id {
				return step, nil
			}
		}
	}

	ids, err := t.p.listIDs("runs")
	if err != nil {
		return nil, err
	}

	for _, runID := range ids {
		doc, err := t.runDoc(runID)
		if err != nil {
			return nil, err
		}

		for _, step := range doc.Steps {
			if step.ID == id {
				return step, nil
			}
		}
	}

	return nil, persistence.ErrStepNotFound
}

// StepByRunAndNode returns the step materialized for a node within a run.
func (t *updateTx) StepByRunAndNode(ctx context.Context, runID, nodeID string) (*models.RunStep, error) {
	doc, err := t.runDoc(runID)
	if err != nil {
		return nil, err
	}

	for _, step := range doc.Steps {
		if step.NodeID == nodeID {
			return step, nil
		}
	}

	return nil, persistence.ErrStepNotFound
}

// UpdateRun buffers a run update.
func (t *updateTx) UpdateRun(ctx context.Context, run *models.Run) error {
	doc, err := t.runDoc(run.ID)
	if err != nil {
		return err
	}

	doc.Run = run
	t.dirty[run.ID] = true

	return nil
}

// UpdateStep buffers a step update.
func (t *updateTx) UpdateStep(ctx context.Context, step *models.RunStep) error {
	doc, err := t.runDoc(step.RunID)
	if err != nil {
		return err
	}

	for i, existing := range doc.Steps {
		if existing.ID == step.ID {
			doc.Steps[i] = step
			t.dirty[step.RunID] = true

			return nil
		}
	}

	return persistence.NewStepError("UpdateStep", step.ID, persistence.ErrStepNotFound)
}
