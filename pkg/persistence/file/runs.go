package file

import (
	"context"
	"sort"

	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
)

const defaultListLimit = 50

// runDocument stores a run together with its steps in one file.
type runDocument struct {
	Run   *models.Run       `json:"run"`
	Steps []*models.RunStep `json:"steps"`
}

// RunRepository handles the read side of run files under <root>/runs.
type RunRepository struct {
	p *Persistence
}

// RunByID returns a run by its ID.
func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.Run, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	doc, err := r.p.loadRun(id)
	if err != nil {
		return nil, err
	}

	return doc.Run, nil
}

// StepsByRun returns all steps of a run ordered by sort order.
func (r *RunRepository) StepsByRun(ctx context.Context, runID string) ([]*models.RunStep, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	doc, err := r.p.loadRun(runID)
	if err != nil {
		return nil, err
	}

	steps := append([]*models.RunStep(nil), doc.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].SortOrder < steps[j].SortOrder })

	return steps, nil
}

// StepByID returns a run step by its ID, scanning across runs.
func (r *RunRepository) StepByID(ctx context.Context, id string) (*models.RunStep, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	docs, err := r.p.loadAllRuns()
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		for _, step := range doc.Steps {
			if step.ID == id {
				return step, nil
			}
		}
	}

	return nil, persistence.ErrStepNotFound
}

// ListRuns returns run summaries with step progress counts, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, opts persistence.ListRunsOptions) ([]*models.RunSummary, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	if opts.Limit <= 0 || opts.Limit > defaultListLimit {
		opts.Limit = defaultListLimit
	}

	docs, err := r.p.loadAllRuns()
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.RunSummary, 0, len(docs))

	for _, doc := range docs {
		if opts.FlowID != "" && doc.Run.FlowID != opts.FlowID {
			continue
		}

		if opts.Status != nil && doc.Run.Status != *opts.Status {
			continue
		}

		summary := &models.RunSummary{Run: doc.Run, TotalSteps: len(doc.Steps)}

		for _, step := range doc.Steps {
			if step.IsClosed() {
				summary.CompletedSteps++
			}
		}

		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Run.StartedAt.After(summaries[j].Run.StartedAt)
	})

	if len(summaries) > opts.Limit {
		summaries = summaries[:opts.Limit]
	}

	return summaries, nil
}

// ActiveStepsByDoer returns the doer's open steps ordered by planned deadline.
func (r *RunRepository) ActiveStepsByDoer(ctx context.Context, doerID string) ([]*models.RunStep, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	docs, err := r.p.loadAllRuns()
	if err != nil {
		return nil, err
	}

	steps := make([]*models.RunStep, 0)

	for _, doc := range docs {
		for _, step := range doc.Steps {
			if step.DoerID == doerID && step.IsOpen() {
				steps = append(steps, step)
			}
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		switch {
		case steps[i].PlannedAt == nil:
			return false
		case steps[j].PlannedAt == nil:
			return true
		default:
			return steps[i].PlannedAt.Before(*steps[j].PlannedAt)
		}
	})

	return steps, nil
}

// HistoryByDoer returns the doer's closed steps, newest first.
func (r *RunRepository) HistoryByDoer(ctx context.Context, doerID string, limit int) ([]*models.RunStep, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	docs, err := r.p.loadAllRuns()
	if err != nil {
		return nil, err
	}

	steps := make([]*models.RunStep, 0)

	for _, doc := range docs {
		for _, step := range doc.Steps {
			if step.DoerID == doerID && step.IsClosed() {
				steps = append(steps, step)
			}
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		switch {
		case steps[i].ActualAt == nil:
			return false
		case steps[j].ActualAt == nil:
			return true
		default:
			return steps[i].ActualAt.After(*steps[j].ActualAt)
		}
	})

	if len(steps) > limit {
		steps = steps[:limit]
	}

	return steps, nil
}

func (p *Persistence) loadRun(id string) (*runDocument, error) {
	doc := &runDocument{}

	found, err := p.readJSON(p.path("runs", id+".json"), doc)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrRunNotFound
	}

	return doc, nil
}

func (p *Persistence) loadAllRuns() ([]*runDocument, error) {
	ids, err := p.listIDs("runs")
	if err != nil {
		return nil, err
	}

	docs := make([]*runDocument, 0, len(ids))

	for _, id := range ids {
		doc, err := p.loadRun(id)
		if err != nil {
			return nil, err
		}

		docs = append(docs, doc)
	}

	return docs, nil
}
