package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/runline/runline/pkg/models"
	"github.com/runline/runline/pkg/persistence"
)

// formDocument stores a form together with its step mapping in one file.
type formDocument struct {
	Form        *models.Form             `json:"form"`
	Assignments []*models.StepAssignment `json:"assignments"`
}

// FlowRepository handles flow files under <root>/flows.
type FlowRepository struct {
	p *Persistence
}

// FlowByID returns a flow by its ID.
func (r *FlowRepository) FlowByID(ctx context.Context, id string) (*models.Flow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	return r.p.loadFlow(id)
}

// Save stores a flow document.
func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	if flow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate flow ID: %w", err)
		}

		flow.ID = id.String()
	}

	return r.p.writeJSON(r.p.path("flows", flow.ID+".json"), flow)
}

func (p *Persistence) loadFlow(id string) (*models.Flow, error) {
	flow := &models.Flow{}

	found, err := p.readJSON(p.path("flows", id+".json"), flow)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrFlowNotFound
	}

	return flow, nil
}

// FormRepository handles form files under <root>/forms.
type FormRepository struct {
	p *Persistence
}

// FormByID returns a form by its ID.
func (r *FormRepository) FormByID(ctx context.Context, id string) (*models.Form, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	doc, err := r.p.loadForm(id)
	if err != nil {
		return nil, err
	}

	return doc.Form, nil
}

// StepAssignments returns the form's step mapping ordered by sort order.
func (r *FormRepository) StepAssignments(ctx context.Context, formID string) ([]*models.StepAssignment, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	doc, err := r.p.loadForm(formID)
	if err != nil {
		return nil, err
	}

	return sortedAssignments(doc), nil
}

// sortedAssignments returns the document's assignments ordered by sort order.
// Run instantiation takes the first entry as the run's starting step, so the
// stored declaration order must never leak out.
func sortedAssignments(doc *formDocument) []*models.StepAssignment {
	assignments := make([]*models.StepAssignment, len(doc.Assignments))
	copy(assignments, doc.Assignments)

	sort.SliceStable(assignments, func(i, j int) bool {
		return assignments[i].SortOrder < assignments[j].SortOrder
	})

	return assignments
}

// Save stores a form document with its step mapping.
func (r *FormRepository) Save(_ context.Context, form *models.Form, assignments []*models.StepAssignment) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

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

	for _, assignment := range assignments {
		assignment.FormID = form.ID
	}

	doc := &formDocument{Form: form, Assignments: assignments}

	return r.p.writeJSON(r.p.path("forms", form.ID+".json"), doc)
}

func (p *Persistence) loadForm(id string) (*formDocument, error) {
	doc := &formDocument{}

	found, err := p.readJSON(p.path("forms", id+".json"), doc)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrFormNotFound
	}

	return doc, nil
}
