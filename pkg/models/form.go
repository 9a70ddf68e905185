package models

import "time"

// FormStatus represents the lifecycle state of a form.
type FormStatus string

const (
	FormStatusDraft    FormStatus = "draft"    // Editable, not submittable
	FormStatusActive   FormStatus = "active"   // Submittable, instantiates runs
	FormStatusInactive FormStatus = "inactive" // Retired, kept for history
)

// Form is the data-entry schema bound to a flow. Submitting an active form
// instantiates a run of its flow.
type Form struct {
	ID        string       `json:"id"`
	FlowID    string       `json:"flow_id"   validate:"required"`
	Name      string       `json:"name"      validate:"required,min=3"`
	Status    FormStatus   `json:"status"    validate:"required"`
	Fields    []*FormField `json:"fields"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// FormField describes one field of a form's data-entry schema. The engine
// only cares about Name and Required; rendering is the form module's business.
type FormField struct {
	ID        string `json:"id"`
	Name      string `json:"name"       validate:"required"`
	Label     string `json:"label"`
	FieldType string `json:"field_type"` // text, number, date, select...
	Required  bool   `json:"is_required"`
	SortOrder int    `json:"sort_order"`
}

// StepAssignment binds one executable flow node to an assignee and an expected
// duration for a given form. One row per executable node per form.
type StepAssignment struct {
	ID              string `json:"id"`
	FormID          string `json:"form_id"          validate:"required"`
	NodeID          string `json:"node_id"          validate:"required"`
	DoerID          string `json:"doer_id"          validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"min=0"`
	SortOrder       int    `json:"sort_order"`
}
