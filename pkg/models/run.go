package models

import "time"

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"   // Advancing step by step
	RunStatusPaused    RunStatus = "paused"    // Branch resolution failed, needs an operator
	RunStatusCompleted RunStatus = "completed" // Reached an end node
	RunStatusCancelled RunStatus = "cancelled" // Terminated by an operator
)

// ValidRunStatus reports whether s is one of the known run statuses.
func ValidRunStatus(s RunStatus) bool {
	switch s {
	case RunStatusRunning, RunStatusPaused, RunStatusCompleted, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// Run represents one execution of a flow, instantiated by a form submission.
// FormData is immutable after creation; the engine is the only writer of the
// remaining mutable fields.
type Run struct {
	ID            string         `json:"id"`
	FlowID        string         `json:"flow_id"`
	FormID        string         `json:"form_id"`
	Title         string         `json:"title"`
	FormData      map[string]any `json:"form_data"`
	Status        RunStatus      `json:"status"`
	InitiatedBy   string         `json:"initiated_by"`
	CurrentNodeID string         `json:"current_node_id"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// IsOpen reports whether the run can still be advanced or cancelled.
func (r *Run) IsOpen() bool {
	return r.Status == RunStatusRunning || r.Status == RunStatusPaused
}

// RunSummary is the list-view projection of a run with step progress counts.
type RunSummary struct {
	Run            *Run `json:"run"`
	TotalSteps     int  `json:"total_steps"`
	CompletedSteps int  `json:"completed_steps"`
}
