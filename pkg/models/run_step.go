package models

import "time"

// RunStepStatus represents the state of one materialized node visit.
type RunStepStatus string

const (
	RunStepStatusWaiting    RunStepStatus = "waiting"     // Not yet reached by the walk
	RunStepStatusPending    RunStepStatus = "pending"     // Activated, waiting for the assignee
	RunStepStatusInProgress RunStepStatus = "in_progress" // Assignee has started work
	RunStepStatusCompleted  RunStepStatus = "completed"   // Closed normally
	RunStepStatusSkipped    RunStepStatus = "skipped"     // Closed administratively, out of band
)

// RunStep is the materialized record of a run's visit to one flow node.
// Steps are created in bulk at submission time, one per step assignment, and
// never outlive their run.
type RunStep struct {
	ID              string        `json:"id"`
	RunID           string        `json:"run_id"`
	NodeID          string        `json:"node_id"`
	StepName        string        `json:"step_name"`
	StepCode        string        `json:"step_code,omitempty"`
	DoerID          string        `json:"doer_id"`
	Status          RunStepStatus `json:"status"`
	DurationMinutes int           `json:"duration_minutes"`
	PlannedAt       *time.Time    `json:"planned_at,omitempty"` // Advisory deadline set at activation
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	ActualAt        *time.Time    `json:"actual_at,omitempty"` // Completion time
	SortOrder       int           `json:"sort_order"`
	Comment         string        `json:"comment,omitempty"`
	AttachmentPath  string        `json:"attachment_path,omitempty"`
}

// IsOpen reports whether the step is the run's active position, i.e. a legal
// target for start and complete.
func (s *RunStep) IsOpen() bool {
	return s.Status == RunStepStatusPending || s.Status == RunStepStatusInProgress
}

// IsClosed reports whether the step has been visited and closed.
func (s *RunStep) IsClosed() bool {
	return s.Status == RunStepStatusCompleted || s.Status == RunStepStatusSkipped
}

// Activate moves a waiting step to pending and stamps its advisory deadline
// from the expected duration.
func (s *RunStep) Activate(now time.Time) {
	s.Status = RunStepStatusPending
	deadline := now.Add(time.Duration(s.DurationMinutes) * time.Minute)
	s.PlannedAt = &deadline
}
