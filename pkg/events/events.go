// Package events defines event types for run lifecycle notifications.
package events

import (
	"time"
)

type EventType string

// Topic carries every run lifecycle event; consumers filter by event type.
const Topic = "runline.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunPausedEvent    EventType = "run.paused"
	RunCancelledEvent EventType = "run.cancelled"

	// Step lifecycle events.
	StepActivatedEvent EventType = "step.activated"
	StepStartedEvent   EventType = "step.started"
	StepCompletedEvent EventType = "step.completed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type RunStarted struct {
	BaseEvent

	FlowID      string `json:"flow_id"`
	FormID      string `json:"form_id"`
	InitiatedBy string `json:"initiated_by"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunCompleted struct {
	BaseEvent

	CompletedAt time.Time `json:"completed_at"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

// RunPaused is emitted when branch resolution cannot determine a next step and
// the run is parked for operator intervention.
type RunPaused struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Reason string `json:"reason"`
}

func (e RunPaused) GetType() EventType {
	return RunPausedEvent
}

type RunCancelled struct {
	BaseEvent

	CancelledBy string `json:"cancelled_by"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

// StepActivated is emitted when a waiting step becomes the run's active
// position. This is the hook notification delivery listens on.
type StepActivated struct {
	BaseEvent

	StepID    string     `json:"step_id"`
	NodeID    string     `json:"node_id"`
	DoerID    string     `json:"doer_id"`
	PlannedAt *time.Time `json:"planned_at,omitempty"`
}

func (e StepActivated) GetType() EventType {
	return StepActivatedEvent
}

type StepStarted struct {
	BaseEvent

	StepID string `json:"step_id"`
	DoerID string `json:"doer_id"`
}

func (e StepStarted) GetType() EventType {
	return StepStartedEvent
}

type StepCompleted struct {
	BaseEvent

	StepID   string `json:"step_id"`
	NodeID   string `json:"node_id"`
	DoerID   string `json:"doer_id"`
	Decision string `json:"decision,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}
