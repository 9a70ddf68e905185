// Package services provides standardized error types for the execution engine.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. The groups below map onto transport status codes:
// validation errors are 400s, permission errors 403s, state errors 409s.
var (
	// Validation errors (caller can fix the input and retry).
	ErrMissingRequiredField = errors.New("missing required field")
	ErrCommentRequired      = errors.New("comment is required to complete this step")
	ErrAttachmentRequired   = errors.New("attachment is required to complete this step")

	// Permission errors (never retried automatically).
	ErrNotAssignee  = errors.New("requester is not the step assignee")
	ErrNotPermitted = errors.New("requester lacks permission")

	// State errors (operation illegal in the entity's current state).
	ErrFormInactive  = errors.New("form is not active")
	ErrNoMappedSteps = errors.New("form has no mapped steps")
	ErrStepNotOpen   = errors.New("step is not pending or in progress")
	ErrRunNotRunning = errors.New("run is not running")
	ErrRunClosed     = errors.New("run is already completed or cancelled")

	// Branch resolution failures. These pause the run rather than roll it
	// back: the completed step stays completed and an operator takes over.
	ErrNoNextStep       = errors.New("no valid next step")
	ErrAmbiguousBranch  = errors.New("ambiguous branch result")
	ErrNextStepNotFound = errors.New("run has no step record for the next node")
)

// EngineError wraps engine errors with operation context.
type EngineError struct {
	Op      string // Operation name
	RunID   string // Run ID if applicable
	StepID  string // Step ID if applicable
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *EngineError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a caller-input error that should
// map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingRequiredField) ||
		errors.Is(err, ErrCommentRequired) ||
		errors.Is(err, ErrAttachmentRequired)
}

// IsPermissionError checks if an error should map to HTTP 403.
func IsPermissionError(err error) bool {
	return errors.Is(err, ErrNotAssignee) ||
		errors.Is(err, ErrNotPermitted)
}

// IsStateError checks if an error reports an operation illegal in the
// entity's current state (HTTP 409).
func IsStateError(err error) bool {
	return errors.Is(err, ErrFormInactive) ||
		errors.Is(err, ErrNoMappedSteps) ||
		errors.Is(err, ErrStepNotOpen) ||
		errors.Is(err, ErrRunNotRunning) ||
		errors.Is(err, ErrRunClosed)
}

// IsBranchError checks if an error reports a failed branch resolution. The
// run has been paused; the error is a first-class business outcome, not an
// internal failure.
func IsBranchError(err error) bool {
	return errors.Is(err, ErrNoNextStep) ||
		errors.Is(err, ErrAmbiguousBranch) ||
		errors.Is(err, ErrNextStepNotFound)
}
