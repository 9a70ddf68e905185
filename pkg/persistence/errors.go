// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFormNotFound indicates a form was not found by the given identifier.
	ErrFormNotFound = errors.New("form not found")

	// ErrRunNotFound indicates a run was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")

	// ErrStepNotFound indicates a run step was not found by the given identifier.
	ErrStepNotFound = errors.New("run step not found")
)

// RunError wraps run-related storage errors with additional context.
type RunError struct {
	Op     string // Operation being performed (e.g. "RunByID", "UpdateStep")
	RunID  string // Run ID if applicable
	StepID string // Step ID if applicable
	Err    error  // Underlying error
}

func (e *RunError) Error() string {
	target := e.RunID
	if e.StepID != "" {
		target = fmt.Sprintf("step %s", e.StepID)
	}

	return fmt.Sprintf("%s operation failed for run %s: %v", e.Op, target, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for run errors.
func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a new run error with context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// NewStepError creates a new run error scoped to a single step.
func NewStepError(op, stepID string, err error) *RunError {
	return &RunError{Op: op, StepID: stepID, Err: err}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsFormNotFound checks if an error indicates a form was not found.
func IsFormNotFound(err error) bool {
	return errors.Is(err, ErrFormNotFound)
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsStepNotFound checks if an error indicates a run step was not found.
func IsStepNotFound(err error) bool {
	return errors.Is(err, ErrStepNotFound)
}

// IsNotFound checks if an error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return IsFlowNotFound(err) || IsFormNotFound(err) || IsRunNotFound(err) || IsStepNotFound(err)
}
