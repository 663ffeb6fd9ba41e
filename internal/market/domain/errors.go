package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across the marketplace core. Callers match with
// errors.Is; the REST layer maps them onto HTTP statuses.
var (
	ErrNotFound        = errors.New("not found")
	ErrAgentExists     = errors.New("agent wallet already registered")
	ErrPaymentInvalid  = errors.New("payment verification failed")
	ErrDuplicateVote   = errors.New("validator already voted on this dispute")
	ErrDisputeResolved = errors.New("dispute already resolved")
	ErrDisputeExists   = errors.New("dispute already raised for this task")
)

// InvalidStateError reports a transition that is not legal from the task's
// current state. Transitions are never silently coerced.
type InvalidStateError struct {
	TaskID    string
	From      TaskStatus
	Attempted TaskStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("task %s: illegal transition %s -> %s", e.TaskID, e.From, e.Attempted)
}

// NewInvalidState builds an InvalidStateError for a task.
func NewInvalidState(taskID string, from, attempted TaskStatus) error {
	return &InvalidStateError{TaskID: taskID, From: from, Attempted: attempted}
}

// IsInvalidState reports whether err is a transition-legality failure.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// InvalidInputError reports input rejected before any persistence.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInvalidInput builds an InvalidInputError.
func NewInvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

// IsInvalidInput reports whether err is an input-validation failure.
func IsInvalidInput(err error) bool {
	var iie *InvalidInputError
	return errors.As(err, &iie)
}
