package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrPathConflict is returned when a step expects a file where a folder exists, or the reverse.
var ErrPathConflict = errors.New("path kind conflict")

// ErrInvalidPath is returned for empty paths or paths escaping the tree root.
var ErrInvalidPath = errors.New("invalid path")

// ErrGenerationInProgress is returned when a prompt arrives while a model call for the same session is in flight.
var ErrGenerationInProgress = errors.New("generation already in progress")

// ErrTemplateNotFound is returned when no template matches the requested stack.
var ErrTemplateNotFound = errors.New("template not found")

// ErrGeneration wraps failures of the model collaborator.
var ErrGeneration = errors.New("model call failed")

// ErrCommandNotAllowed is returned for sandbox commands outside the allow-list.
var ErrCommandNotAllowed = errors.New("command not allowed")

// ErrUnsupportedStep is returned when a step kind has no synthesis rule.
var ErrUnsupportedStep = errors.New("unsupported step kind")

// StepError records the failure of a single step inside a reconciliation batch.
type StepError struct {
	StepID int
	Path   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.StepID, e.Path, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
