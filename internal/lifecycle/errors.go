package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors for lifecycle operations.
var (
	// ErrTaskActive rejects a submit while another task is in flight.
	ErrTaskActive = errors.New("a parse task is already active")
	// ErrTaskNotFound rejects an operation on an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidState rejects a cancel outside submitting/running.
	ErrInvalidState = errors.New("task cannot be cancelled in its current state")
)

// ValidationError reports user input that matches none of the accepted
// group reference shapes. It is surfaced as a field-level message and
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
