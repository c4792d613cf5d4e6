package verify

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed verification input. It is raised before
// any I/O and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// DataProcessingError wraps an unexpected internal fault (for example a
// malformed fact-extraction result) so raw internal errors never cross the
// component boundary.
type DataProcessingError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *DataProcessingError) Error() string {
	return fmt.Sprintf("data processing failed at %s: %v", e.Stage, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DataProcessingError) Unwrap() error {
	return e.Err
}
