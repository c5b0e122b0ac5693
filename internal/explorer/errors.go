package explorer

import (
	"errors"
	"fmt"
)

var (
	// ErrTooClose is the reason a new pin lands within the proximity radius
	// of an existing one.
	ErrTooClose = errors.New("location is within the proximity radius of an existing marker")

	// ErrStopped is returned by entry points once Run has returned.
	ErrStopped = errors.New("explorer stopped")
)

// ValidationError is a policy rejection of user input, not a failure.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func invalid(reason error) error {
	return &ValidationError{Reason: reason}
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
