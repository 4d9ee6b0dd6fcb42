package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("lifecycle: invalid input")
	ErrForbidden    = errors.New("lifecycle: forbidden")
	ErrConflict     = errors.New("lifecycle: conflict")
	ErrNotFound     = errors.New("lifecycle: not found")
)

// ValidationError names the offending field. It matches ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lifecycle: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
