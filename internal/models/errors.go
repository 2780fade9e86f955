package models

import (
	"errors"
	"fmt"
)

// ErrConsentNotFound is returned when no consent record exists for a
// (patient, doctor) pair, or the record is not in a revocable state.
var ErrConsentNotFound = errors.New("consent record not found")

// ErrDuplicateRequest is returned when a request arrives for a pair that
// already has a pending request or a currently valid granted consent.
var ErrDuplicateRequest = errors.New("consent request already pending or granted")

// ValidationError reports a malformed consent parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
