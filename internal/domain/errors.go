// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrBadInput is returned when task arguments or request data are malformed.
	// Tasks failing with it are reported, never retried.
	ErrBadInput = errors.New("bad input")

	// ErrInvalidEmail is returned when a destination address lacks the
	// local-part/domain separator.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email", ErrBadInput)

	// ErrInvalidQuantity is returned when an order asks for less than one unit.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", ErrBadInput)

	// ErrEmptyProduct is returned when an order names no product.
	ErrEmptyProduct = fmt.Errorf("%w: product cannot be empty", ErrBadInput)

	// ErrInvalidID is returned when an order ID is malformed or not positive.
	ErrInvalidID = fmt.Errorf("%w: invalid ID", ErrBadInput)

	// ErrInsufficientStock is the business-rule rejection of an order whose
	// product has no stock entry or fewer units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel so errors.Is keeps working.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError. If err is nil it wraps ErrBadInput.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrBadInput
	}
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsBadInput reports whether err is any kind of input validation failure.
func IsBadInput(err error) bool {
	return errors.Is(err, ErrBadInput)
}
