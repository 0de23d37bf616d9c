package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested key does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrStoreUnavailable is returned when the store cannot be reached after
	// one reconnect-and-retry attempt. It is fatal to the calling operation.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrClosed is returned when an operation is issued on a closed client.
	ErrClosed = errors.New("store client closed")

	// ErrCorruptValue is returned when a stored value cannot be parsed into
	// the type its key layout promises (e.g. a non-integer stock entry).
	ErrCorruptValue = errors.New("corrupt stored value")

	// Entity-specific "not found" errors

	// ErrInvoiceNotFound indicates that no invoice was generated for an order.
	ErrInvoiceNotFound = fmt.Errorf("%w: invoice", ErrNotFound)

	// ErrOrderNotFound indicates that an order was never submitted.
	ErrOrderNotFound = fmt.Errorf("%w: order", ErrNotFound)

	// ErrStockNotFound indicates that a product has no stock entry.
	ErrStockNotFound = fmt.Errorf("%w: stock", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailableError checks if the error means the store could not be reached.
func IsUnavailableError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity or key involved (e.g., "stock:widget", "db=1")
	Operation string // The operation that failed (e.g., "get", "connect")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
