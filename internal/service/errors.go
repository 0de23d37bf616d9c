package service

import (
	"errors"
	"fmt"

	"github.com/orderflow/orderflow/internal/store"
	"github.com/orderflow/orderflow/internal/task"
)

// Common service errors. Callers check them with errors.Is; the API layer maps
// them to HTTP status codes.
var (
	// ErrTaskNotFound indicates that no result exists for a task ID, either
	// because it was never enqueued or its retention expired.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = fmt.Errorf("%w: task", store.ErrNotFound)

	// ErrInvoiceNotFound indicates that no usable invoice was generated for an order.
	// API layer should map this to HTTP 404 Not Found.
	ErrInvoiceNotFound = store.ErrInvoiceNotFound

	// ErrOrderNotFound indicates that an order was never submitted.
	ErrOrderNotFound = store.ErrOrderNotFound

	// ErrStockNotFound indicates that a product was never provisioned.
	ErrStockNotFound = store.ErrStockNotFound
)

// OrderServiceError wraps errors from the order service with context.
type OrderServiceError struct {
	// Operation is the operation that failed (e.g., "submit_order", "get_invoice")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for OrderServiceError.
func (e *OrderServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("order service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *OrderServiceError) Unwrap() error {
	return e.Err
}

// NewOrderServiceError creates a new OrderServiceError.
// It returns known sentinel errors directly without wrapping.
func NewOrderServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, task.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, store.ErrInvoiceNotFound):
		return ErrInvoiceNotFound
	case errors.Is(err, store.ErrOrderNotFound):
		return ErrOrderNotFound
	case errors.Is(err, store.ErrStockNotFound):
		return ErrStockNotFound
	}

	return &OrderServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
