package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/orderflow/orderflow/internal/api/shared"
	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/store"
	"github.com/orderflow/orderflow/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors

	switch {
	// Not found errors
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, task.ErrTaskNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, domain.ErrBadInput),
		errors.As(err, &verrs):
		return http.StatusBadRequest

	// Business rejections
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict

	// The store or the queue cannot take work right now
	case errors.Is(err, store.ErrStoreUnavailable),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var verr *domain.ValidationError
	switch {
	case errors.Is(err, store.ErrInvoiceNotFound):
		return "Invoice not found"
	case errors.Is(err, store.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, store.ErrStockNotFound):
		return "Product not found"
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, task.ErrTaskNotFound):
		return "Task not found"

	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid %s: %s", verr.Field, verr.Message)
	case errors.Is(err, domain.ErrBadInput):
		return "Invalid request"

	case errors.Is(err, domain.ErrInsufficientStock):
		return "Insufficient stock"

	case errors.Is(err, task.ErrQueueFull):
		return "Too many pending tasks, try again later"
	case errors.Is(err, store.ErrStoreUnavailable),
		errors.Is(err, task.ErrQueueClosed):
		return "Service temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err, logging the
// redacted details. fallback replaces the generic message of a 500.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", jsonFieldName(first.Field()), getValidationTagMessage(first.Tag()))
	}

	// Fall back to a generic validation error message
	return "Validation error"
}

// jsonFieldName turns a struct field name like OrderID into order_id.
func jsonFieldName(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		upper := r >= 'A' && r <= 'Z'
		if upper && i > 0 {
			prevLower := runes[i-1] >= 'a' && runes[i-1] <= 'z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if prevLower || nextLower {
				b.WriteByte('_')
			}
		}
		if upper {
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "contains":
		return "invalid email format"
	case "gt", "gte", "min":
		return "too small"
	case "max":
		return "too long"
	default:
		return "validation failed"
	}
}
