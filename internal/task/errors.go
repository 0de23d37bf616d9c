package task

import (
	"errors"

	"github.com/orderflow/orderflow/internal/domain"
)

var (
	// ErrUnknownTask is returned when no handler is registered for a task name.
	ErrUnknownTask = errors.New("unknown task")

	// ErrTaskNotFound is returned when no result record exists for a task ID,
	// either because it never existed or its retention expired.
	ErrTaskNotFound = errors.New("task not found")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// DefaultRetryPolicy retries everything except permanent errors, malformed
// input, business rejections and unknown task names.
func DefaultRetryPolicy(err error) bool {
	switch {
	case IsPermanent(err),
		domain.IsBadInput(err),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, ErrUnknownTask):
		return false
	}
	return true
}
