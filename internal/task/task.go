package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orderflow/orderflow/internal/domain"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	// TaskStatusRetry means the last attempt failed and another is scheduled.
	TaskStatusRetry TaskStatus = "retry"
)

// IsFinal reports whether no further attempt will change the status.
func (s TaskStatus) IsFinal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task names. These are the routing and schedule keys.
const (
	TaskFulfillOrder       = "fulfill_order"
	TaskSendNotification   = "send_notification"
	TaskGenerateInvoice    = "generate_invoice"
	TaskDailyStockReport   = "daily_stock_report"
	TaskCheckPendingOrders = "check_pending_orders"
	TaskDispatchOutbox     = "dispatch_outbox"
)

// Job is the envelope that travels through the broker.
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"task"`
	Queue      string          `json:"queue"`
	Args       json.RawMessage `json:"args,omitempty"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode unmarshals the job arguments into v. Malformed arguments are bad input.
func (j *Job) Decode(v any) error {
	if len(j.Args) == 0 {
		return fmt.Errorf("%w: task %s has no arguments", domain.ErrBadInput, j.Name)
	}
	if err := json.Unmarshal(j.Args, v); err != nil {
		return fmt.Errorf("%w: task %s arguments: %v", domain.ErrBadInput, j.Name, err)
	}
	return nil
}

func (j *Job) encode() (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("failed to encode job %s: %w", j.ID, err)
	}
	return string(data), nil
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job envelope: %w", err)
	}
	if job.ID == uuid.Nil || job.Name == "" {
		return nil, fmt.Errorf("job envelope missing id or task name")
	}
	return &job, nil
}

// Handler executes one task. The returned value is stored as the task result.
type Handler interface {
	Handle(ctx context.Context, job *Job) (any, error)
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, job *Job) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job *Job) (any, error) {
	return f(ctx, job)
}

// Enqueuer submits tasks by name.
// Version: 1.0
type Enqueuer interface {
	// Enqueue publishes a task for asynchronous execution and returns its ID
	// before any execution begins.
	Enqueue(ctx context.Context, name string, args any) (uuid.UUID, error)
}

// Dispatcher splits enqueueing into building an envelope and publishing it,
// so an envelope can be persisted first and published later.
// Version: 1.0
type Dispatcher interface {
	Enqueuer

	// Prepare builds a routed envelope without publishing it.
	Prepare(name string, args any) (*Job, error)

	// Submit publishes a prepared envelope.
	Submit(ctx context.Context, job *Job) error
}
