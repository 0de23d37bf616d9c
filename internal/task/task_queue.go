package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the TaskQueue
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// TaskQueueConfig holds producer-side limits.
type TaskQueueConfig struct {
	// MaxQueueLength refuses new work once a queue holds this many jobs.
	// Zero or negative means unbounded.
	MaxQueueLength int64
}

// TaskQueue is the producer side of the runtime. It routes a task by name,
// records a pending result and publishes the envelope. It is safe for
// concurrent use.
type TaskQueue struct {
	broker  *Broker
	results *ResultStore
	routes  Routes
	config  TaskQueueConfig
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewTaskQueue creates a producer publishing through broker.
func NewTaskQueue(
	broker *Broker,
	results *ResultStore,
	routes Routes,
	config TaskQueueConfig,
	logger *slog.Logger,
) *TaskQueue {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &TaskQueue{
		broker:  broker,
		results: results,
		routes:  routes,
		config:  config,
		logger:  logger.With("component", "task_queue"),
	}
}

// Enqueue publishes a task for asynchronous execution and returns its ID
// before any execution begins.
func (q *TaskQueue) Enqueue(ctx context.Context, name string, args any) (uuid.UUID, error) {
	job, err := q.Prepare(name, args)
	if err != nil {
		return uuid.Nil, err
	}
	if err := q.Submit(ctx, job); err != nil {
		return uuid.Nil, err
	}
	return job.ID, nil
}

// EnqueueIn publishes a task that becomes runnable after delay.
func (q *TaskQueue) EnqueueIn(ctx context.Context, name string, args any, delay time.Duration) (uuid.UUID, error) {
	job, err := q.Prepare(name, args)
	if err != nil {
		return uuid.Nil, err
	}
	if err := q.checkOpen(); err != nil {
		return uuid.Nil, err
	}
	if err := q.results.Save(ctx, newResult(job, TaskStatusPending)); err != nil {
		return uuid.Nil, err
	}
	if err := q.broker.PublishAt(ctx, job, time.Now().Add(delay)); err != nil {
		q.logger.Error("failed to schedule task", "task_name", name, "error", err)
		return uuid.Nil, err
	}
	TasksEnqueued.WithLabelValues(job.Name, job.Queue).Inc()
	q.logger.Debug("task scheduled", "task_id", job.ID, "task_name", name, "delay", delay)
	return job.ID, nil
}

// Prepare builds a routed envelope with a fresh ID.
func (q *TaskQueue) Prepare(name string, args any) (*Job, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty task name", ErrUnknownTask)
	}
	var raw json.RawMessage
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode arguments of %s: %w", name, err)
		}
		raw = data
	}
	return &Job{
		ID:         uuid.New(),
		Name:       name,
		Queue:      q.routes.QueueFor(name),
		Args:       raw,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Submit records a pending result for job and publishes it.
func (q *TaskQueue) Submit(ctx context.Context, job *Job) error {
	if err := q.checkOpen(); err != nil {
		return err
	}

	if q.config.MaxQueueLength > 0 {
		n, err := q.broker.Len(ctx, job.Queue)
		if err != nil {
			return err
		}
		if n >= q.config.MaxQueueLength {
			return fmt.Errorf("%w: %s holds %d jobs", ErrQueueFull, job.Queue, n)
		}
	}

	if err := q.results.Save(ctx, newResult(job, TaskStatusPending)); err != nil {
		return err
	}
	if err := q.broker.Publish(ctx, job); err != nil {
		q.logger.Error("failed to publish task",
			"task_id", job.ID,
			"task_name", job.Name,
			"error", err)
		return err
	}

	TasksEnqueued.WithLabelValues(job.Name, job.Queue).Inc()
	q.logger.Debug("task enqueued",
		"task_id", job.ID,
		"task_name", job.Name,
		"queue", job.Queue)
	return nil
}

// Result returns the stored result of a task.
func (q *TaskQueue) Result(ctx context.Context, id uuid.UUID) (*Result, error) {
	return q.results.Get(ctx, id)
}

// Close stops accepting new tasks. Jobs already published are unaffected.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.logger.Info("task queue closed")
	}
}

func (q *TaskQueue) checkOpen() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	return nil
}

var _ Dispatcher = (*TaskQueue)(nil)
