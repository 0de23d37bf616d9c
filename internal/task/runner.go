package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orderflow/orderflow/internal/platform/logger"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers serve each queue
	WorkerCount int

	// Queues lists the queues this runner consumes
	Queues []string

	// PollTimeout bounds each blocking reserve
	PollTimeout time.Duration

	// TaskTimeout bounds a single handler execution
	TaskTimeout time.Duration

	// MaxRetries is how many times a retryable failure is re-attempted
	MaxRetries int

	// RetryBackoff is multiplied by the attempt number to delay each retry
	RetryBackoff time.Duration

	// PromoteInterval defines how often delayed jobs are moved onto their queues
	PromoteInterval time.Duration

	// StuckTaskCheckInterval defines how often to look for reserved jobs whose
	// lease expired. If zero, defaults to 1 minute
	StuckTaskCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:            2,
		Queues:                 []string{PriorityQueue, DefaultQueue},
		PollTimeout:            2 * time.Second,
		TaskTimeout:            30 * time.Minute,
		MaxRetries:             3,
		RetryBackoff:           10 * time.Second,
		PromoteInterval:        time.Second,
		StuckTaskCheckInterval: time.Minute,
	}
}

// TaskRunner consumes jobs from the broker and runs the registered handlers.
type TaskRunner struct {
	broker     *Broker
	results    *ResultStore
	config     TaskRunnerConfig
	logger     *slog.Logger
	pool       *WorkerPool
	retryable  func(err error) bool
	errHandler func(job *Job, err error)

	mu       sync.RWMutex
	handlers map[string]Handler

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(broker *Broker, results *ResultStore, config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.StuckTaskCheckInterval <= 0 {
		config.StuckTaskCheckInterval = time.Minute
	}
	if config.PromoteInterval <= 0 {
		config.PromoteInterval = time.Second
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 30 * time.Minute
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	r := &TaskRunner{
		broker:     broker,
		results:    results,
		config:     config,
		logger:     logger,
		retryable:  DefaultRetryPolicy,
		handlers:   make(map[string]Handler),
		ctx:        ctx,
		cancelFunc: cancel,
		errHandler: func(job *Job, err error) {
			// Default error handler just logs the error
			logger.Error("task execution failed",
				"task_id", job.ID,
				"task_name", job.Name,
				"error", err)
		},
	}

	r.pool = NewWorkerPool(broker, WorkerPoolConfig{
		WorkerCount: config.WorkerCount,
		Queues:      config.Queues,
		PollTimeout: config.PollTimeout,
	}, r.process, logger)
	r.pool.SetErrorHandler(r.handlePanic)

	return r
}

// Register binds a handler to a task name. Registering a name twice replaces
// the earlier handler.
func (r *TaskRunner) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// SetRetryPolicy replaces the predicate deciding whether a failure is retried.
// Errors marked Permanent are never retried regardless.
func (r *TaskRunner) SetRetryPolicy(retryable func(err error) bool) {
	r.retryable = retryable
}

// SetErrorHandler allows setting a custom error handler function, called
// once per job that fails for good.
func (r *TaskRunner) SetErrorHandler(handler func(job *Job, err error)) {
	r.errHandler = handler
}

// Start launches the workers, the delayed-job promoter and the stuck-job monitor.
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("task runner already started")
	}
	if len(r.handlers) == 0 {
		return errors.New("task runner has no registered handlers")
	}
	r.started = true

	r.pool.Start()

	r.wg.Add(2)
	go r.promoter()
	go r.stuckTaskMonitor()

	r.logger.Info("task runner started",
		"queues", r.pool.queues,
		"handlers", len(r.handlers),
		"max_retries", r.config.MaxRetries)
	return nil
}

// Stop gracefully shuts down the task runner, letting in-flight jobs finish.
func (r *TaskRunner) Stop() {
	r.cancelFunc()
	r.pool.Stop()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

func (r *TaskRunner) handler(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// process handles execution of a single reserved job
func (r *TaskRunner) process(ctx context.Context, d *Delivery) {
	job := d.Job
	taskLogger := r.logger.With(
		"task_id", job.ID,
		"task_name", job.Name,
		"queue", d.Queue,
		"attempt", job.Attempt,
	)

	res := newResult(job, TaskStatusProcessing)
	if err := r.results.Save(ctx, res); err != nil {
		taskLogger.Error("failed to update task status to processing", "error", err)
	}

	taskLogger.Info("processing task")

	var value any
	var err error
	h, ok := r.handler(job.Name)
	if !ok {
		err = Permanent(fmt.Errorf("%w: %s", ErrUnknownTask, job.Name))
	} else {
		runCtx, cancel := context.WithTimeout(ctx, r.config.TaskTimeout)
		runCtx = logger.WithLogger(runCtx, taskLogger)
		start := time.Now()
		value, err = r.execute(runCtx, h, job)
		TaskDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
		cancel()
	}

	if err == nil {
		res.Status = TaskStatusCompleted
		if encErr := res.finish(value, nil); encErr != nil {
			err = Permanent(encErr)
		}
	}

	if err == nil {
		taskLogger.Info("task completed successfully")
	} else if r.shouldRetry(job, err) {
		res.Status = TaskStatusRetry
		_ = res.finish(nil, err)
		if !r.scheduleRetry(ctx, job, err, taskLogger) {
			// Left unacked: the lease expires and the job is redelivered.
			return
		}
	} else {
		res.Status = TaskStatusFailed
		_ = res.finish(nil, err)
		r.errHandler(job, err)
	}

	TasksProcessed.WithLabelValues(job.Name, string(res.Status)).Inc()
	if saveErr := r.results.Save(ctx, res); saveErr != nil {
		taskLogger.Error("failed to store task result", "status", res.Status, "error", saveErr)
	}
	if ackErr := r.broker.Ack(ctx, d); ackErr != nil {
		taskLogger.Error("failed to ack task", "error", ackErr)
	}
}

// execute runs h, turning a panic into a permanent failure.
func (r *TaskRunner) execute(ctx context.Context, h Handler, job *Job) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = Permanent(fmt.Errorf("task %s panicked: %v", job.Name, p))
		}
	}()
	return h.Handle(ctx, job)
}

func (r *TaskRunner) shouldRetry(job *Job, err error) bool {
	if IsPermanent(err) || job.Attempt >= r.config.MaxRetries {
		return false
	}
	return r.retryable(err)
}

func (r *TaskRunner) scheduleRetry(ctx context.Context, job *Job, cause error, taskLogger *slog.Logger) bool {
	next := *job
	next.Attempt = job.Attempt + 1
	delay := r.config.RetryBackoff * time.Duration(next.Attempt)

	if err := r.broker.PublishAt(ctx, &next, time.Now().Add(delay)); err != nil {
		taskLogger.Error("failed to schedule retry", "cause", cause, "error", err)
		return false
	}
	taskLogger.Warn("task failed, retry scheduled",
		"error", cause,
		"next_attempt", next.Attempt,
		"delay", delay)
	return true
}

// handlePanic records a job whose processing panicked outside the handler.
func (r *TaskRunner) handlePanic(d *Delivery, err error) {
	ctx := context.Background()
	res := newResult(d.Job, TaskStatusFailed)
	_ = res.finish(nil, err)
	if saveErr := r.results.Save(ctx, res); saveErr != nil {
		r.logger.Error("failed to store task result", "task_id", d.Job.ID, "error", saveErr)
	}
	if ackErr := r.broker.Ack(ctx, d); ackErr != nil {
		r.logger.Error("failed to ack task", "task_id", d.Job.ID, "error", ackErr)
	}
	TasksProcessed.WithLabelValues(d.Job.Name, string(TaskStatusFailed)).Inc()
	r.errHandler(d.Job, err)
}

// promoter periodically moves delayed jobs whose time has come onto their queues
func (r *TaskRunner) promoter() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-ticker.C:
			n, err := r.broker.PromoteDue(r.ctx, now, 100)
			if err != nil {
				if r.ctx.Err() == nil {
					r.logger.Error("failed to promote delayed tasks", "error", err)
				}
				continue
			}
			if n > 0 {
				r.logger.Debug("promoted delayed tasks", "count", n)
			}
		}
	}
}

// stuckTaskMonitor periodically returns reserved jobs whose lease expired to
// their queues
func (r *TaskRunner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.reclaimStuck()
		}
	}
}

func (r *TaskRunner) reclaimStuck() {
	for _, queue := range r.pool.queues {
		n, err := r.broker.ReclaimExpired(r.ctx, queue)
		if err != nil {
			if r.ctx.Err() == nil {
				r.logger.Error("failed to check for stuck tasks", "queue", queue, "error", err)
			}
			continue
		}
		if n > 0 {
			TasksReclaimed.WithLabelValues(queue).Add(float64(n))
			r.logger.Info("requeued stuck tasks", "queue", queue, "count", n)
		}
	}
}
