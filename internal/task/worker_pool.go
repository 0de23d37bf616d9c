package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// DeliverySource hands out reserved jobs, one queue at a time.
type DeliverySource interface {
	// Reserve waits up to timeout for a job on queue and returns nil if none arrived.
	Reserve(ctx context.Context, queue string, timeout time.Duration) (*Delivery, error)
}

// ProcessFunc handles one reserved job. It is responsible for acking it.
type ProcessFunc func(ctx context.Context, d *Delivery)

// WorkerPool manages a pool of worker goroutines that reserve jobs from a
// set of queues. It handles graceful shutdown and worker lifecycle.
type WorkerPool struct {
	// source provides reserved jobs
	source DeliverySource

	// queues are served by workerCount goroutines each
	queues []string

	// workerCount is the number of concurrent workers per queue
	workerCount int

	// pollTimeout bounds each blocking reserve so shutdown is noticed
	pollTimeout time.Duration

	// process runs each reserved job
	process ProcessFunc

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is used for cancellation and shutdown signaling
	ctx context.Context

	// cancel is the function to call to cancel the context
	cancel context.CancelFunc

	// logger for structured logging
	logger *slog.Logger

	// errorHandler is called when processing a job panics.
	// If nil, panics are only logged
	errorHandler func(d *Delivery, err error)
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines serve each queue.
	// If zero or negative, defaults to 1
	WorkerCount int

	// Queues lists the queues to serve. If empty, only the default queue is served.
	Queues []string

	// PollTimeout bounds each blocking reserve. Values under one second are raised to one second.
	PollTimeout time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
		Queues:      []string{PriorityQueue, DefaultQueue},
		PollTimeout: 2 * time.Second,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(
	source DeliverySource,
	config WorkerPoolConfig,
	process ProcessFunc,
	logger *slog.Logger,
) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{DefaultQueue}
	}
	pollTimeout := config.PollTimeout
	if pollTimeout < time.Second {
		pollTimeout = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		source:      source,
		queues:      queues,
		workerCount: workerCount,
		pollTimeout: pollTimeout,
		process:     process,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// SetErrorHandler allows setting a custom handler for jobs whose processing panicked
func (p *WorkerPool) SetErrorHandler(handler func(d *Delivery, err error)) {
	p.errorHandler = handler
}

// Start launches the workers.
func (p *WorkerPool) Start() {
	p.logger.Info("starting worker pool",
		"workers_per_queue", p.workerCount,
		"queues", p.queues)

	for _, queue := range p.queues {
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(queue, i)
		}
	}
}

// Stop signals every worker and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(queue string, id int) {
	defer p.wg.Done()

	logger := p.logger.With("queue", queue, "worker_id", id)
	logger.Debug("starting worker")

	for {
		if p.ctx.Err() != nil {
			logger.Debug("stopping worker")
			return
		}

		d, err := p.source.Reserve(p.ctx, queue, p.pollTimeout)
		if err != nil {
			if p.ctx.Err() != nil {
				logger.Debug("stopping worker")
				return
			}
			logger.Error("failed to reserve job", "error", err)
			select {
			case <-p.ctx.Done():
			case <-time.After(p.pollTimeout):
			}
			continue
		}
		if d == nil {
			continue
		}

		p.run(d, logger)
	}
}

// run executes one job so that a panic fails the job instead of the worker.
func (p *WorkerPool) run(d *Delivery, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker recovered panic: %v", r)
			logger.Error("job processing panicked",
				"task_id", d.Job.ID,
				"task_name", d.Job.Name,
				"panic", r,
				"stack", string(debug.Stack()))
			if p.errorHandler != nil {
				p.errorHandler(d, err)
			}
		}
	}()

	// In-flight jobs run to completion after Stop; they get their own context.
	p.process(context.WithoutCancel(p.ctx), d)
}
