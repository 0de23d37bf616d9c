package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orderflow/orderflow/internal/api"
	"github.com/orderflow/orderflow/internal/config"
	"github.com/orderflow/orderflow/internal/platform/invoice"
	"github.com/orderflow/orderflow/internal/platform/mailer"
	"github.com/orderflow/orderflow/internal/platform/redisstore"
	"github.com/orderflow/orderflow/internal/scheduler"
	"github.com/orderflow/orderflow/internal/service"
	"github.com/orderflow/orderflow/internal/task"
)

// shutdownTimeout bounds draining the HTTP server and the scheduler.
const shutdownTimeout = 10 * time.Second

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// Redis
	registry *redisstore.Registry
	brokerKV *redisstore.Client
	backend  *redisstore.Client

	// Task runtime
	broker    *task.Broker
	results   *task.ResultStore
	queue     *task.TaskQueue
	runner    *task.TaskRunner
	scheduler *scheduler.Scheduler

	orders       *redisstore.OrderStore
	orderService service.OrderService
	handler      http.Handler
}

// newApplication wires every component. Nothing connects to Redis here;
// clients dial on first use.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	app.registry = redisstore.NewRegistry(redisstore.Options{
		Addr:                cfg.Redis.Addr,
		Password:            cfg.Redis.Password,
		MaxConnections:      cfg.Redis.MaxConnections,
		SocketTimeout:       cfg.Redis.SocketTimeout,
		DialTimeout:         cfg.Redis.DialTimeout,
		HealthCheckInterval: cfg.Redis.HealthCheckInterval,
		KeepAlive:           cfg.Redis.KeepAlive,
	}, logger)
	app.brokerKV = app.registry.Client(cfg.Redis.BrokerDB)
	app.backend = app.registry.Client(cfg.Redis.BackendDB)

	routes := task.DefaultRoutes()
	maps.Copy(routes, cfg.Task.Routes)

	app.broker = task.NewBroker(app.brokerKV, cfg.Task.VisibilityTimeout, logger)
	app.results = task.NewResultStore(app.backend, cfg.Task.ResultTTL)
	app.queue = task.NewTaskQueue(app.broker, app.results, routes, task.TaskQueueConfig{
		MaxQueueLength: cfg.Task.MaxQueueLength,
	}, logger)
	app.orders = redisstore.NewOrderStore(app.backend, logger)

	app.runner = setupTaskRunner(app)

	app.scheduler = scheduler.New(app.queue, logger)
	schedule := scheduler.DefaultSchedule()
	maps.Copy(schedule, cfg.Task.Schedule)
	if err := app.scheduler.Load(schedule); err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	var err error
	app.orderService, err = service.NewOrderService(app.orders, app.backend, app.queue, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create order service: %w", err)
	}

	app.handler = api.NewRouter(api.NewOrderHandler(app.orderService, logger), app.ping, logger)

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupTaskRunner builds the runner and registers every pipeline handler.
func setupTaskRunner(app *application) *task.TaskRunner {
	cfg := app.config
	log := app.logger

	runner := task.NewTaskRunner(app.broker, app.results, task.TaskRunnerConfig{
		WorkerCount:  cfg.Task.WorkerCount,
		Queues:       cfg.Task.Queues,
		PollTimeout:  cfg.Task.PollTimeout,
		TaskTimeout:  cfg.Task.TaskTimeout,
		MaxRetries:   cfg.Task.MaxRetries,
		RetryBackoff: cfg.Task.RetryBackoff,
	}, log)

	sender := mailer.New(mailer.Config{
		Enabled:       cfg.Email.Enabled,
		MailgunDomain: cfg.Email.MailgunDomain,
		MailgunAPIKey: cfg.Email.MailgunAPIKey,
		FromEmail:     cfg.Email.FromEmail,
		FromName:      cfg.Email.FromName,
	}, log)

	runner.Register(task.TaskFulfillOrder, task.NewFulfillOrderTask(app.orders, app.queue, log))
	runner.Register(task.TaskSendNotification, task.NewNotificationTask(sender, log))
	runner.Register(task.TaskGenerateInvoice, task.NewInvoiceTask(app.backend, invoice.NewPDFRenderer(), log))
	runner.Register(task.TaskDailyStockReport, task.NewDailyStockReportTask(app.backend, log))
	runner.Register(task.TaskCheckPendingOrders, task.NewCheckPendingOrdersTask(app.backend, app.orders, app.queue, log))
	runner.Register(task.TaskDispatchOutbox, task.NewDispatchOutboxTask(app.backend, app.orders, app.queue, log))

	runner.SetErrorHandler(func(job *task.Job, err error) {
		log.Error("task failed permanently",
			"task_id", job.ID,
			"task", job.Name,
			"attempt", job.Attempt,
			"error", err)
	})

	return runner
}

// ping reports whether both Redis databases answer.
func (app *application) ping(ctx context.Context) error {
	if err := app.brokerKV.Ping(ctx); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	if err := app.backend.Ping(ctx); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	return nil
}

// run starts the selected roles and blocks until ctx ends or one of them
// fails. Each role is stopped before run returns.
func (app *application) run(ctx context.Context, roles role) error {
	g, ctx := errgroup.WithContext(ctx)

	if roles&roleWorker != 0 {
		if err := app.runner.Start(); err != nil {
			return fmt.Errorf("failed to start task runner: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			app.runner.Stop()
			return nil
		})
	}

	if roles&roleScheduler != 0 {
		if err := app.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for _, info := range app.scheduler.GetTaskInfo() {
			app.logger.Info("scheduled task", "name", info.Name, "next_run", info.NextRun)
		}
		g.Go(func() error {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.scheduler.Stop(stopCtx)
		})
	}

	if roles&roleServer != 0 {
		g.Go(func() error {
			return app.serveHTTP(ctx)
		})
	}

	return g.Wait()
}

// serveHTTP runs the HTTP server until ctx ends, then shuts it down gracefully.
func (app *application) serveHTTP(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		app.logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Server shutdown completed")
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.queue != nil {
		app.queue.Close()
	}
	if app.registry != nil {
		if err := app.registry.Close(); err != nil {
			app.logger.Error("Error closing redis clients", "error", err)
		}
	}
	app.logger.Info("Application shutdown completed")
}
