package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/orderflow/orderflow/internal/task"
)

// enqueueTimeout bounds a single scheduled enqueue.
const enqueueTimeout = 30 * time.Second

// DefaultSchedule is the periodic work the system runs when none is configured.
func DefaultSchedule() map[string]time.Duration {
	return map[string]time.Duration{
		task.TaskDailyStockReport:   24 * time.Hour,
		task.TaskCheckPendingOrders: 5 * time.Minute,
		task.TaskDispatchOutbox:     time.Minute,
	}
}

// Scheduler enqueues tasks at fixed intervals using robfig/cron.
// It never runs task logic itself; workers pick up what it enqueues.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer task.Enqueuer
	log      *slog.Logger
	tasks    map[string]cron.EntryID
	mu       sync.RWMutex
	running  bool
}

// New creates a scheduler that enqueues through enqueuer.
func New(enqueuer task.Enqueuer, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		enqueuer: enqueuer,
		log:      log.With("component", "scheduler"),
		tasks:    make(map[string]cron.EntryID),
	}
}

// Load registers every entry of schedule, replacing entries with the same name.
func (s *Scheduler) Load(schedule map[string]time.Duration) error {
	var errs []error
	for name, interval := range schedule {
		if err := s.AddIntervalTask(name, interval); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start begins the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.cron.Start()
	s.running = true
	s.log.Info("scheduler started", slog.Int("tasks", len(s.tasks)))

	return nil
}

// Stop waits for in-progress enqueues to finish, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.log.Info("scheduler stopped gracefully")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timeout")
	}

	s.running = false
	return nil
}

// AddIntervalTask enqueues the named task every interval.
func (s *Scheduler) AddIntervalTask(name string, interval time.Duration) error {
	if name == "" {
		return errors.New("scheduled task needs a name")
	}
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s for %s", interval, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.tasks[name]; ok {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
	}

	entryID, err := s.cron.AddFunc("@every "+interval.String(), func() {
		s.runTask(name)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}

	s.tasks[name] = entryID
	s.log.Info("added interval task",
		slog.String("name", name),
		slog.Duration("interval", interval))

	return nil
}

func (s *Scheduler) runTask(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	id, err := s.enqueuer.Enqueue(ctx, name, nil)
	if err != nil {
		s.log.Error("failed to enqueue scheduled task",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return
	}

	s.log.Debug("scheduled task enqueued",
		slog.String("name", name),
		slog.String("task_id", id.String()))
}

// ListTasks returns the names of all scheduled tasks, sorted.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TaskInfo represents information about a scheduled task
type TaskInfo struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run,omitempty"`
}

// GetTaskInfo returns the next and previous run of every scheduled task.
// Before the scheduler starts, NextRun is computed from now.
func (s *Scheduler) GetTaskInfo() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := make([]TaskInfo, 0, len(s.tasks))
	for name, entryID := range s.tasks {
		entry := s.cron.Entry(entryID)
		if !entry.Valid() {
			continue
		}
		next := entry.Next
		if next.IsZero() {
			next = entry.Schedule.Next(time.Now())
		}
		info = append(info, TaskInfo{
			Name:    name,
			NextRun: next,
			PrevRun: entry.Prev,
		})
	}
	sort.Slice(info, func(i, j int) bool { return info[i].Name < info[j].Name })
	return info
}
