package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/orderflow/internal/task"
)

type recordingEnqueuer struct {
	mu    sync.Mutex
	names []string
	err   error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, name string, args any) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return uuid.Nil, e.err
	}
	e.names = append(e.names, name)
	return uuid.New(), nil
}

func (e *recordingEnqueuer) enqueued() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_Load(t *testing.T) {
	t.Parallel()

	s := New(&recordingEnqueuer{}, testLogger())
	require.NoError(t, s.Load(DefaultSchedule()))

	assert.Equal(t, []string{
		task.TaskCheckPendingOrders,
		task.TaskDailyStockReport,
		task.TaskDispatchOutbox,
	}, s.ListTasks())

	info := s.GetTaskInfo()
	assert.Len(t, info, 3)
}

func TestScheduler_LoadRejectsBadEntries(t *testing.T) {
	t.Parallel()

	s := New(&recordingEnqueuer{}, testLogger())
	err := s.Load(map[string]time.Duration{
		task.TaskDailyStockReport: 0,
		"":                        time.Minute,
		task.TaskDispatchOutbox:   time.Minute,
	})
	assert.Error(t, err)
	assert.Equal(t, []string{task.TaskDispatchOutbox}, s.ListTasks())
}

func TestScheduler_Replace(t *testing.T) {
	t.Parallel()

	s := New(&recordingEnqueuer{}, testLogger())
	require.NoError(t, s.AddIntervalTask(task.TaskDispatchOutbox, time.Minute))
	require.NoError(t, s.AddIntervalTask(task.TaskDispatchOutbox, 2*time.Hour))
	assert.Len(t, s.cron.Entries(), 1, "re-adding a task replaces its entry")

	info := s.GetTaskInfo()
	require.Len(t, info, 1)
	assert.Equal(t, task.TaskDispatchOutbox, info[0].Name)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), info[0].NextRun, time.Minute)
	assert.True(t, info[0].PrevRun.IsZero())
}

func TestScheduler_RunTaskOnlyEnqueues(t *testing.T) {
	t.Parallel()

	enq := &recordingEnqueuer{}
	s := New(enq, testLogger())
	s.runTask(task.TaskDailyStockReport)
	assert.Equal(t, []string{task.TaskDailyStockReport}, enq.enqueued())

	enq.err = errors.New("store unavailable")
	s.runTask(task.TaskDailyStockReport)
	assert.Len(t, enq.enqueued(), 1)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	enq := &recordingEnqueuer{}
	s := New(enq, testLogger())
	require.NoError(t, s.AddIntervalTask(task.TaskDispatchOutbox, time.Second))

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.running)

	require.Eventually(t, func() bool { return len(enq.enqueued()) > 0 },
		5*time.Second, 50*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.running)
}
