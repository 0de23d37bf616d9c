package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/orderflow/internal/api"
	"github.com/orderflow/orderflow/internal/config"
	"github.com/orderflow/orderflow/internal/store"
	"github.com/orderflow/orderflow/internal/task"
)

func testApplication(t *testing.T) (*application, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	t.Setenv("ORDERFLOW_REDIS_ADDR", mr.Addr())
	t.Setenv("ORDERFLOW_TASK_POLL_TIMEOUT", "1s")
	t.Setenv("ORDERFLOW_TASK_RETRY_BACKOFF", "10ms")

	cfg, err := config.Load("")
	require.NoError(t, err)

	app, err := newApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app, mr
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestNewApplication(t *testing.T) {
	app, _ := testApplication(t)

	assert.ElementsMatch(t,
		[]string{task.TaskDailyStockReport, task.TaskCheckPendingOrders, task.TaskDispatchOutbox},
		app.scheduler.ListTasks())
	assert.NotSame(t, app.brokerKV, app.backend, "broker and backend use separate databases")

	rec := serve(t, app.handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApplication_PartialScheduleKeepsDefaults(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("ORDERFLOW_REDIS_ADDR", mr.Addr())

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Task.Schedule = map[string]time.Duration{task.TaskDispatchOutbox: 30 * time.Second}

	app, err := newApplication(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(app.cleanup)

	assert.ElementsMatch(t,
		[]string{task.TaskDailyStockReport, task.TaskCheckPendingOrders, task.TaskDispatchOutbox},
		app.scheduler.ListTasks())
}

func TestApplication_HealthReportsRedisDown(t *testing.T) {
	app, mr := testApplication(t)
	mr.Close()

	rec := serve(t, app.handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestApplication_FulfillsSubmittedOrder(t *testing.T) {
	app, mr := testApplication(t)

	rec := serve(t, app.handler, http.MethodPut, "/api/stock/widget", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.run(ctx, roleWorker) }()

	rec = serve(t, app.handler, http.MethodPost, "/api/orders",
		`{"order_id":11,"product":"widget","quantity":2,"email":"buyer@example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted api.TaskAcceptedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))

	require.Eventually(t, func() bool {
		rec := serve(t, app.handler, http.MethodGet, "/api/status/"+accepted.TaskID, "")
		var status api.TaskStatusResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &status)
		return status.Status == string(task.TaskStatusCompleted)
	}, 10*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		return mr.DB(app.config.Redis.BackendDB).Exists(store.InvoiceKey(11))
	}, 10*time.Second, 50*time.Millisecond)

	rec = serve(t, app.handler, http.MethodGet, "/api/orders/11", "")
	assert.JSONEq(t, `{"order_id":11,"status":"processed"}`, rec.Body.String())

	rec = serve(t, app.handler, http.MethodGet, "/api/invoice/11", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = serve(t, app.handler, http.MethodGet, "/api/stock/widget", "")
	assert.JSONEq(t, `{"product":"widget","quantity":3}`, rec.Body.String())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestApplication_RunSchedulerOnly(t *testing.T) {
	app, _ := testApplication(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.run(ctx, roleScheduler) }()

	info := app.scheduler.GetTaskInfo()
	require.Len(t, info, 3)
	for _, entry := range info {
		assert.True(t, entry.NextRun.After(time.Now().Add(-time.Second)), "%s has a next run", entry.Name)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"server", "worker", "scheduler", "all"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))

	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"worker", "--config", t.TempDir() + "/missing.yaml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}
