package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/store"
)

func TestDailyStockReportTask(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, e.orders.SetStock(ctx, "widget", 10))
	require.NoError(t, e.orders.SetStock(ctx, "gadget", 5))
	require.NoError(t, e.kv.Set(ctx, store.StockKey("broken"), "many", 0))
	require.NoError(t, e.kv.Set(ctx, store.OrderStatusKey(1), "processed", 0))

	task := NewDailyStockReportTask(e.kv, e.logger)
	value, err := task.Handle(ctx, nil)
	require.NoError(t, err)

	report, ok := value.(StockReport)
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"widget": 10, "gadget": 5}, report.Stock)
	assert.Equal(t, int64(15), report.Total)
	assert.Equal(t, []string{store.StockKey("broken")}, report.Unreadable)
}

func TestDailyStockReportTask_Empty(t *testing.T) {
	e := newTestEnv(t)

	value, err := NewDailyStockReportTask(e.kv, e.logger).Handle(context.Background(), nil)
	require.NoError(t, err)
	report := value.(StockReport)
	assert.Empty(t, report.Stock)
	assert.Zero(t, report.Total)
}

func TestCheckPendingOrdersTask(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	pending := domain.Order{ID: 11, Product: "widget", Quantity: 2, Email: "a@b.com"}
	created, err := e.orders.MarkPending(ctx, pending)
	require.NoError(t, err)
	require.True(t, created)

	// Processed and failed orders are left alone.
	require.NoError(t, e.kv.Set(ctx, store.OrderStatusKey(12), string(domain.OrderStatusProcessed), 0))
	require.NoError(t, e.kv.Set(ctx, store.OrderStatusKey(13), string(domain.OrderStatusFailed), 0))
	// Pending, but submitted before requests were stored.
	require.NoError(t, e.kv.Set(ctx, store.OrderStatusKey(14), string(domain.OrderStatusPending), 0))

	task := NewCheckPendingOrdersTask(e.kv, e.orders, e.queue, e.logger)
	value, err := task.Handle(ctx, nil)
	require.NoError(t, err)

	report := value.(PendingOrdersReport)
	assert.Equal(t, []int64{11}, report.Requeued)
	assert.Equal(t, []int64{14}, report.Skipped)

	jobs := e.queued(t, DefaultQueue)
	require.Len(t, jobs, 1)
	assert.Equal(t, TaskFulfillOrder, jobs[0].Name)

	var args FulfillOrderArgs
	require.NoError(t, jobs[0].Decode(&args))
	assert.Equal(t, FulfillOrderArgsFrom(pending), args)
}

func TestCheckPendingOrdersTask_RequeuedOrderCompletes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.orders.SetStock(ctx, "widget", 3))

	order := domain.Order{ID: 20, Product: "widget", Quantity: 2, Email: "a@b.com"}
	_, err := e.orders.MarkPending(ctx, order)
	require.NoError(t, err)

	_, err = NewCheckPendingOrdersTask(e.kv, e.orders, e.queue, e.logger).Handle(ctx, nil)
	require.NoError(t, err)

	jobs := e.queued(t, DefaultQueue)
	require.Len(t, jobs, 1)
	_, err = NewFulfillOrderTask(e.orders, e.queue, e.logger).Handle(ctx, jobs[0])
	require.NoError(t, err)

	status, err := e.orders.Status(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessed, status)
}

func TestDispatchOutboxTask(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.orders.SetStock(ctx, "widget", 10))

	fulfill := NewFulfillOrderTask(e.orders, e.queue, e.logger)
	for _, id := range []int64{1, 2} {
		order := domain.Order{ID: id, Product: "widget", Quantity: 1, Email: "a@b.com"}
		followUps, err := fulfill.followUps(order)
		require.NoError(t, err)
		_, err = e.orders.Reserve(ctx, order, followUps)
		require.NoError(t, err)
	}

	task := NewDispatchOutboxTask(e.kv, e.orders, e.queue, e.logger)
	value, err := task.Handle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, value)

	assert.Len(t, e.queued(t, PriorityQueue), 2)
	assert.Len(t, e.queued(t, DefaultQueue), 2)

	value, err = task.Handle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, value, "an empty outbox dispatches nothing")
}
