package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/platform/invoice"
	"github.com/orderflow/orderflow/internal/platform/redisstore"
	"github.com/orderflow/orderflow/internal/store"
	"github.com/orderflow/orderflow/internal/task"
	"github.com/orderflow/orderflow/internal/testutils"
)

type testEnv struct {
	redis   *testutils.RedisEnv
	logger  *slog.Logger
	backend *redisstore.Client
	orders  *redisstore.OrderStore
	queue   *task.TaskQueue
	svc     OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := testutils.DiscardLogger()
	env := testutils.NewRedisEnv(t, logger)

	broker := task.NewBroker(env.Broker, time.Minute, logger)
	results := task.NewResultStore(env.Backend, time.Hour)
	queue := task.NewTaskQueue(broker, results, task.DefaultRoutes(), task.TaskQueueConfig{}, logger)
	orders := redisstore.NewOrderStore(env.Backend, logger)

	svc, err := NewOrderService(orders, env.Backend, queue, logger)
	require.NoError(t, err)

	return &testEnv{redis: env, logger: logger, backend: env.Backend, orders: orders, queue: queue, svc: svc}
}

func TestNewOrderService_RequiresDependencies(t *testing.T) {
	e := newTestEnv(t)

	_, err := NewOrderService(nil, e.backend, e.queue, e.logger)
	assert.Error(t, err)
	_, err = NewOrderService(e.orders, nil, e.queue, e.logger)
	assert.Error(t, err)
	_, err = NewOrderService(e.orders, e.backend, nil, e.logger)
	assert.Error(t, err)

	svc, err := NewOrderService(e.orders, e.backend, e.queue, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestSubmitOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := domain.Order{ID: 42, Product: "widget", Quantity: 3, Email: "buyer@example.com"}

	id, err := e.svc.SubmitOrder(ctx, order)
	require.NoError(t, err)

	status, err := e.svc.GetOrderStatus(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, status)

	stored, err := e.orders.Request(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, order, stored)

	res, err := e.svc.GetTaskResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.TaskStatusPending, res.Status)
	assert.Equal(t, task.TaskFulfillOrder, res.Task)
	assert.Equal(t, 1, e.redis.QueueLen(t, task.DefaultQueue))

	again, err := e.svc.SubmitOrder(ctx, order)
	require.NoError(t, err)
	assert.NotEqual(t, id, again, "every submission gets its own task")
	assert.Equal(t, 2, e.redis.QueueLen(t, task.DefaultQueue))
}

func TestSubmitOrder_ResubmitAfterFailure(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.orders.SetStock(ctx, "widget", 3))

	first := domain.Order{ID: 9, Product: "widget", Quantity: 5, Email: "a@b.com"}
	_, err := e.orders.Reserve(ctx, first, nil)
	require.NoError(t, err)

	status, err := e.svc.GetOrderStatus(ctx, 9)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFailed, status)

	retry := domain.Order{ID: 9, Product: "widget", Quantity: 2, Email: "a@b.com"}
	_, err = e.svc.SubmitOrder(ctx, retry)
	require.NoError(t, err)

	status, err = e.svc.GetOrderStatus(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, status)

	stored, err := e.orders.Request(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, retry, stored, "pending recovery re-enqueues the latest request")
}

func TestSubmitOrder_Invalid(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.SubmitOrder(ctx, domain.Order{ID: 5, Product: "widget", Quantity: 0, Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrBadInput)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "quantity", verr.Field)

	_, err = e.svc.GetOrderStatus(ctx, 5)
	assert.ErrorIs(t, err, ErrOrderNotFound, "rejected orders leave no trace")
	assert.Zero(t, e.redis.QueueLen(t, task.DefaultQueue))
}

func TestSubmitOrder_QueueClosed(t *testing.T) {
	e := newTestEnv(t)
	e.queue.Close()

	_, err := e.svc.SubmitOrder(context.Background(),
		domain.Order{ID: 1, Product: "widget", Quantity: 1, Email: "a@b.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, task.ErrQueueClosed)

	var serr *OrderServiceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "submit_order", serr.Operation)
}

func TestSubmitNotification(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.SubmitNotification(ctx, NotificationRequest{Email: "nobody", Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	id, err := e.svc.SubmitNotification(ctx, NotificationRequest{Email: "a@b.com", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, e.redis.QueueLen(t, task.PriorityQueue))

	res, err := e.svc.GetTaskResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.TaskSendNotification, res.Task)
}

func TestGetTaskResult_NotFound(t *testing.T) {
	e := newTestEnv(t)

	job, err := e.queue.Prepare(task.TaskFulfillOrder, nil)
	require.NoError(t, err)

	_, err = e.svc.GetTaskResult(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestGetInvoice(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	job, err := e.queue.Prepare(task.TaskGenerateInvoice, task.InvoiceArgs{OrderID: 7, Product: "X", Quantity: 2})
	require.NoError(t, err)
	_, err = task.NewInvoiceTask(e.backend, invoice.NewPDFRenderer(), e.logger).Handle(ctx, job)
	require.NoError(t, err)

	inv, err := e.svc.GetInvoice(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), inv.OrderID)
	assert.Equal(t, "application/pdf", inv.ContentType)
	assert.True(t, bytes.HasPrefix(inv.Bytes, []byte("%PDF")))
}

func TestGetInvoice_Missing(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.GetInvoice(ctx, 99)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	require.NoError(t, e.backend.Set(ctx, store.InvoiceKey(98), "", 0))
	_, err = e.svc.GetInvoice(ctx, 98)
	assert.ErrorIs(t, err, ErrInvoiceNotFound, "an empty document is not served")

	_, err = e.svc.GetInvoice(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestGetOrderStatus_InvalidID(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.GetOrderStatus(context.Background(), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestStock(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.svc.GetStock(ctx, "widget")
	assert.ErrorIs(t, err, ErrStockNotFound)

	require.NoError(t, e.svc.SetStock(ctx, "widget", 4))
	level, err := e.svc.GetStock(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, int64(4), level)

	assert.ErrorIs(t, e.svc.SetStock(ctx, "widget", -1), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, e.svc.SetStock(ctx, "", 1), domain.ErrEmptyProduct)
	_, err = e.svc.GetStock(ctx, "")
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestNewOrderServiceError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, NewOrderServiceError("op", "msg", nil))
	assert.Same(t, ErrTaskNotFound, NewOrderServiceError("op", "msg", task.ErrTaskNotFound))

	cause := errors.New("connection refused")
	err := NewOrderServiceError("submit_order", "failed to record order", cause)
	assert.Equal(t, "order service submit_order failed: failed to record order: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := &OrderServiceError{Operation: "create_service", Message: "queue cannot be nil"}
	assert.Equal(t, "order service create_service failed: queue cannot be nil", bare.Error())
}
