package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/platform/invoice"
	"github.com/orderflow/orderflow/internal/store"
	"github.com/orderflow/orderflow/internal/task"
)

// TaskQueue is the producer side of the task runtime as the service sees it.
type TaskQueue interface {
	// Enqueue publishes a task and returns its ID before it runs.
	Enqueue(ctx context.Context, name string, args any) (uuid.UUID, error)

	// Result returns the stored result of a task.
	Result(ctx context.Context, id uuid.UUID) (*task.Result, error)
}

// NotificationRequest asks for one email to be delivered asynchronously.
type NotificationRequest struct {
	Email   string
	Message string
	Subject string
}

// Invoice is a generated invoice document ready to serve.
type Invoice struct {
	OrderID     int64
	Bytes       []byte
	ContentType string
}

// OrderService is the boundary between the HTTP layer and the pipeline.
// It only records requests and enqueues work; tasks do the rest.
type OrderService interface {
	// SubmitOrder records the order as pending and enqueues fulfill_order.
	SubmitOrder(ctx context.Context, order domain.Order) (uuid.UUID, error)

	// SubmitNotification enqueues send_notification.
	SubmitNotification(ctx context.Context, req NotificationRequest) (uuid.UUID, error)

	// GetTaskResult returns the stored result of a task.
	GetTaskResult(ctx context.Context, id uuid.UUID) (*task.Result, error)

	// GetOrderStatus returns the fulfillment status of an order.
	GetOrderStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error)

	// GetInvoice returns the invoice generated for an order.
	GetInvoice(ctx context.Context, orderID int64) (*Invoice, error)

	// GetStock returns the available quantity of a product.
	GetStock(ctx context.Context, product string) (int64, error)

	// SetStock provisions the available quantity of a product.
	SetStock(ctx context.Context, product string, quantity int64) error
}

// orderServiceImpl implements the OrderService interface
type orderServiceImpl struct {
	orders store.OrderStore
	kv     store.KV
	queue  TaskQueue
	logger *slog.Logger
}

// NewOrderService creates a new OrderService. kv is the database invoices
// are stored on.
// It returns an error if any of the required dependencies are nil.
func NewOrderService(
	orders store.OrderStore,
	kv store.KV,
	queue TaskQueue,
	logger *slog.Logger,
) (OrderService, error) {
	if orders == nil {
		return nil, &OrderServiceError{Operation: "create_service", Message: "orders cannot be nil"}
	}
	if kv == nil {
		return nil, &OrderServiceError{Operation: "create_service", Message: "kv cannot be nil"}
	}
	if queue == nil {
		return nil, &OrderServiceError{Operation: "create_service", Message: "queue cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &orderServiceImpl{
		orders: orders,
		kv:     kv,
		queue:  queue,
		logger: logger.With("component", "order_service"),
	}, nil
}

// SubmitOrder validates the order, stores its request with a pending status
// and enqueues fulfillment. A failed order is reset to pending. Resubmitting a
// processed order enqueues again and the fulfillment task skips it.
func (s *orderServiceImpl) SubmitOrder(ctx context.Context, order domain.Order) (uuid.UUID, error) {
	if err := order.Validate(); err != nil {
		return uuid.Nil, err
	}

	marked, err := s.orders.MarkPending(ctx, order)
	if err != nil {
		s.logger.Error("failed to record order", "error", err, "order_id", order.ID)
		return uuid.Nil, NewOrderServiceError("submit_order", "failed to record order", err)
	}
	if !marked {
		s.logger.Info("order already processed, enqueueing again", "order_id", order.ID)
	}

	id, err := s.queue.Enqueue(ctx, task.TaskFulfillOrder, task.FulfillOrderArgsFrom(order))
	if err != nil {
		s.logger.Error("failed to enqueue order", "error", err, "order_id", order.ID)
		return uuid.Nil, NewOrderServiceError("submit_order", "failed to enqueue fulfillment", err)
	}

	s.logger.Info("order submitted",
		"order_id", order.ID,
		"task_id", id,
		"product", order.Product,
		"quantity", order.Quantity)
	return id, nil
}

// SubmitNotification enqueues an email after the same address check the
// notification task applies.
func (s *orderServiceImpl) SubmitNotification(ctx context.Context, req NotificationRequest) (uuid.UUID, error) {
	if err := domain.ValidateEmail(req.Email); err != nil {
		return uuid.Nil, err
	}

	id, err := s.queue.Enqueue(ctx, task.TaskSendNotification, task.NotificationArgs{
		Email:   req.Email,
		Message: req.Message,
		Subject: req.Subject,
	})
	if err != nil {
		return uuid.Nil, NewOrderServiceError("submit_notification", "failed to enqueue notification", err)
	}
	return id, nil
}

func (s *orderServiceImpl) GetTaskResult(ctx context.Context, id uuid.UUID) (*task.Result, error) {
	res, err := s.queue.Result(ctx, id)
	if err != nil {
		return nil, NewOrderServiceError("get_task_result", "failed to read task result", err)
	}
	return res, nil
}

func (s *orderServiceImpl) GetOrderStatus(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	if orderID <= 0 {
		return "", domain.NewValidationError("order_id", "must be positive", domain.ErrInvalidID)
	}
	status, err := s.orders.Status(ctx, orderID)
	if err != nil {
		return "", NewOrderServiceError("get_order_status", "failed to read order status", err)
	}
	return status, nil
}

// GetInvoice returns the stored document. An empty document is treated as
// missing.
func (s *orderServiceImpl) GetInvoice(ctx context.Context, orderID int64) (*Invoice, error) {
	if orderID <= 0 {
		return nil, domain.NewValidationError("order_id", "must be positive", domain.ErrInvalidID)
	}

	doc, err := s.kv.Get(ctx, store.InvoiceKey(orderID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, NewOrderServiceError("get_invoice", "failed to read invoice", err)
	}
	if doc == "" {
		s.logger.Warn("stored invoice is empty", "order_id", orderID)
		return nil, ErrInvoiceNotFound
	}

	return &Invoice{
		OrderID:     orderID,
		Bytes:       []byte(doc),
		ContentType: invoice.ContentType,
	}, nil
}

func (s *orderServiceImpl) GetStock(ctx context.Context, product string) (int64, error) {
	if product == "" {
		return 0, domain.NewValidationError("product", "cannot be empty", domain.ErrEmptyProduct)
	}
	level, err := s.orders.StockLevel(ctx, product)
	if err != nil {
		return 0, NewOrderServiceError("get_stock", "failed to read stock", err)
	}
	return level, nil
}

// SetStock overwrites the stock level. Reservations already made are not
// revisited.
func (s *orderServiceImpl) SetStock(ctx context.Context, product string, quantity int64) error {
	if product == "" {
		return domain.NewValidationError("product", "cannot be empty", domain.ErrEmptyProduct)
	}
	if quantity < 0 {
		return domain.NewValidationError("quantity", "cannot be negative", domain.ErrInvalidQuantity)
	}
	if err := s.orders.SetStock(ctx, product, quantity); err != nil {
		return NewOrderServiceError("set_stock", "failed to write stock", err)
	}
	s.logger.Info("stock provisioned", "product", product, "quantity", quantity)
	return nil
}
