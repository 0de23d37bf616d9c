package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/platform/logger"
	"github.com/orderflow/orderflow/internal/store"
)

// FulfillOrderArgs are the arguments of fulfill_order.
type FulfillOrderArgs struct {
	OrderID  int64  `json:"order_id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Email    string `json:"email"`
}

// Order converts the arguments to a domain order.
func (a FulfillOrderArgs) Order() domain.Order {
	return domain.Order{ID: a.OrderID, Product: a.Product, Quantity: a.Quantity, Email: a.Email}
}

// FulfillOrderArgsFrom builds arguments from a domain order.
func FulfillOrderArgsFrom(o domain.Order) FulfillOrderArgs {
	return FulfillOrderArgs{OrderID: o.ID, Product: o.Product, Quantity: o.Quantity, Email: o.Email}
}

// Fulfillment results.
const (
	FulfillStatusSuccess = "success"
	FulfillStatusSkipped = "skipped"
)

// FulfillOrderResult is the stored return value of fulfill_order.
type FulfillOrderResult struct {
	Status         string `json:"status"`
	OrderID        int64  `json:"order_id"`
	RemainingStock int64  `json:"remaining_stock"`
}

// FulfillOrderTask reserves stock for an order exactly once and then
// dispatches the notification and invoice follow-ups.
type FulfillOrderTask struct {
	orders store.OrderStore
	queue  Dispatcher
	logger *slog.Logger
}

// NewFulfillOrderTask creates the fulfill_order handler.
func NewFulfillOrderTask(orders store.OrderStore, queue Dispatcher, logger *slog.Logger) *FulfillOrderTask {
	return &FulfillOrderTask{
		orders: orders,
		queue:  queue,
		logger: logger.With("component", "fulfill_order_task"),
	}
}

// Handle implements Handler.
func (t *FulfillOrderTask) Handle(ctx context.Context, job *Job) (any, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	var args FulfillOrderArgs
	if err := job.Decode(&args); err != nil {
		log.Error("invalid fulfill_order arguments", "error", err)
		return nil, err
	}
	order := args.Order()
	if err := order.Validate(); err != nil {
		log.Error("invalid order", "order_id", order.ID, "error", err)
		return nil, err
	}
	log = log.With("order_id", order.ID, "product", order.Product)

	followUps, err := t.followUps(order)
	if err != nil {
		log.Error("failed to prepare follow-up tasks", "error", err)
		return nil, err
	}

	res, err := t.orders.Reserve(ctx, order, followUps)
	if err != nil {
		log.Error("failed to reserve stock", "error", err)
		return nil, fmt.Errorf("failed to fulfill order %d: %w", order.ID, err)
	}

	switch res.Outcome {
	case domain.ReservationAlreadyProcessed:
		log.Info("order already processed, skipping reservation")
		// A previous attempt may have died before dispatching.
		if _, err := FlushOutbox(ctx, t.orders, t.queue, order.ID, log); err != nil {
			return nil, err
		}
		return FulfillOrderResult{Status: FulfillStatusSkipped, OrderID: order.ID, RemainingStock: -1}, nil

	case domain.ReservationInsufficientStock:
		log.Warn("insufficient stock",
			"requested", order.Quantity,
			"available", res.RemainingStock)
		return nil, fmt.Errorf("%w: order %d requested %d of %s",
			domain.ErrInsufficientStock, order.ID, order.Quantity, order.Product)

	case domain.ReservationReserved:
		log.Info("stock reserved", "quantity", order.Quantity, "remaining_stock", res.RemainingStock)
		if _, err := FlushOutbox(ctx, t.orders, t.queue, order.ID, log); err != nil {
			return nil, err
		}
		return FulfillOrderResult{Status: FulfillStatusSuccess, OrderID: order.ID, RemainingStock: res.RemainingStock}, nil
	}

	return nil, fmt.Errorf("unexpected reservation outcome %s for order %d", res.Outcome, order.ID)
}

// followUps builds the envelopes written to the outbox with the reservation.
func (t *FulfillOrderTask) followUps(order domain.Order) ([]string, error) {
	notify, err := t.queue.Prepare(TaskSendNotification, NotificationArgs{
		Email:   order.Email,
		Subject: fmt.Sprintf("Order #%d", order.ID),
		Message: fmt.Sprintf("Your order #%d has been processed successfully!", order.ID),
	})
	if err != nil {
		return nil, err
	}
	inv, err := t.queue.Prepare(TaskGenerateInvoice, InvoiceArgs{
		OrderID:  order.ID,
		Product:  order.Product,
		Quantity: order.Quantity,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]string, 0, 2)
	for _, job := range []*Job{notify, inv} {
		raw, err := job.encode()
		if err != nil {
			return nil, err
		}
		entries = append(entries, raw)
	}
	return entries, nil
}

// FlushOutbox publishes every follow-up left in an order's outbox, removing
// each entry only after it was published. It returns how many it published.
func FlushOutbox(
	ctx context.Context,
	orders store.OrderStore,
	queue Dispatcher,
	orderID int64,
	log *slog.Logger,
) (int, error) {
	entries, err := orders.Outbox(ctx, orderID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, raw := range entries {
		job, err := decodeJob(raw)
		if err != nil {
			log.Error("dropping malformed outbox entry", "order_id", orderID, "error", err)
			if ackErr := orders.AckOutbox(ctx, orderID, raw); ackErr != nil {
				return sent, ackErr
			}
			continue
		}
		if err := queue.Submit(ctx, job); err != nil {
			log.Error("failed to dispatch follow-up task",
				"order_id", orderID,
				"follow_up", job.Name,
				"error", err)
			return sent, fmt.Errorf("failed to dispatch %s for order %d: %w", job.Name, orderID, err)
		}
		if err := orders.AckOutbox(ctx, orderID, raw); err != nil {
			return sent, err
		}
		log.Debug("follow-up task dispatched",
			"order_id", orderID,
			"follow_up", job.Name,
			"follow_up_id", job.ID)
		sent++
	}
	return sent, nil
}
