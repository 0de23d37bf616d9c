package task

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/platform/logger"
	"github.com/orderflow/orderflow/internal/store"
)

// StockReport is the stored return value of daily_stock_report.
type StockReport struct {
	Stock map[string]int64 `json:"stock"`
	Total int64            `json:"total"`
	// Unreadable lists stock keys whose value is not an integer.
	Unreadable []string `json:"unreadable,omitempty"`
}

// DailyStockReportTask logs the available quantity of every product.
type DailyStockReportTask struct {
	kv     store.KV
	logger *slog.Logger
}

// NewDailyStockReportTask creates the daily_stock_report handler.
func NewDailyStockReportTask(kv store.KV, logger *slog.Logger) *DailyStockReportTask {
	return &DailyStockReportTask{kv: kv, logger: logger.With("component", "stock_report_task")}
}

// Handle implements Handler.
func (t *DailyStockReportTask) Handle(ctx context.Context, _ *Job) (any, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	report := StockReport{Stock: make(map[string]int64)}
	for key, err := range t.kv.Scan(ctx, store.StockPattern) {
		if err != nil {
			log.Error("failed to scan stock entries", "error", err)
			return nil, err
		}
		product, ok := store.ProductFromStockKey(key)
		if !ok {
			continue
		}
		raw, err := t.kv.Get(ctx, key)
		if err != nil {
			if store.IsNotFoundError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			report.Unreadable = append(report.Unreadable, key)
			continue
		}
		report.Stock[product] = n
		report.Total += n
	}

	log.Info("daily stock report",
		"stock", report.Stock,
		"products", len(report.Stock),
		"total", report.Total,
		"unreadable", len(report.Unreadable))
	return report, nil
}

// PendingOrdersReport is the stored return value of check_pending_orders.
type PendingOrdersReport struct {
	Requeued []int64 `json:"requeued"`
	Skipped  []int64 `json:"skipped,omitempty"`
}

// CheckPendingOrdersTask re-enqueues fulfillment for orders still pending.
type CheckPendingOrdersTask struct {
	kv     store.KV
	orders store.OrderStore
	queue  Enqueuer
	logger *slog.Logger
}

// NewCheckPendingOrdersTask creates the check_pending_orders handler.
func NewCheckPendingOrdersTask(
	kv store.KV,
	orders store.OrderStore,
	queue Enqueuer,
	logger *slog.Logger,
) *CheckPendingOrdersTask {
	return &CheckPendingOrdersTask{
		kv:     kv,
		orders: orders,
		queue:  queue,
		logger: logger.With("component", "pending_orders_task"),
	}
}

// Handle implements Handler.
func (t *CheckPendingOrdersTask) Handle(ctx context.Context, _ *Job) (any, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	report := PendingOrdersReport{Requeued: []int64{}}
	for key, err := range t.kv.Scan(ctx, store.OrderStatusPattern) {
		if err != nil {
			log.Error("failed to scan order statuses", "error", err)
			return nil, err
		}
		status, err := t.kv.Get(ctx, key)
		if err != nil {
			if store.IsNotFoundError(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if domain.OrderStatus(status) != domain.OrderStatusPending {
			continue
		}

		orderID, err := store.OrderIDFromKey(key)
		if err != nil {
			log.Warn("skipping unparseable order key", "key", key, "error", err)
			continue
		}
		order, err := t.orders.Request(ctx, orderID)
		if err != nil {
			if store.IsNotFoundError(err) {
				log.Warn("pending order has no stored request", "order_id", orderID)
				report.Skipped = append(report.Skipped, orderID)
				continue
			}
			return nil, err
		}

		id, err := t.queue.Enqueue(ctx, TaskFulfillOrder, FulfillOrderArgsFrom(order))
		if err != nil {
			log.Error("failed to requeue order", "order_id", orderID, "error", err)
			return nil, fmt.Errorf("failed to requeue order %d: %w", orderID, err)
		}
		log.Info("requeued order", "order_id", orderID, "task_id", id)
		report.Requeued = append(report.Requeued, orderID)
	}
	return report, nil
}

// DispatchOutboxTask publishes follow-ups left behind by a worker that died
// between reserving stock and dispatching.
type DispatchOutboxTask struct {
	kv     store.KV
	orders store.OrderStore
	queue  Dispatcher
	logger *slog.Logger
}

// NewDispatchOutboxTask creates the dispatch_outbox handler.
func NewDispatchOutboxTask(
	kv store.KV,
	orders store.OrderStore,
	queue Dispatcher,
	logger *slog.Logger,
) *DispatchOutboxTask {
	return &DispatchOutboxTask{
		kv:     kv,
		orders: orders,
		queue:  queue,
		logger: logger.With("component", "outbox_task"),
	}
}

// Handle implements Handler. It returns the number of follow-ups published.
func (t *DispatchOutboxTask) Handle(ctx context.Context, _ *Job) (any, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)

	total := 0
	for key, err := range t.kv.Scan(ctx, store.OrderOutboxPattern) {
		if err != nil {
			log.Error("failed to scan outboxes", "error", err)
			return nil, err
		}
		orderID, err := store.OrderIDFromKey(key)
		if err != nil {
			log.Warn("skipping unparseable outbox key", "key", key, "error", err)
			continue
		}
		n, err := FlushOutbox(ctx, t.orders, t.queue, orderID, log)
		total += n
		if err != nil {
			return total, err
		}
	}
	if total > 0 {
		log.Info("dispatched leftover follow-ups", "count", total)
	}
	return total, nil
}
