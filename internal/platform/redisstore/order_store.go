package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/orderflow/orderflow/internal/domain"
	"github.com/orderflow/orderflow/internal/store"
)

// reserveScript performs the idempotency check, stock check, decrement,
// status write and outbox write in one server-side step.
//
// KEYS[1] status, KEYS[2] stock, KEYS[3] outbox
// ARGV[1] quantity, ARGV[2] processed, ARGV[3] failed, ARGV[4..] follow-ups
//
// Returns {0, -1} already processed, {1, remaining} reserved,
// {2, available} insufficient stock.
var reserveScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[2] then
  return {0, -1}
end
local qty = tonumber(ARGV[1])
local raw = redis.call('GET', KEYS[2])
local available = -1
if raw then
  available = tonumber(raw)
  if available == nil then
    return redis.error_reply('corrupt stock value')
  end
end
if available < qty then
  redis.call('SET', KEYS[1], ARGV[3])
  return {2, available}
end
local remaining = redis.call('DECRBY', KEYS[2], qty)
redis.call('SET', KEYS[1], ARGV[2])
for i = 4, #ARGV do
  redis.call('RPUSH', KEYS[3], ARGV[i])
end
return {1, remaining}
`)

// markPendingScript writes the pending status and the latest request unless
// the order is already processed.
//
// KEYS[1] status, KEYS[2] request
// ARGV[1] processed, ARGV[2] pending, ARGV[3] request payload
var markPendingScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('SET', KEYS[2], ARGV[3])
return 1
`)

// OrderStore implements store.OrderStore on the application database.
type OrderStore struct {
	client *Client
	logger *slog.Logger
}

// NewOrderStore creates an OrderStore on client.
func NewOrderStore(client *Client, logger *slog.Logger) *OrderStore {
	return &OrderStore{
		client: client,
		logger: logger.With("component", "order_store"),
	}
}

// Reserve implements store.OrderStore.
func (s *OrderStore) Reserve(
	ctx context.Context,
	order domain.Order,
	followUps []string,
) (domain.Reservation, error) {
	keys := []string{
		store.OrderStatusKey(order.ID),
		store.StockKey(order.Product),
		store.OrderOutboxKey(order.ID),
	}
	args := make([]any, 0, 3+len(followUps))
	args = append(args,
		order.Quantity,
		string(domain.OrderStatusProcessed),
		string(domain.OrderStatusFailed),
	)
	for _, f := range followUps {
		args = append(args, f)
	}

	res, err := s.client.RunScript(ctx, reserveScript, keys, args...)
	if err != nil {
		var replyErr redis.Error
		if errors.As(err, &replyErr) {
			return domain.Reservation{}, store.NewStoreError(keys[1], "reserve", err.Error(), store.ErrCorruptValue)
		}
		return domain.Reservation{}, fmt.Errorf("failed to reserve stock for order %d: %w", order.ID, err)
	}

	code, remaining, err := parseReserveReply(res)
	if err != nil {
		return domain.Reservation{}, store.NewStoreError(keys[0], "reserve", err.Error(), store.ErrCorruptValue)
	}

	var outcome domain.ReservationOutcome
	switch code {
	case 0:
		outcome = domain.ReservationAlreadyProcessed
	case 1:
		outcome = domain.ReservationReserved
	case 2:
		outcome = domain.ReservationInsufficientStock
	default:
		return domain.Reservation{}, store.NewStoreError(
			keys[0], "reserve", fmt.Sprintf("unexpected reply code %d", code), store.ErrCorruptValue)
	}

	s.logger.Debug("reservation attempted",
		"order_id", order.ID,
		"product", order.Product,
		"outcome", outcome.String(),
		"remaining", remaining)
	return domain.Reservation{Outcome: outcome, RemainingStock: remaining}, nil
}

func parseReserveReply(res any) (int64, int64, error) {
	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected reply %v", res)
	}
	code, ok1 := vals[0].(int64)
	remaining, ok2 := vals[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("unexpected reply %v", res)
	}
	return code, remaining, nil
}

// MarkPending implements store.OrderStore.
func (s *OrderStore) MarkPending(ctx context.Context, order domain.Order) (bool, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return false, fmt.Errorf("failed to encode order %d: %w", order.ID, err)
	}

	keys := []string{store.OrderStatusKey(order.ID), store.OrderRequestKey(order.ID)}
	res, err := s.client.RunScript(ctx, markPendingScript, keys,
		string(domain.OrderStatusProcessed),
		string(domain.OrderStatusPending),
		string(payload),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark order %d pending: %w", order.ID, err)
	}
	marked, ok := res.(int64)
	if !ok {
		return false, store.NewStoreError(keys[0], "mark_pending", fmt.Sprintf("unexpected reply %v", res), store.ErrCorruptValue)
	}
	return marked == 1, nil
}

// Status implements store.OrderStore.
func (s *OrderStore) Status(ctx context.Context, orderID int64) (domain.OrderStatus, error) {
	val, err := s.client.Get(ctx, store.OrderStatusKey(orderID))
	if err != nil {
		if store.IsNotFoundError(err) {
			return "", store.ErrOrderNotFound
		}
		return "", fmt.Errorf("failed to read order %d status: %w", orderID, err)
	}
	status := domain.OrderStatus(val)
	if !status.IsValid() {
		return "", store.NewStoreError(store.OrderStatusKey(orderID), "get", "unknown order status "+val, store.ErrCorruptValue)
	}
	return status, nil
}

// Request implements store.OrderStore.
func (s *OrderStore) Request(ctx context.Context, orderID int64) (domain.Order, error) {
	val, err := s.client.Get(ctx, store.OrderRequestKey(orderID))
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.Order{}, store.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("failed to read order %d request: %w", orderID, err)
	}
	var order domain.Order
	if err := json.Unmarshal([]byte(val), &order); err != nil {
		return domain.Order{}, store.NewStoreError(
			store.OrderRequestKey(orderID), "request", err.Error(), store.ErrCorruptValue)
	}
	return order, nil
}

// Outbox implements store.OrderStore.
func (s *OrderStore) Outbox(ctx context.Context, orderID int64) ([]string, error) {
	entries, err := s.client.LRange(ctx, store.OrderOutboxKey(orderID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read order %d outbox: %w", orderID, err)
	}
	return entries, nil
}

// AckOutbox implements store.OrderStore.
func (s *OrderStore) AckOutbox(ctx context.Context, orderID int64, entry string) error {
	if _, err := s.client.LRem(ctx, store.OrderOutboxKey(orderID), 1, entry); err != nil {
		return fmt.Errorf("failed to ack order %d outbox entry: %w", orderID, err)
	}
	return nil
}

// StockLevel implements store.OrderStore.
func (s *OrderStore) StockLevel(ctx context.Context, product string) (int64, error) {
	val, err := s.client.Get(ctx, store.StockKey(product))
	if err != nil {
		if store.IsNotFoundError(err) {
			return 0, store.ErrStockNotFound
		}
		return 0, fmt.Errorf("failed to read stock for %s: %w", product, err)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, store.NewStoreError(store.StockKey(product), "stock_level", err.Error(), store.ErrCorruptValue)
	}
	return n, nil
}

// SetStock implements store.OrderStore.
func (s *OrderStore) SetStock(ctx context.Context, product string, quantity int64) error {
	if err := s.client.Set(ctx, store.StockKey(product), quantity, 0); err != nil {
		return fmt.Errorf("failed to set stock for %s: %w", product, err)
	}
	return nil
}

var _ store.OrderStore = (*OrderStore)(nil)
