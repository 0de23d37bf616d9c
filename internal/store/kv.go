package store

import (
	"context"
	"iter"
	"time"

	"github.com/orderflow/orderflow/internal/domain"
)

// KV is the key-value persistence primitive every task and handler builds on.
// Implementations own their connections and must be safe for concurrent use.
// Reads of absent keys return ErrNotFound.
type KV interface {
	// Get returns the value stored at key.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// SetNX stores value only if key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)

	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// Exists returns how many of keys exist.
	Exists(ctx context.Context, keys ...string) (int64, error)

	// HGet returns one field of the hash at key.
	HGet(ctx context.Context, key, field string) (string, error)

	// HSet sets field/value pairs on the hash at key and returns how many fields were added.
	HSet(ctx context.Context, key string, values ...any) (int64, error)

	// HGetAll returns every field of the hash at key.
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	// Keys returns every key matching a glob pattern in one blocking call.
	// Prefer Scan for large key spaces.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Scan lazily yields keys matching a glob pattern using cursor pages.
	// Each range over the returned sequence restarts from the beginning.
	Scan(ctx context.Context, pattern string) iter.Seq2[string, error]

	// LPush prepends values to the list at key and returns its new length.
	LPush(ctx context.Context, key string, values ...any) (int64, error)

	// RPush appends values to the list at key and returns its new length.
	RPush(ctx context.Context, key string, values ...any) (int64, error)

	// LLen returns the length of the list at key.
	LLen(ctx context.Context, key string) (int64, error)

	// LRange returns the list elements between start and stop inclusive.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// LRem removes count occurrences of value from the list at key.
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)

	// BLMove atomically pops the tail of src and pushes it to the head of dst,
	// blocking up to timeout. It returns ErrNotFound when the timeout elapses.
	BLMove(ctx context.Context, src, dst string, timeout time.Duration) (string, error)

	// ZAdd adds member to the sorted set at key with score.
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRangeByScore returns up to limit members with score <= max, lowest first.
	ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]string, error)

	// ZRem removes members from the sorted set at key.
	ZRem(ctx context.Context, key string, members ...string) (int64, error)

	// Eval runs a Lua script atomically. A nil script reply returns nil, nil.
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
}

// OrderStore holds order fulfillment state: stock entries, order status,
// the submitted request, and the follow-up outbox.
type OrderStore interface {
	// Reserve atomically performs the idempotency check, stock check,
	// decrement, status write and outbox write for one order.
	Reserve(ctx context.Context, order domain.Order, followUps []string) (domain.Reservation, error)

	// MarkPending records the order request and a pending status unless the
	// order is already processed. It reports whether the status was written.
	MarkPending(ctx context.Context, order domain.Order) (bool, error)

	// Status returns the persisted order status or ErrOrderNotFound.
	Status(ctx context.Context, orderID int64) (domain.OrderStatus, error)

	// Request returns the order as originally submitted.
	Request(ctx context.Context, orderID int64) (domain.Order, error)

	// Outbox returns the follow-up jobs not yet dispatched for an order.
	Outbox(ctx context.Context, orderID int64) ([]string, error)

	// AckOutbox removes one dispatched follow-up job.
	AckOutbox(ctx context.Context, orderID int64, entry string) error

	// StockLevel returns the available quantity of product.
	StockLevel(ctx context.Context, product string) (int64, error)

	// SetStock provisions a stock entry.
	SetStock(ctx context.Context, product string, quantity int64) error
}
