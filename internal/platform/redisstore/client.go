package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orderflow/orderflow/internal/store"
)

// Options configures one logical-database client and its connection pool.
type Options struct {
	// Addr is the host:port of the Redis server.
	Addr string
	// Password is optional.
	Password string
	// DB is the logical database index.
	DB int
	// MaxConnections bounds the pool size. If zero, defaults to 10.
	MaxConnections int
	// SocketTimeout bounds every read and write on a pooled connection.
	SocketTimeout time.Duration
	// DialTimeout bounds establishing a new connection.
	DialTimeout time.Duration
	// HealthCheckInterval is how long a connection may stay unverified before
	// the next operation probes it. Zero or negative probes before every operation.
	HealthCheckInterval time.Duration
	// KeepAlive is the TCP keep-alive period. Zero keeps the OS default.
	KeepAlive time.Duration
}

// DefaultOptions returns Options with reasonable defaults for a local server.
func DefaultOptions() Options {
	return Options{
		Addr:                "localhost:6379",
		MaxConnections:      10,
		SocketTimeout:       5 * time.Second,
		DialTimeout:         5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		KeepAlive:           30 * time.Second,
	}
}

// Client is a reconnect-safe handle on one logical database. It lazily
// connects, probes liveness, and transparently reconnects, retrying the
// failed operation exactly once.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu        sync.Mutex
	rdb       *redis.Client
	lastAlive time.Time
	closed    bool

	// probe checks liveness of a connected pool. Replaced in tests.
	probe func(ctx context.Context, rdb *redis.Client) error
}

// NewClient creates an unconnected client. Connect is called lazily by the
// first operation, or explicitly at startup to fail fast.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 10
	}
	return &Client{
		opts:   opts,
		logger: logger.With("component", "redis_store", "db", opts.DB),
		probe: func(ctx context.Context, rdb *redis.Client) error {
			return rdb.Ping(ctx).Err()
		},
	}
}

// DB returns the logical database index this client is bound to.
func (c *Client) DB() int {
	return c.opts.DB
}

// Connect establishes the pool and issues a liveness probe. It is a no-op
// when a connection already exists. On failure the client stays unconnected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.storeErr("connect", "client is closed", store.ErrClosed)
	}
	if c.rdb != nil {
		return nil
	}
	_, err := c.connectLocked(ctx)
	return err
}

// connectLocked builds a fresh pool and probes it. The caller holds c.mu.
func (c *Client) connectLocked(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(c.redisOptions())
	if err := c.probe(ctx, rdb); err != nil {
		_ = rdb.Close()
		c.logger.Error("failed to connect to store", "addr", c.opts.Addr, "error", err)
		return nil, c.storeErr("connect", err.Error(), store.ErrStoreUnavailable)
	}

	c.rdb = rdb
	c.lastAlive = time.Now()
	c.logger.Info("store connection opened", "addr", c.opts.Addr)
	return rdb, nil
}

func (c *Client) redisOptions() *redis.Options {
	opts := &redis.Options{
		Addr:         c.opts.Addr,
		Password:     c.opts.Password,
		DB:           c.opts.DB,
		PoolSize:     c.opts.MaxConnections,
		ReadTimeout:  c.opts.SocketTimeout,
		WriteTimeout: c.opts.SocketTimeout,
		DialTimeout:  c.opts.DialTimeout,
		// Retries belong to this client: one reconnect, one retry.
		MaxRetries: -1,
	}
	if c.opts.KeepAlive > 0 {
		dialer := &net.Dialer{Timeout: c.opts.DialTimeout, KeepAlive: c.opts.KeepAlive}
		opts.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		}
	}
	return opts
}

// ensureConnected returns a live pool, connecting if absent and probing it
// when the health check interval has elapsed. A failed probe reconnects.
// The probe runs without holding c.mu.
func (c *Client) ensureConnected(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, c.storeErr("ensure_connected", "client is closed", store.ErrClosed)
	}
	if c.rdb == nil {
		defer c.mu.Unlock()
		return c.connectLocked(ctx)
	}
	rdb := c.rdb
	interval := c.opts.HealthCheckInterval
	fresh := interval > 0 && time.Since(c.lastAlive) < interval
	c.mu.Unlock()

	if fresh {
		return rdb, nil
	}

	if err := c.probe(ctx, rdb); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("store connection lost, reconnecting", "error", err)
		return c.reconnect(ctx, rdb)
	}
	c.touch(rdb, nil)
	return rdb, nil
}

// reconnect replaces stale with a fresh pool unless another goroutine
// already did so.
func (c *Client) reconnect(ctx context.Context, stale *redis.Client) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, c.storeErr("reconnect", "client is closed", store.ErrClosed)
	}
	if c.rdb != nil && c.rdb != stale {
		return c.rdb, nil
	}
	return c.replaceLocked(ctx)
}

// replaceLocked drops the current pool and connects again. The caller holds c.mu.
func (c *Client) replaceLocked(ctx context.Context) (*redis.Client, error) {
	if old := c.rdb; old != nil {
		c.rdb = nil
		if err := old.Close(); err != nil {
			c.logger.Debug("error closing stale pool", "error", err)
		}
	}
	rdb, err := c.connectLocked(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Info("store reconnected")
	return rdb, nil
}

// do runs fn against a live pool. A connection-class failure triggers one
// reconnect and exactly one retry; a second failure is ErrStoreUnavailable.
func (c *Client) do(ctx context.Context, op, key string, fn func(rdb *redis.Client) error) error {
	rdb, err := c.ensureConnected(ctx)
	if err != nil {
		return err
	}

	err = fn(rdb)
	if isTimeoutError(ctx, err) {
		// Other goroutines share the pool; force a probe instead of closing it.
		c.expire(rdb)
		c.logger.Warn("store operation timed out", "op", op, "key", key, "error", err)
		return c.storeErr(op, err.Error(), store.ErrStoreUnavailable)
	}
	if !isConnectionError(ctx, err) {
		c.touch(rdb, err)
		return err
	}

	c.logger.Warn("store operation failed, reconnecting", "op", op, "key", key, "error", err)
	rdb, err = c.reconnect(ctx, rdb)
	if err != nil {
		return err
	}

	err = fn(rdb)
	if isConnectionError(ctx, err) {
		c.logger.Error("store operation failed after reconnect", "op", op, "key", key, "error", err)
		return c.storeErr(op, err.Error(), store.ErrStoreUnavailable)
	}
	c.touch(rdb, err)
	return err
}

// touch records a successful round trip so the next probe can be skipped.
func (c *Client) touch(rdb *redis.Client, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		return
	}
	c.mu.Lock()
	if c.rdb == rdb {
		c.lastAlive = time.Now()
	}
	c.mu.Unlock()
}

// expire makes the next operation probe rdb before use.
func (c *Client) expire(rdb *redis.Client) {
	c.mu.Lock()
	if c.rdb == rdb {
		c.lastAlive = time.Time{}
	}
	c.mu.Unlock()
}

// Close releases the pool, including connections in use. Closing twice is a
// no-op; a failure to release is returned so shutdown sequencing can react.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("store client already closed")
		return nil
	}
	c.closed = true

	if c.rdb == nil {
		return nil
	}
	rdb := c.rdb
	c.rdb = nil
	if err := rdb.Close(); err != nil {
		c.logger.Error("error closing store connection", "error", err)
		return c.storeErr("close", "failed to release pool", err)
	}
	c.logger.Info("store connection closed")
	return nil
}

func (c *Client) storeErr(op, message string, err error) *store.StoreError {
	return store.NewStoreError(fmt.Sprintf("db=%d", c.opts.DB), op, message, err)
}

// isConnectionError reports whether err means the connection, rather than
// the command, failed. Missing keys, server replies and caller
// cancellation are not connection failures.
func isConnectionError(ctx context.Context, err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		return false
	}
	return true
}

// poolTimeoutMessage is the text of go-redis's unexported pool checkout timeout.
const poolTimeoutMessage = "redis: connection pool timeout"

// isTimeoutError reports whether err is a pool checkout or socket deadline
// expiry rather than a broken connection.
func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if err.Error() == poolTimeoutMessage ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
