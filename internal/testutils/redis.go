package testutils

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/orderflow/orderflow/internal/platform/redisstore"
)

// Logical databases used by tests, matching the default configuration.
const (
	BrokerDB  = 0
	BackendDB = 1
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// RedisEnv is an in-process Redis server with one client per database.
type RedisEnv struct {
	Server   *miniredis.Miniredis
	Registry *redisstore.Registry
	Broker   *redisstore.Client
	Backend  *redisstore.Client
}

// NewRedisEnv starts a miniredis server for the duration of t. The
// registry is closed before the server stops.
func NewRedisEnv(t *testing.T, logger *slog.Logger) *RedisEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	if logger == nil {
		logger = DiscardLogger()
	}

	opts := redisstore.DefaultOptions()
	opts.Addr = mr.Addr()
	opts.HealthCheckInterval = time.Hour
	reg := redisstore.NewRegistry(opts, logger)
	t.Cleanup(func() { _ = reg.Close() })

	return &RedisEnv{
		Server:   mr,
		Registry: reg,
		Broker:   reg.Client(BrokerDB),
		Backend:  reg.Client(BackendDB),
	}
}

// QueueLen returns the number of jobs waiting on a queue.
func (e *RedisEnv) QueueLen(t *testing.T, queue string) int {
	t.Helper()
	key := "queue:" + queue
	if !e.Server.DB(BrokerDB).Exists(key) {
		return 0
	}
	items, err := e.Server.DB(BrokerDB).List(key)
	if err != nil {
		t.Fatalf("list %s: %v", key, err)
	}
	return len(items)
}
