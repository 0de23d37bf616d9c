package task

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orderflow/orderflow/internal/platform/redisstore"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

const (
	testBrokerDB  = 0
	testBackendDB = 1
)

// testEnv is a broker, result store, producer and order store on one
// in-process Redis server.
type testEnv struct {
	mr      *miniredis.Miniredis
	logger  *slog.Logger
	kv      *redisstore.Client
	broker  *Broker
	results *ResultStore
	queue   *TaskQueue
	orders  *redisstore.OrderStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := setupTestLogger()

	opts := redisstore.DefaultOptions()
	opts.Addr = mr.Addr()
	opts.HealthCheckInterval = time.Hour
	reg := redisstore.NewRegistry(opts, logger)
	t.Cleanup(func() { _ = reg.Close() })

	brokerKV := reg.Client(testBrokerDB)
	backendKV := reg.Client(testBackendDB)

	broker := NewBroker(brokerKV, time.Minute, logger)
	results := NewResultStore(backendKV, time.Hour)
	queue := NewTaskQueue(broker, results, DefaultRoutes(), TaskQueueConfig{}, logger)

	return &testEnv{
		mr:      mr,
		logger:  logger,
		kv:      backendKV,
		broker:  broker,
		results: results,
		queue:   queue,
		orders:  redisstore.NewOrderStore(backendKV, logger),
	}
}

// queued decodes every job waiting on queue, oldest first.
func (e *testEnv) queued(t *testing.T, queue string) []*Job {
	t.Helper()
	if !e.mr.DB(testBrokerDB).Exists(queueKey(queue)) {
		return nil
	}
	raw, err := e.mr.DB(testBrokerDB).List(queueKey(queue))
	require.NoError(t, err)

	jobs := make([]*Job, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		job, err := decodeJob(raw[i])
		require.NoError(t, err)
		jobs = append(jobs, job)
	}
	return jobs
}

// newJob builds an envelope the way the producer does, without publishing it.
func newJob(t *testing.T, e *testEnv, name string, args any) *Job {
	t.Helper()
	job, err := e.queue.Prepare(name, args)
	require.NoError(t, err)
	return job
}

func decodeResult[T any](t *testing.T, value any) T {
	t.Helper()
	data, err := json.Marshal(value)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func waitForStatus(t *testing.T, e *testEnv, id uuid.UUID, want TaskStatus) *Result {
	t.Helper()
	var res *Result
	require.Eventually(t, func() bool {
		r, err := e.results.Get(context.Background(), id)
		if err != nil {
			return false
		}
		res = r
		return r.Status == want
	}, 10*time.Second, 20*time.Millisecond, "task never reached status %s", want)
	return res
}
