package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orderflow/orderflow/internal/store"
)

const (
	queuePrefix = "queue:"
	leasePrefix = "lease:"
	scheduleKey = "schedule"
)

func queueKey(queue string) string  { return queuePrefix + queue }
func activeKey(queue string) string { return queuePrefix + queue + ":active" }
func leaseKey(id string) string     { return leasePrefix + id }

// requeueScript: KEYS[1] active, KEYS[2] queue, KEYS[3] lease, ARGV[1] entry.
const requeueScript = `
if redis.call('EXISTS', KEYS[3]) == 1 then
  return 0
end
local n = redis.call('LREM', KEYS[1], 1, ARGV[1])
if n > 0 then
  redis.call('RPUSH', KEYS[2], ARGV[1])
end
return n
`

// Delivery is a job reserved by one worker. It must be acked when handling ends.
type Delivery struct {
	Job   *Job
	Queue string
	raw   string
}

// Broker moves job envelopes through Redis lists on the broker database.
// A reserved job sits on the queue's active list with a lease; if the lease
// expires before the job is acked, ReclaimExpired puts it back.
type Broker struct {
	kv         store.KV
	visibility time.Duration
	logger     *slog.Logger

	mu sync.Mutex
	// suspects holds, per queue, active entries seen without a lease on the
	// previous sweep.
	suspects map[string]map[string]struct{}
}

// NewBroker creates a broker on kv. visibility is how long a reserved job may
// stay unacked before it is redelivered.
func NewBroker(kv store.KV, visibility time.Duration, logger *slog.Logger) *Broker {
	if visibility <= 0 {
		visibility = time.Hour
	}
	return &Broker{
		kv:         kv,
		visibility: visibility,
		logger:     logger.With("component", "broker"),
		suspects:   make(map[string]map[string]struct{}),
	}
}

// Publish appends a job to its queue.
func (b *Broker) Publish(ctx context.Context, job *Job) error {
	raw, err := job.encode()
	if err != nil {
		return err
	}
	if _, err := b.kv.LPush(ctx, queueKey(job.Queue), raw); err != nil {
		return fmt.Errorf("failed to publish job %s to %s: %w", job.ID, job.Queue, err)
	}
	return nil
}

// PublishAt holds a job back until at, when PromoteDue moves it to its queue.
func (b *Broker) PublishAt(ctx context.Context, job *Job, at time.Time) error {
	raw, err := job.encode()
	if err != nil {
		return err
	}
	if err := b.kv.ZAdd(ctx, scheduleKey, float64(at.UnixMilli()), raw); err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.ID, err)
	}
	return nil
}

// Len returns the number of jobs waiting on queue.
func (b *Broker) Len(ctx context.Context, queue string) (int64, error) {
	n, err := b.kv.LLen(ctx, queueKey(queue))
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %s: %w", queue, err)
	}
	return n, nil
}

// Reserve waits up to timeout for the oldest job on queue. It returns nil
// when none arrived. Undecodable envelopes are dropped and reported.
func (b *Broker) Reserve(ctx context.Context, queue string, timeout time.Duration) (*Delivery, error) {
	raw, err := b.kv.BLMove(ctx, queueKey(queue), activeKey(queue), timeout)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reserve from %s: %w", queue, err)
	}

	job, err := decodeJob(raw)
	if err != nil {
		b.logger.Error("dropping malformed envelope", "queue", queue, "error", err)
		if _, remErr := b.kv.LRem(ctx, activeKey(queue), 1, raw); remErr != nil {
			b.logger.Error("failed to drop malformed envelope", "queue", queue, "error", remErr)
		}
		return nil, err
	}

	if err := b.kv.Set(ctx, leaseKey(job.ID.String()), queue, b.visibility); err != nil {
		return nil, fmt.Errorf("failed to lease job %s: %w", job.ID, err)
	}
	return &Delivery{Job: job, Queue: queue, raw: raw}, nil
}

// Ack removes a delivery from its active list and releases its lease.
func (b *Broker) Ack(ctx context.Context, d *Delivery) error {
	if _, err := b.kv.LRem(ctx, activeKey(d.Queue), 1, d.raw); err != nil {
		return fmt.Errorf("failed to ack job %s: %w", d.Job.ID, err)
	}
	if _, err := b.kv.Delete(ctx, leaseKey(d.Job.ID.String())); err != nil {
		return fmt.Errorf("failed to release lease of job %s: %w", d.Job.ID, err)
	}
	return nil
}

// PromoteDue moves up to limit delayed jobs whose time has come onto their
// queues and returns how many it moved.
func (b *Broker) PromoteDue(ctx context.Context, now time.Time, limit int64) (int, error) {
	due, err := b.kv.ZRangeByScore(ctx, scheduleKey, float64(now.UnixMilli()), limit)
	if err != nil {
		return 0, fmt.Errorf("failed to read schedule: %w", err)
	}

	moved := 0
	for _, raw := range due {
		// Whoever removes the member owns the promotion.
		n, err := b.kv.ZRem(ctx, scheduleKey, raw)
		if err != nil {
			return moved, fmt.Errorf("failed to claim scheduled job: %w", err)
		}
		if n == 0 {
			continue
		}

		job, err := decodeJob(raw)
		if err != nil {
			b.logger.Error("dropping malformed scheduled envelope", "error", err)
			continue
		}
		if _, err := b.kv.LPush(ctx, queueKey(job.Queue), raw); err != nil {
			if zErr := b.kv.ZAdd(ctx, scheduleKey, float64(now.UnixMilli()), raw); zErr != nil {
				b.logger.Error("lost scheduled job", "task_id", job.ID, "task_name", job.Name, "error", zErr)
			}
			return moved, fmt.Errorf("failed to promote job %s: %w", job.ID, err)
		}
		moved++
	}
	return moved, nil
}

// ReclaimExpired returns jobs on queue's active list whose lease is gone to
// the front of the queue. An entry must be seen without a lease on two
// consecutive sweeps, so a job reserved between BLMOVE and its lease write
// is never taken back.
func (b *Broker) ReclaimExpired(ctx context.Context, queue string) (int, error) {
	entries, err := b.kv.LRange(ctx, activeKey(queue), 0, -1)
	if err != nil {
		return 0, fmt.Errorf("failed to read active jobs of %s: %w", queue, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	previous := b.suspects[queue]
	current := make(map[string]struct{})
	reclaimed := 0
	for _, raw := range entries {
		job, err := decodeJob(raw)
		if err != nil {
			continue
		}
		n, err := b.kv.Exists(ctx, leaseKey(job.ID.String()))
		if err != nil {
			return reclaimed, fmt.Errorf("failed to check lease of job %s: %w", job.ID, err)
		}
		if n > 0 {
			continue
		}

		if _, seen := previous[raw]; !seen {
			current[raw] = struct{}{}
			continue
		}

		moved, err := b.requeue(ctx, queue, raw, job.ID.String())
		if err != nil {
			return reclaimed, fmt.Errorf("failed to requeue job %s: %w", job.ID, err)
		}
		if !moved {
			continue
		}
		b.logger.Warn("reclaimed job with expired lease",
			"task_id", job.ID, "task_name", job.Name, "queue", queue, "attempt", job.Attempt)
		reclaimed++
	}

	b.suspects[queue] = current
	return reclaimed, nil
}

// requeue moves raw from the active list back to the queue in one step. It
// reports false when the lease reappeared or another sweeper got there first.
func (b *Broker) requeue(ctx context.Context, queue, raw, id string) (bool, error) {
	res, err := b.kv.Eval(ctx, requeueScript,
		[]string{activeKey(queue), queueKey(queue), leaseKey(id)}, raw)
	if err != nil {
		return false, err
	}
	n, _ := res.(int64)
	return n > 0, nil
}
