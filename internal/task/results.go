package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orderflow/orderflow/internal/store"
)

const resultPrefix = "task-meta:"

func resultKey(id uuid.UUID) string { return resultPrefix + id.String() }

// Result is the stored outcome of a task, readable by ID until it expires.
type Result struct {
	TaskID   uuid.UUID       `json:"task_id"`
	Task     string          `json:"task"`
	Status   TaskStatus      `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Attempt  int             `json:"attempt"`
	DateDone *time.Time      `json:"date_done,omitempty"`
}

// ResultStore keeps task results on the backend database.
type ResultStore struct {
	kv  store.KV
	ttl time.Duration
}

// NewResultStore creates a result store whose records expire after ttl.
func NewResultStore(kv store.KV, ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultStore{kv: kv, ttl: ttl}
}

// Save overwrites the record of res.TaskID and restarts its retention.
func (s *ResultStore) Save(ctx context.Context, res *Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result of task %s: %w", res.TaskID, err)
	}
	if err := s.kv.Set(ctx, resultKey(res.TaskID), string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to save result of task %s: %w", res.TaskID, err)
	}
	return nil
}

// Get returns the record of id, or ErrTaskNotFound.
func (s *ResultStore) Get(ctx context.Context, id uuid.UUID) (*Result, error) {
	raw, err := s.kv.Get(ctx, resultKey(id))
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to read result of task %s: %w", id, err)
	}
	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, store.NewStoreError(resultKey(id), "get", err.Error(), store.ErrCorruptValue)
	}
	return &res, nil
}

func newResult(job *Job, status TaskStatus) *Result {
	return &Result{
		TaskID:  job.ID,
		Task:    job.Name,
		Status:  status,
		Attempt: job.Attempt,
	}
}

func (r *Result) finish(value any, err error) error {
	now := time.Now().UTC()
	r.DateDone = &now
	if err != nil {
		r.Error = err.Error()
		return nil
	}
	if value == nil {
		return nil
	}
	data, mErr := json.Marshal(value)
	if mErr != nil {
		return fmt.Errorf("failed to encode return value of task %s: %w", r.TaskID, mErr)
	}
	r.Result = data
	return nil
}
