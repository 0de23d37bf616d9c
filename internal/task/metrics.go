package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksEnqueued counts tasks published by producers.
	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_tasks_enqueued_total",
		Help: "Total number of tasks published to a queue",
	}, []string{"task", "queue"})

	// TasksProcessed counts task attempts by final attempt status.
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_tasks_processed_total",
		Help: "Total number of task attempts by outcome",
	}, []string{"task", "status"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderflow_task_duration_seconds",
		Help:    "Handler execution time per task attempt",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	// TasksReclaimed counts jobs redelivered after their lease expired.
	TasksReclaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_tasks_reclaimed_total",
		Help: "Total number of reserved tasks returned to their queue after the visibility timeout",
	}, []string{"queue"})
)
