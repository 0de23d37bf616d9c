// Package scheduler enqueues periodic tasks, such as the daily stock report
// and the pending-order sweep, on fixed intervals. It runs as its own process
// so only one copy of each periodic task is enqueued per interval.
package scheduler
