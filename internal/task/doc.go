// Package task runs background jobs on Redis.
//
// A TaskQueue routes a named task to a queue, records a pending result and
// publishes a JSON envelope through the Broker. A TaskRunner reserves
// envelopes with a visibility lease, runs the registered Handler, retries
// transient failures with backoff and records the outcome in the
// ResultStore. Jobs whose lease expires unacked are redelivered, so every
// handler must tolerate running more than once for the same task ID.
//
// The order pipeline handlers live here too: fulfill_order reserves stock
// and chains send_notification and generate_invoice through a per-order
// outbox, and the reconciliation tasks report stock, re-enqueue stale
// pending orders and drain leftover outboxes.
package task
