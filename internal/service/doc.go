// Package service contains the application use cases behind the HTTP API.
//
// OrderService records submitted orders, enqueues pipeline tasks and reads
// back task results, order status and generated invoices. It depends on the
// store interfaces and the task producer, never on Redis directly.
package service
