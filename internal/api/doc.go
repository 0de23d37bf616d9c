// Package api is the HTTP boundary of the order pipeline. Handlers validate
// requests, hand them to the order service and map its errors to status
// codes; every pipeline step runs later on a worker.
package api
