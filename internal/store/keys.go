package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Persisted key layout. Other tooling may rely on these exact shapes.
const (
	stockPrefix   = "stock:"
	orderPrefix   = "order:"
	invoicePrefix = "invoice:"

	// StockPattern matches every stock entry.
	StockPattern = stockPrefix + "*"
	// OrderStatusPattern matches every order status key.
	OrderStatusPattern = orderPrefix + "*:status"
	// OrderOutboxPattern matches every order outbox list.
	OrderOutboxPattern = orderPrefix + "*:outbox"
)

// StockKey returns the key holding the available quantity of product.
func StockKey(product string) string {
	return stockPrefix + product
}

// OrderStatusKey returns the idempotency key of an order.
func OrderStatusKey(orderID int64) string {
	return fmt.Sprintf("%s%d:status", orderPrefix, orderID)
}

// OrderRequestKey returns the key holding the submitted order request,
// which reconciliation needs to re-enqueue a pending order.
func OrderRequestKey(orderID int64) string {
	return fmt.Sprintf("%s%d:request", orderPrefix, orderID)
}

// OrderOutboxKey returns the list of follow-up jobs written with a reservation.
func OrderOutboxKey(orderID int64) string {
	return fmt.Sprintf("%s%d:outbox", orderPrefix, orderID)
}

// InvoiceKey returns the key holding the rendered invoice of an order.
func InvoiceKey(orderID int64) string {
	return fmt.Sprintf("%s%d", invoicePrefix, orderID)
}

// ProductFromStockKey extracts the product name from a stock key.
func ProductFromStockKey(key string) (string, bool) {
	product, ok := strings.CutPrefix(key, stockPrefix)
	if !ok || product == "" {
		return "", false
	}
	return product, true
}

// OrderIDFromKey extracts the order ID from any order:<id>:<suffix> key.
func OrderIDFromKey(key string) (int64, error) {
	rest, ok := strings.CutPrefix(key, orderPrefix)
	if !ok {
		return 0, fmt.Errorf("key %q is not an order key", key)
	}
	idPart, _, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, fmt.Errorf("key %q has no suffix", key)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("key %q has invalid order id: %w", key, err)
	}
	return id, nil
}
