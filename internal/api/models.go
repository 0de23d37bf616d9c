package api

import (
	"encoding/json"
	"time"
)

// SubmitOrderRequest is the body of POST /api/orders.
type SubmitOrderRequest struct {
	OrderID  int64  `json:"order_id" validate:"required,gt=0"`
	Product  string `json:"product"  validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gte=1"`
	Email    string `json:"email"    validate:"required,contains=@"`
}

// SubmitNotificationRequest is the body of POST /api/notifications.
type SubmitNotificationRequest struct {
	Email   string `json:"email"   validate:"required,contains=@"`
	Message string `json:"message" validate:"required"`
	Subject string `json:"subject" validate:"max=200"`
}

// TaskAcceptedResponse is returned when work has been enqueued.
type TaskAcceptedResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse reports the stored state of a task.
type TaskStatusResponse struct {
	TaskID   string          `json:"task_id"`
	Task     string          `json:"task"`
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Attempt  int             `json:"attempt"`
	DateDone *time.Time      `json:"date_done,omitempty"`
}

// OrderStatusResponse reports the fulfillment state of an order.
type OrderStatusResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// SetStockRequest provisions the stock of one product.
type SetStockRequest struct {
	Quantity *int64 `json:"quantity" validate:"required,gte=0"`
}

// StockResponse reports the available quantity of a product.
type StockResponse struct {
	Product  string `json:"product"`
	Quantity int64  `json:"quantity"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
