package domain

import (
	"strings"
)

// OrderStatus is the persisted state of an order's fulfillment.
type OrderStatus string

// Valid order status values. An absent status means the order was never submitted.
const (
	// OrderStatusPending is written when the order is enqueued.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessed is terminal: stock was reserved exactly once.
	OrderStatusProcessed OrderStatus = "processed"
	// OrderStatusFailed records a business rejection. A redelivered order
	// re-checks stock, so this is not terminal for the fulfillment task.
	OrderStatusFailed OrderStatus = "failed"
)

// IsValid reports whether s is one of the known statuses.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessed, OrderStatusFailed:
		return true
	}
	return false
}

// Order is a customer's request to buy a quantity of one product.
type Order struct {
	ID       int64  `json:"order_id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Email    string `json:"email"`
}

// Validate checks the order fields that every pipeline step relies on.
func (o Order) Validate() error {
	if o.ID <= 0 {
		return NewValidationError("order_id", "must be positive", ErrInvalidID)
	}
	if strings.TrimSpace(o.Product) == "" {
		return NewValidationError("product", "cannot be empty", ErrEmptyProduct)
	}
	if o.Quantity < 1 {
		return NewValidationError("quantity", "must be at least 1", ErrInvalidQuantity)
	}
	return ValidateEmail(o.Email)
}

// ValidateEmail performs the minimal syntactic check used before delivery:
// the address must contain the local-part/domain separator.
func ValidateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return NewValidationError("email", "must contain '@'", ErrInvalidEmail)
	}
	return nil
}

// ReservationOutcome is the result of an atomic stock reservation attempt.
type ReservationOutcome int

const (
	// ReservationReserved means stock was decremented and the order marked processed.
	ReservationReserved ReservationOutcome = iota + 1
	// ReservationAlreadyProcessed means the idempotency key was already set.
	ReservationAlreadyProcessed
	// ReservationInsufficientStock means nothing was decremented.
	ReservationInsufficientStock
)

// String returns a log-friendly name.
func (o ReservationOutcome) String() string {
	switch o {
	case ReservationReserved:
		return "reserved"
	case ReservationAlreadyProcessed:
		return "already_processed"
	case ReservationInsufficientStock:
		return "insufficient_stock"
	default:
		return "unknown"
	}
}

// Reservation reports what the reservation step did. RemainingStock is -1
// when the product has no stock entry or the outcome did not read it.
type Reservation struct {
	Outcome        ReservationOutcome
	RemainingStock int64
}
