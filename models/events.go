package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderCreated = "order.created"

// OrderCreatedEvent is published after an order commits.
type OrderCreatedEvent struct {
	Event         string          `json:"event"`
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerEmail string          `json:"customer_email"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	ItemCount     int             `json:"item_count"`
	CompanyIDs    []string        `json:"company_ids"`
	Timestamp     time.Time       `json:"timestamp"`
}

// DispatchTypeNotify marks a queue message as a DispatchRequest, so other
// messages that happen to carry an order_id are not mistaken for one.
const DispatchTypeNotify = "notifications.dispatch"

// DispatchRequest asks the notification dispatcher to (re)send an order's
// notifications. Empty Classes means every class.
type DispatchRequest struct {
	Type      string   `json:"type"`
	OrderID   string   `json:"order_id"`
	Classes   []string `json:"classes,omitempty"`
	CompanyID string   `json:"company_id,omitempty"`
}

// NewDispatchRequest asks for every notification of one order.
func NewDispatchRequest(orderID string) DispatchRequest {
	return DispatchRequest{Type: DispatchTypeNotify, OrderID: orderID}
}
