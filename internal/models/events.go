package models

import "time"

// Event types
const (
	EventTypePaymentCompleted = "PAYMENT_COMPLETED"
	EventTypePaymentCancelled = "PAYMENT_CANCELLED"
	EventTypeOrderCompleted   = "ORDER_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent published by the gateway when a payment is
// completed with the Pi Network
type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID string  `json:"payment_id"`
	TxID      string  `json:"txid"`
	UserUID   string  `json:"user_uid"`
	AmountPi  float64 `json:"amount_pi"`
}

// PaymentCancelledEvent published by the gateway when a payment is
// cancelled with the Pi Network
type PaymentCancelledEvent struct {
	BaseEvent
	PaymentID string `json:"payment_id"`
	UserUID   string `json:"user_uid"`
}

// OrderCompletedEvent published by the checkout orchestrator once the
// full payment lifecycle has finished
type OrderCompletedEvent struct {
	BaseEvent
	OrderID   int64   `json:"order_id"`
	DisplayID string  `json:"display_id"`
	UserUID   string  `json:"user_uid"`
	AmountPi  float64 `json:"amount_pi"`
	PaymentID string  `json:"payment_id"`
	TxID      string  `json:"txid"`
}
