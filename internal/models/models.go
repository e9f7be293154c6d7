package models

import "time"

// Product represents an immutable catalog entry, seeded at startup.
type Product struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PricePi     float64   `json:"price_pi"`
	Images      []string  `json:"images"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// CartItem is a product with a quantity, owned by the cart store.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Session holds the authenticated Pi user. At most one session exists per
// client process; it is persisted under a fixed key and restored at startup.
type Session struct {
	UID         string `json:"uid"`
	Username    string `json:"username"`
	AccessToken string `json:"accessToken"`
}

// Order represents a customer order
type Order struct {
	ID        int64     `db:"id" json:"id"`
	DisplayID string    `db:"display_id" json:"display_id"`
	UserUID   string    `db:"user_uid" json:"user_uid"`
	Status    string    `db:"status" json:"status"`
	AmountPi  float64   `db:"amount_pi" json:"amount_pi"`
	PaymentID string    `db:"payment_id" json:"payment_id,omitempty"`
	TxID      string    `db:"txid" json:"txid,omitempty"`
	Network   string    `db:"network" json:"network"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID          int64   `db:"id" json:"id"`
	OrderID     int64   `db:"order_id" json:"order_id"`
	ProductID   string  `db:"product_id" json:"product_id"`
	Quantity    int     `db:"quantity" json:"quantity"`
	UnitPricePi float64 `db:"unit_price_pi" json:"unit_price_pi"`
}

// PaymentRecord is the locally persisted view of a Pi payment. The Pi
// Network remains the source of truth for payment status; these rows exist
// so orders can be reconciled after a partial failure.
type PaymentRecord struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	PaymentID string    `db:"payment_id" json:"payment_id"`
	Status    string    `db:"status" json:"status"`
	TxID      string    `db:"txid" json:"txid,omitempty"`
	AmountPi  float64   `db:"amount_pi" json:"amount_pi"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Order statuses. Transitions mirror the Pi payment status flags.
const (
	OrderStatusPending   = "pending"
	OrderStatusApproved  = "approved"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Payment record statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusFailed    = "failed"
)

// Network modes
const (
	NetworkMainnet = "Pi Network"
	NetworkTestnet = "Pi Testnet"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
