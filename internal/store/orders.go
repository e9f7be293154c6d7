package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (display_id, user_uid, status, amount_pi, payment_id, txid, network)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.DisplayID, order.UserUID, order.Status, order.AmountPi,
		order.PaymentID, order.TxID, order.Network)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByDisplayID retrieves an order by its customer-facing id
func (s *Store) GetOrderByDisplayID(ctx context.Context, displayID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE display_id = $1", displayID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", displayID)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByPaymentID retrieves the order a Pi payment belongs to,
// returning nil when no order references it
func (s *Store) GetOrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE payment_id = $1", paymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUser retrieves orders for a Pi user
func (s *Store) GetOrdersByUser(ctx context.Context, userUID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_uid = $1 ORDER BY created_at DESC", userUID)
	return orders, err
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// SetOrderPayment attaches the Pi payment identifier and transaction id
// to an order
func (s *Store) SetOrderPayment(ctx context.Context, orderID int64, paymentID, txid string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET payment_id = $1, txid = $2, updated_at = NOW() WHERE id = $3",
		paymentID, txid, orderID)
	return err
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price_pi)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPricePi)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.PaymentRecord) error {
	query := `
		INSERT INTO payments (order_id, payment_id, status, txid, amount_pi)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, payment, query,
		payment.OrderID, payment.PaymentID, payment.Status, payment.TxID, payment.AmountPi)
}

// GetPaymentByPaymentID retrieves a payment record by its Pi identifier,
// returning nil when none exists
func (s *Store) GetPaymentByPaymentID(ctx context.Context, paymentID string) (*models.PaymentRecord, error) {
	var payment models.PaymentRecord
	err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE payment_id = $1 ORDER BY created_at DESC LIMIT 1", paymentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdatePaymentStatus updates a payment record's status and transaction id
func (s *Store) UpdatePaymentStatus(ctx context.Context, id int64, status, txid string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE payments SET status = $1, txid = $2, updated_at = NOW() WHERE id = $3",
		status, txid, id)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
