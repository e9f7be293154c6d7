package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/capability"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/cart"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/pinetwork"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/store"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNotAuthenticated = errors.New("sign in with Pi to make payments")
	ErrCheckoutInFlight = errors.New("a checkout is already in progress")
)

// State of one checkout attempt.
type State string

const (
	StateIdle               State = "IDLE"
	StateAwaitingApproval   State = "AWAITING_APPROVAL"
	StateAwaitingCompletion State = "AWAITING_COMPLETION"
	StateCompleted          State = "COMPLETED"
	StateCancelled          State = "CANCELLED"
	StateFailed             State = "FAILED"
)

// Gateway is the subset of gateway operations checkout needs.
type Gateway interface {
	ApprovePayment(ctx context.Context, paymentID string) (*pinetwork.Payment, error)
	CompletePayment(ctx context.Context, paymentID, txid string) (*pinetwork.Payment, error)
}

// Sessions supplies the live session and payment initiation.
type Sessions interface {
	Session() *models.Session
	CreatePayment(ctx context.Context, req capability.PaymentRequest, callbacks capability.Callbacks) error
}

// Notifier surfaces short human-readable notices to the user.
type Notifier interface {
	Notify(title, message string)
}

// EventPublisher publishes the order-completed event. May be nil.
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
}

// Orchestrator drives one cart-to-paid-order transition through the
// three-phase payment protocol. Approval always precedes completion for a
// given payment, but cancellation or error can end the sequence between
// the two.
type Orchestrator struct {
	cart      *cart.Store
	sessions  Sessions
	gateway   Gateway
	orders    *store.Store // nil when orders are not persisted
	publisher EventPublisher
	notifier  Notifier
	network   string
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	lastErr error
	orderID int64
}

// NewOrchestrator creates a checkout orchestrator
func NewOrchestrator(cartStore *cart.Store, sessions Sessions, gw Gateway, orders *store.Store, publisher EventPublisher, notifier Notifier, network string) *Orchestrator {
	return &Orchestrator{
		cart:      cartStore,
		sessions:  sessions,
		gateway:   gw,
		orders:    orders,
		publisher: publisher,
		notifier:  notifier,
		network:   network,
		logger:    util.GetLogger(),
		state:     StateIdle,
	}
}

// State returns the current checkout state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Err returns the error that moved the checkout to Failed, if any.
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Checkout initiates payment for the current cart. The cart must be
// non-empty and a session must be present; otherwise no network call is
// made. The returned error covers initiation only — the lifecycle then
// progresses through the capability callbacks.
func (o *Orchestrator) Checkout(ctx context.Context) error {
	items := o.cart.Items()
	if len(items) == 0 {
		o.notify("Cart Empty", "Add items to your cart before checking out.")
		return ErrEmptyCart
	}

	sess := o.sessions.Session()
	if sess == nil {
		o.notify("Sign In Required", "Please sign in with Pi to make payments.")
		return ErrNotAuthenticated
	}

	o.mu.Lock()
	if o.state == StateAwaitingApproval || o.state == StateAwaitingCompletion {
		o.mu.Unlock()
		return ErrCheckoutInFlight
	}
	o.state = StateAwaitingApproval
	o.lastErr = nil
	o.orderID = 0
	o.mu.Unlock()

	ctx, span := util.StartSpan(ctx, "Checkout.Checkout")
	defer span.End()

	amount := o.cart.TotalPrice()
	displayID := fmt.Sprintf("DPM-%s", uuid.New().String()[:8])

	o.createOrderRecord(ctx, sess, displayID, amount, items)

	req := capability.PaymentRequest{
		Amount: amount,
		Memo:   fmt.Sprintf("Daily Pi Mart Order %s", displayID),
		Metadata: map[string]interface{}{
			"orderId": displayID,
			"source":  "daily-pi-mart",
		},
	}

	callbacks := capability.Callbacks{
		OnReadyForServerApproval: func(paymentID string) {
			o.handleApproval(ctx, paymentID)
		},
		OnReadyForServerCompletion: func(paymentID, txid string) {
			o.handleCompletion(ctx, sess, displayID, amount, paymentID, txid)
		},
		OnCancelled: func(paymentID string) {
			o.handleCancelled(ctx, paymentID)
		},
		OnError: func(err error, payment *pinetwork.Payment) {
			o.handleError(ctx, err)
		},
	}

	if err := o.sessions.CreatePayment(ctx, req, callbacks); err != nil {
		o.fail(ctx, fmt.Errorf("failed to initiate payment: %w", err))
		o.notify("Payment Error", "Unable to initiate payment. Please try again.")
		return err
	}

	o.logger.Info("Checkout started",
		zap.String("order", displayID),
		zap.Float64("amount_pi", amount))
	return nil
}

func (o *Orchestrator) handleApproval(ctx context.Context, paymentID string) {
	o.mu.Lock()
	if o.state != StateAwaitingApproval {
		state := o.state
		o.mu.Unlock()
		o.logger.Warn("Ignoring approval callback in unexpected state",
			zap.String("payment_id", paymentID),
			zap.String("state", string(state)))
		return
	}
	o.mu.Unlock()

	ctx, span := util.StartSpan(ctx, "Checkout.HandleApproval")
	defer span.End()

	if _, err := o.gateway.ApprovePayment(ctx, paymentID); err != nil {
		// The payment stays open upstream; repair happens through the
		// incomplete-payment reconcile path on next login.
		o.fail(ctx, fmt.Errorf("payment approval failed: %w", err))
		o.notify("Payment Failed", "Payment approval failed. Please try again.")
		return
	}

	o.updateOrderStatus(ctx, models.OrderStatusApproved)

	o.mu.Lock()
	o.state = StateAwaitingCompletion
	o.mu.Unlock()

	o.notify("Processing Payment", "Your payment is being processed...")
	o.logger.Info("Payment approved", zap.String("payment_id", paymentID))
}

func (o *Orchestrator) handleCompletion(ctx context.Context, sess *models.Session, displayID string, amount float64, paymentID, txid string) {
	o.mu.Lock()
	if o.state != StateAwaitingCompletion {
		state := o.state
		o.mu.Unlock()
		o.logger.Warn("Ignoring completion callback in unexpected state",
			zap.String("payment_id", paymentID),
			zap.String("state", string(state)))
		return
	}
	o.mu.Unlock()

	ctx, span := util.StartSpan(ctx, "Checkout.HandleCompletion")
	defer span.End()

	if _, err := o.gateway.CompletePayment(ctx, paymentID, txid); err != nil {
		// The transaction may already be on-chain but unconfirmed to the
		// backend; the reconcile sweep repairs this on next login.
		o.fail(ctx, fmt.Errorf("payment completion failed: %w", err))
		o.notify("Payment Failed", "Payment completion failed. Please contact support.")
		return
	}

	o.finalizeOrder(ctx, sess, displayID, amount, paymentID, txid)
	o.cart.Clear()

	o.mu.Lock()
	o.state = StateCompleted
	o.mu.Unlock()

	util.CheckoutOutcomesTotal.WithLabelValues("completed").Inc()
	o.notify("Order Completed!", "Your order has been successfully processed.")
	o.logger.Info("Checkout completed",
		zap.String("order", displayID),
		zap.String("payment_id", paymentID),
		zap.String("txid", txid))
}

func (o *Orchestrator) handleCancelled(ctx context.Context, paymentID string) {
	if !o.interruptible() {
		o.logger.Warn("Ignoring cancellation callback in unexpected state",
			zap.String("payment_id", paymentID),
			zap.String("state", string(o.State())))
		return
	}

	// The network already knows; no gateway call is required.
	o.updateOrderStatus(ctx, models.OrderStatusCancelled)

	o.mu.Lock()
	o.state = StateCancelled
	o.mu.Unlock()

	util.CheckoutOutcomesTotal.WithLabelValues("cancelled").Inc()
	o.notify("Payment Cancelled", "Your payment was cancelled.")
	o.logger.Info("Checkout cancelled", zap.String("payment_id", paymentID))
}

func (o *Orchestrator) handleError(ctx context.Context, err error) {
	if !o.interruptible() {
		o.logger.Warn("Ignoring error callback in unexpected state",
			zap.String("state", string(o.State())),
			zap.Error(err))
		return
	}

	o.fail(ctx, err)
	o.notify("Payment Failed", "Unable to process your payment. Please try again.")
}

// interruptible reports whether a cancel or error callback may still end
// the checkout. Once a terminal state is reached, late callbacks are
// ignored so a completed order is never regressed.
func (o *Orchestrator) interruptible() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateAwaitingApproval || o.state == StateAwaitingCompletion
}

// fail moves the checkout to Failed, leaving the cart intact for retry.
func (o *Orchestrator) fail(ctx context.Context, err error) {
	o.updateOrderStatus(ctx, models.OrderStatusFailed)

	o.mu.Lock()
	o.state = StateFailed
	o.lastErr = err
	o.mu.Unlock()

	util.CheckoutOutcomesTotal.WithLabelValues("failed").Inc()
	o.logger.Error("Checkout failed", zap.Error(err))
}

func (o *Orchestrator) notify(title, message string) {
	if o.notifier != nil {
		o.notifier.Notify(title, message)
	}
}

// createOrderRecord persists the pending order. Persistence is
// best-effort: the payment lifecycle must not stall on storage trouble.
func (o *Orchestrator) createOrderRecord(ctx context.Context, sess *models.Session, displayID string, amount float64, items []models.CartItem) {
	if o.orders == nil {
		return
	}

	order := &models.Order{
		DisplayID: displayID,
		UserUID:   sess.UID,
		Status:    models.OrderStatusPending,
		AmountPi:  amount,
		Network:   o.network,
	}
	if err := o.orders.CreateOrder(ctx, order); err != nil {
		o.logger.Error("Failed to persist order", zap.Error(err))
		return
	}

	for _, item := range items {
		orderItem := &models.OrderItem{
			OrderID:     order.ID,
			ProductID:   item.Product.ID,
			Quantity:    item.Quantity,
			UnitPricePi: item.Product.PricePi,
		}
		if err := o.orders.CreateOrderItem(ctx, orderItem); err != nil {
			o.logger.Error("Failed to persist order item",
				zap.String("product_id", item.Product.ID),
				zap.Error(err))
		}
	}

	o.mu.Lock()
	o.orderID = order.ID
	o.mu.Unlock()

	util.OrdersCreatedTotal.Inc()
}

func (o *Orchestrator) updateOrderStatus(ctx context.Context, status string) {
	o.mu.Lock()
	orderID := o.orderID
	o.mu.Unlock()

	if o.orders == nil || orderID == 0 {
		return
	}
	if err := o.orders.UpdateOrderStatus(ctx, orderID, status); err != nil {
		o.logger.Error("Failed to update order status",
			zap.Int64("order_id", orderID),
			zap.String("status", status),
			zap.Error(err))
	}
}

func (o *Orchestrator) finalizeOrder(ctx context.Context, sess *models.Session, displayID string, amount float64, paymentID, txid string) {
	o.mu.Lock()
	orderID := o.orderID
	o.mu.Unlock()

	if o.orders != nil && orderID != 0 {
		if err := o.orders.SetOrderPayment(ctx, orderID, paymentID, txid); err != nil {
			o.logger.Error("Failed to attach payment to order", zap.Error(err))
		}
		if err := o.orders.UpdateOrderStatus(ctx, orderID, models.OrderStatusCompleted); err != nil {
			o.logger.Error("Failed to mark order completed", zap.Error(err))
		}
		payment := &models.PaymentRecord{
			OrderID:   orderID,
			PaymentID: paymentID,
			Status:    models.PaymentStatusCompleted,
			TxID:      txid,
			AmountPi:  amount,
		}
		if err := o.orders.CreatePayment(ctx, payment); err != nil {
			o.logger.Error("Failed to persist payment record", zap.Error(err))
		}
		util.OrdersCompletedTotal.Inc()
	}

	if o.publisher != nil {
		event := &models.OrderCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderCompleted,
				Timestamp: time.Now(),
			},
			OrderID:   orderID,
			DisplayID: displayID,
			UserUID:   sess.UID,
			AmountPi:  amount,
			PaymentID: paymentID,
			TxID:      txid,
		}
		if err := o.publisher.PublishOrderCompleted(ctx, event); err != nil {
			o.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
		}
	}
}
