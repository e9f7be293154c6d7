package worker

import (
	"context"
	"log"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/broker"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/redisclient"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/store"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/util"

	"go.uber.org/zap"
)

// ReconcileWorker consumes payment lifecycle events and keeps persisted
// orders in step with the Pi Network's view. It is the background half of
// reconciliation; the login-time half lives in the session controller.
type ReconcileWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	redis        *redisclient.Client
	logger       *zap.Logger
}

// NewReconcileWorker creates a reconcile worker
func NewReconcileWorker(consumer *broker.Consumer, st *store.Store, redis *redisclient.Client) *ReconcileWorker {
	w := &ReconcileWorker{
		consumer: consumer,
		store:    st,
		redis:    redis,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentCompleted(w.handlePaymentCompleted)
	eventHandler.OnPaymentCancelled(w.handlePaymentCancelled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	log.Println("Starting reconcile worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ReconcileWorker) Stop() error {
	log.Println("Stopping reconcile worker...")
	return w.consumer.Close()
}

func (w *ReconcileWorker) handlePaymentCompleted(ctx context.Context, event *models.PaymentCompletedEvent) error {
	processed, err := w.isProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	ctx, span := util.StartSpan(ctx, "ReconcileWorker.HandlePaymentCompleted")
	defer span.End()

	order, err := w.store.GetOrderByPaymentID(ctx, event.PaymentID)
	if err != nil {
		return err
	}
	if order != nil && order.Status != models.OrderStatusCompleted {
		if err := w.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted); err != nil {
			return err
		}
		w.logger.Info("Order marked completed from payment event",
			zap.Int64("order_id", order.ID),
			zap.String("payment_id", event.PaymentID))
	}

	payment, err := w.store.GetPaymentByPaymentID(ctx, event.PaymentID)
	if err != nil {
		return err
	}
	if payment != nil && payment.Status != models.PaymentStatusCompleted {
		if err := w.store.UpdatePaymentStatus(ctx, payment.ID, models.PaymentStatusCompleted, event.TxID); err != nil {
			w.logger.Error("Failed to update payment record", zap.Error(err))
		}
	}

	w.markProcessed(ctx, event.EventID, event.EventType)
	return nil
}

func (w *ReconcileWorker) handlePaymentCancelled(ctx context.Context, event *models.PaymentCancelledEvent) error {
	processed, err := w.isProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	ctx, span := util.StartSpan(ctx, "ReconcileWorker.HandlePaymentCancelled")
	defer span.End()

	order, err := w.store.GetOrderByPaymentID(ctx, event.PaymentID)
	if err != nil {
		return err
	}
	if order != nil && order.Status != models.OrderStatusCompleted {
		if err := w.store.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled); err != nil {
			return err
		}
		w.logger.Info("Order marked cancelled from payment event",
			zap.Int64("order_id", order.ID),
			zap.String("payment_id", event.PaymentID))
	}

	w.markProcessed(ctx, event.EventID, event.EventType)
	return nil
}

// isProcessed checks Redis first, falling back to the database.
func (w *ReconcileWorker) isProcessed(ctx context.Context, eventID string) (bool, error) {
	if w.redis != nil {
		seen, err := w.redis.CheckIdempotencyKey(ctx, eventID)
		if err == nil && seen {
			return true, nil
		}
		if err != nil {
			w.logger.Warn("Redis idempotency check failed, falling back to DB", zap.Error(err))
		}
	}
	return w.store.IsEventProcessed(ctx, eventID)
}

func (w *ReconcileWorker) markProcessed(ctx context.Context, eventID, eventType string) {
	if err := w.store.MarkEventProcessed(ctx, eventID, eventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	if w.redis != nil {
		if err := w.redis.SetIdempotencyKey(ctx, eventID, "1", 24*time.Hour); err != nil {
			w.logger.Warn("Failed to set idempotency key", zap.Error(err))
		}
	}
}
