package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/capability"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/pinetwork"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/util"

	"go.uber.org/zap"
)

// ErrCapabilityUnavailable is returned when an operation requires the Pi
// capability and discovery has not reached the Ready state.
var ErrCapabilityUnavailable = errors.New("pi capability unavailable")

// authScopes is the fixed scope set requested on every authentication.
var authScopes = []string{"username", "payments"}

// State of capability discovery.
type State int

const (
	StateChecking State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "checking"
	}
}

// Gateway is the subset of gateway operations the controller needs.
type Gateway interface {
	VerifyUser(ctx context.Context, accessToken string) (*pinetwork.User, error)
	GetPayment(ctx context.Context, paymentID string) (*pinetwork.Payment, error)
	CompletePayment(ctx context.Context, paymentID, txid string) (*pinetwork.Payment, error)
}

// Locker serializes reconciliation per payment id. May be nil, in which
// case reconciliation proceeds unguarded.
type Locker interface {
	AcquireReconcileLock(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)
	ReleaseReconcileLock(ctx context.Context, paymentID string) error
}

// Controller owns the live session: capability discovery, the
// authenticate/sign-out flow, session persistence and payment initiation.
type Controller struct {
	capability capability.Capability
	probe      func() bool
	gateway    Gateway
	storage    *Storage
	locks      Locker
	logger     *zap.Logger

	// PollInterval and MaxAttempts bound capability discovery.
	PollInterval time.Duration
	MaxAttempts  int

	mu      sync.Mutex
	state   State
	session *models.Session
}

// NewController creates a session controller
func NewController(cap capability.Capability, probe func() bool, gw Gateway, storage *Storage, locks Locker) *Controller {
	return &Controller{
		capability:   cap,
		probe:        probe,
		gateway:      gw,
		storage:      storage,
		locks:        locks,
		logger:       util.GetLogger(),
		PollInterval: 500 * time.Millisecond,
		MaxAttempts:  30,
		state:        StateChecking,
	}
}

// State returns the capability discovery state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the live session, or nil when signed out.
func (c *Controller) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// WaitUntilReady polls for the capability on a fixed interval up to a
// bounded number of attempts. It reports whether the capability became
// available; after the bound is hit the state is Unavailable and only a
// process restart re-enters discovery.
func (c *Controller) WaitUntilReady(ctx context.Context) (bool, error) {
	if c.probe() {
		c.setState(StateReady)
		return true, nil
	}

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for attempts := 1; attempts < c.MaxAttempts; {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			attempts++
			if c.probe() {
				c.setState(StateReady)
				return true, nil
			}
		}
	}

	c.setState(StateUnavailable)
	util.CapabilityPollTimeoutsTotal.Inc()
	c.logger.Warn("Pi capability not detected, giving up",
		zap.Int("attempts", c.MaxAttempts),
		zap.Duration("interval", c.PollInterval))
	return false, nil
}

// Restore installs the persisted session, if any, as the live session.
func (c *Controller) Restore() error {
	s, err := c.storage.Load()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	return nil
}

// Authenticate runs the capability authentication round-trip, reconciles
// any incomplete payments the network reports, verifies the token with
// the gateway and persists the resulting session.
//
// Gateway verification failure does not block session establishment; it
// is logged and the session is installed anyway.
func (c *Controller) Authenticate(ctx context.Context) (*models.Session, error) {
	if c.State() != StateReady {
		return nil, ErrCapabilityUnavailable
	}

	ctx, span := util.StartSpan(ctx, "Session.Authenticate")
	defer span.End()

	result, err := c.capability.Authenticate(ctx, authScopes, func(payment pinetwork.Payment) {
		if err := c.Reconcile(ctx, payment.Identifier); err != nil {
			c.logger.Warn("Incomplete payment reconciliation failed",
				zap.String("payment_id", payment.Identifier),
				zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("pi authentication failed: %w", err)
	}

	sess := &models.Session{
		UID:         result.User.UID,
		Username:    result.User.Username,
		AccessToken: result.AccessToken,
	}

	if _, err := c.gateway.VerifyUser(ctx, sess.AccessToken); err != nil {
		c.logger.Warn("Backend user verification failed, continuing with session",
			zap.String("uid", sess.UID),
			zap.Error(err))
	}

	if err := c.storage.Save(sess); err != nil {
		c.logger.Warn("Failed to persist session", zap.Error(err))
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	c.logger.Info("User authenticated", zap.String("username", sess.Username))
	return sess, nil
}

// Logout clears the in-memory session and the persisted entry. No
// network call is made.
func (c *Controller) Logout() error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	return c.storage.Clear()
}

// CreatePayment forwards a payment request to the capability.
func (c *Controller) CreatePayment(ctx context.Context, req capability.PaymentRequest, callbacks capability.Callbacks) error {
	if c.State() != StateReady {
		return ErrCapabilityUnavailable
	}
	return c.capability.CreatePayment(ctx, req, callbacks)
}

// Reconcile repairs a payment left approved-but-uncompleted by a partial
// failure: if the network has verified the transaction but completion was
// never recorded, it is completed now. Idempotent; safe to call from the
// auth flow and from the background worker.
func (c *Controller) Reconcile(ctx context.Context, paymentID string) error {
	ctx, span := util.StartSpan(ctx, "Session.Reconcile")
	defer span.End()

	if c.locks != nil {
		acquired, err := c.locks.AcquireReconcileLock(ctx, paymentID, 30*time.Second)
		if err != nil {
			c.logger.Warn("Reconcile lock unavailable, proceeding unguarded",
				zap.String("payment_id", paymentID),
				zap.Error(err))
		} else if !acquired {
			util.ReconciliationsTotal.WithLabelValues("skipped").Inc()
			return nil
		} else {
			defer func() {
				if err := c.locks.ReleaseReconcileLock(ctx, paymentID); err != nil {
					c.logger.Warn("Failed to release reconcile lock", zap.Error(err))
				}
			}()
		}
	}

	payment, err := c.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		util.ReconciliationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to fetch payment %s: %w", paymentID, err)
	}

	if !payment.Status.TransactionVerified || payment.Status.DeveloperCompleted || payment.Transaction == nil {
		util.ReconciliationsTotal.WithLabelValues("noop").Inc()
		return nil
	}

	if _, err := c.gateway.CompletePayment(ctx, paymentID, payment.Transaction.TxID); err != nil {
		util.ReconciliationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to complete payment %s: %w", paymentID, err)
	}

	util.ReconciliationsTotal.WithLabelValues("completed").Inc()
	c.logger.Info("Reconciled incomplete payment",
		zap.String("payment_id", paymentID),
		zap.String("txid", payment.Transaction.TxID))
	return nil
}
