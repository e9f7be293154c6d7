package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/capability"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/cart"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/models"
	"github.com/dhaneshkmd/DailyPiMart.Store/internal/pinetwork"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessions captures the payment request and its callbacks so tests can
// drive the lifecycle by hand.
type fakeSessions struct {
	session   *models.Session
	createErr error

	req       capability.PaymentRequest
	callbacks capability.Callbacks
	created   int
}

func (f *fakeSessions) Session() *models.Session { return f.session }

func (f *fakeSessions) CreatePayment(ctx context.Context, req capability.PaymentRequest, callbacks capability.Callbacks) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created++
	f.req = req
	f.callbacks = callbacks
	return nil
}

type fakeCheckoutGateway struct {
	approveErr  error
	completeErr error

	approved  []string
	completed []string
}

func (f *fakeCheckoutGateway) ApprovePayment(ctx context.Context, paymentID string) (*pinetwork.Payment, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.approved = append(f.approved, paymentID)
	return &pinetwork.Payment{Identifier: paymentID}, nil
}

func (f *fakeCheckoutGateway) CompletePayment(ctx context.Context, paymentID, txid string) (*pinetwork.Payment, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.completed = append(f.completed, paymentID+"/"+txid)
	return &pinetwork.Payment{Identifier: paymentID}, nil
}

type fakeNotifier struct {
	titles []string
}

func (f *fakeNotifier) Notify(title, message string) {
	f.titles = append(f.titles, title)
}

func signedIn() *fakeSessions {
	return &fakeSessions{session: &models.Session{UID: "user-1", Username: "pioneer", AccessToken: "tok"}}
}

func cartWith(t *testing.T, price float64, qty int) *cart.Store {
	t.Helper()
	s := cart.NewStore()
	require.NoError(t, s.Add(models.Product{
		ID:      "2",
		Slug:    "organic-coffee-beans",
		Title:   "Organic Coffee Beans",
		PricePi: price,
		Stock:   50,
		Active:  true,
	}, qty))
	return s
}

func newOrchestrator(c *cart.Store, sessions Sessions, gw Gateway, notifier Notifier) *Orchestrator {
	return NewOrchestrator(c, sessions, gw, nil, nil, notifier, models.NetworkTestnet)
}

func TestCheckoutEmptyCart(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	notifier := &fakeNotifier{}
	o := newOrchestrator(cart.NewStore(), sessions, gw, notifier)

	err := o.Checkout(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, sessions.created)
	assert.Contains(t, notifier.titles, "Cart Empty")
}

func TestCheckoutRequiresSession(t *testing.T) {
	sessions := &fakeSessions{session: nil}
	gw := &fakeCheckoutGateway{}
	notifier := &fakeNotifier{}
	o := newOrchestrator(cartWith(t, 24.99, 1), sessions, gw, notifier)

	err := o.Checkout(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, sessions.created)
	assert.Contains(t, notifier.titles, "Sign In Required")
}

func TestSuccessfulPurchase(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	notifier := &fakeNotifier{}
	cartStore := cartWith(t, 24.99, 1)
	o := newOrchestrator(cartStore, sessions, gw, notifier)

	require.NoError(t, o.Checkout(context.Background()))
	assert.Equal(t, StateAwaitingApproval, o.State())
	assert.InDelta(t, 24.99, sessions.req.Amount, 0.0001)
	assert.Contains(t, sessions.req.Memo, "Daily Pi Mart Order DPM-")
	assert.Equal(t, "daily-pi-mart", sessions.req.Metadata["source"])

	sessions.callbacks.OnReadyForServerApproval("P1")
	assert.Equal(t, []string{"P1"}, gw.approved)
	assert.Equal(t, StateAwaitingCompletion, o.State())

	sessions.callbacks.OnReadyForServerCompletion("P1", "T1")
	assert.Equal(t, []string{"P1/T1"}, gw.completed)
	assert.Equal(t, StateCompleted, o.State())
	assert.Empty(t, cartStore.Items(), "cart is cleared after completion")
	assert.Contains(t, notifier.titles, "Order Completed!")
}

func TestCancellationBeforeCompletion(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	notifier := &fakeNotifier{}
	cartStore := cartWith(t, 24.99, 1)
	o := newOrchestrator(cartStore, sessions, gw, notifier)

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P1")
	sessions.callbacks.OnCancelled("P1")

	assert.Equal(t, StateCancelled, o.State())
	assert.Empty(t, gw.completed)
	assert.Len(t, cartStore.Items(), 1, "cart is retained on cancellation")
	assert.Contains(t, notifier.titles, "Payment Cancelled")
}

func TestApprovalFailure(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{approveErr: errors.New("upstream 402")}
	notifier := &fakeNotifier{}
	cartStore := cartWith(t, 24.99, 1)
	o := newOrchestrator(cartStore, sessions, gw, notifier)

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P1")

	assert.Equal(t, StateFailed, o.State())
	assert.Error(t, o.Err())
	assert.Empty(t, gw.completed)
	assert.Len(t, cartStore.Items(), 1, "cart is retained on failure")
}

func TestCompletionFailure(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{completeErr: errors.New("upstream down")}
	notifier := &fakeNotifier{}
	cartStore := cartWith(t, 24.99, 1)
	o := newOrchestrator(cartStore, sessions, gw, notifier)

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P1")
	sessions.callbacks.OnReadyForServerCompletion("P1", "T1")

	assert.Equal(t, StateFailed, o.State())
	assert.Len(t, cartStore.Items(), 1, "cart is retained when completion fails")
}

func TestErrorCallback(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	notifier := &fakeNotifier{}
	o := newOrchestrator(cartWith(t, 24.99, 1), sessions, gw, notifier)

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnError(errors.New("wallet closed"), nil)

	assert.Equal(t, StateFailed, o.State())
	assert.ErrorContains(t, o.Err(), "wallet closed")
}

func TestCompletionIgnoredBeforeApproval(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	o := newOrchestrator(cartWith(t, 24.99, 1), sessions, gw, &fakeNotifier{})

	require.NoError(t, o.Checkout(context.Background()))

	// Completion cannot run while approval is still pending.
	sessions.callbacks.OnReadyForServerCompletion("P1", "T1")
	assert.Empty(t, gw.completed)
	assert.Equal(t, StateAwaitingApproval, o.State())
}

func TestDuplicateApprovalIgnored(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	o := newOrchestrator(cartWith(t, 24.99, 1), sessions, gw, &fakeNotifier{})

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P1")
	sessions.callbacks.OnReadyForServerApproval("P1")

	assert.Equal(t, []string{"P1"}, gw.approved, "second approval is a no-op")
}

func TestLateCancellationIgnoredAfterCompletion(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	notifier := &fakeNotifier{}
	o := newOrchestrator(cartWith(t, 24.99, 1), sessions, gw, notifier)

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P1")
	sessions.callbacks.OnReadyForServerCompletion("P1", "T1")
	require.Equal(t, StateCompleted, o.State())

	// A cancel arriving after completion must not regress the order.
	sessions.callbacks.OnCancelled("P1")

	assert.Equal(t, StateCompleted, o.State())
	assert.NotContains(t, notifier.titles, "Payment Cancelled")
}

func TestLateErrorIgnoredAfterCompletion(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	o := newOrchestrator(cartWith(t, 24.99, 1), sessions, gw, &fakeNotifier{})

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P1")
	sessions.callbacks.OnReadyForServerCompletion("P1", "T1")
	require.Equal(t, StateCompleted, o.State())

	sessions.callbacks.OnError(errors.New("stray wallet error"), nil)

	assert.Equal(t, StateCompleted, o.State())
	assert.NoError(t, o.Err())
}

func TestLateErrorIgnoredAfterCancellation(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	o := newOrchestrator(cartWith(t, 24.99, 1), sessions, gw, &fakeNotifier{})

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnCancelled("P1")
	require.Equal(t, StateCancelled, o.State())

	sessions.callbacks.OnError(errors.New("stray wallet error"), nil)

	assert.Equal(t, StateCancelled, o.State())
}

func TestCheckoutInFlightGuard(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{}
	o := newOrchestrator(cartWith(t, 24.99, 2), sessions, gw, &fakeNotifier{})

	require.NoError(t, o.Checkout(context.Background()))
	assert.ErrorIs(t, o.Checkout(context.Background()), ErrCheckoutInFlight)
	assert.Equal(t, 1, sessions.created)
}

func TestRetryAfterFailure(t *testing.T) {
	sessions := signedIn()
	gw := &fakeCheckoutGateway{approveErr: errors.New("transient")}
	cartStore := cartWith(t, 24.99, 1)
	o := newOrchestrator(cartStore, sessions, gw, &fakeNotifier{})

	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P1")
	require.Equal(t, StateFailed, o.State())

	gw.approveErr = nil
	require.NoError(t, o.Checkout(context.Background()))
	sessions.callbacks.OnReadyForServerApproval("P2")
	sessions.callbacks.OnReadyForServerCompletion("P2", "T2")

	assert.Equal(t, StateCompleted, o.State())
	assert.Empty(t, cartStore.Items())
}

func TestInitiationFailure(t *testing.T) {
	sessions := signedIn()
	sessions.createErr = errors.New("capability gone")
	cartStore := cartWith(t, 24.99, 1)
	notifier := &fakeNotifier{}
	o := newOrchestrator(cartStore, sessions, &fakeCheckoutGateway{}, notifier)

	err := o.Checkout(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateFailed, o.State())
	assert.Len(t, cartStore.Items(), 1)
	assert.Contains(t, notifier.titles, "Payment Error")
}
