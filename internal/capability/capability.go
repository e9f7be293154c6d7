// Package capability defines the contract of the externally supplied Pi
// identity/payment object. The real implementation is injected by the Pi
// Browser environment; this system only consumes it.
package capability

import (
	"context"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/pinetwork"
)

// AuthUser identifies the authenticated Pi user.
type AuthUser struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// AuthResult is returned by a successful authentication round-trip.
type AuthResult struct {
	AccessToken string   `json:"accessToken"`
	User        AuthUser `json:"user"`
}

// PaymentRequest describes the payment to create.
type PaymentRequest struct {
	Amount   float64                `json:"amount"`
	Memo     string                 `json:"memo"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Callbacks are invoked asynchronously as the payment moves through its
// lifecycle. The capability guarantees the approval callback precedes the
// completion callback for the same payment, but cancellation or error may
// terminate the sequence at any point.
type Callbacks struct {
	OnReadyForServerApproval   func(paymentID string)
	OnReadyForServerCompletion func(paymentID, txid string)
	OnCancelled                func(paymentID string)
	OnError                    func(err error, payment *pinetwork.Payment)
}

// IncompletePaymentFunc is invoked during authentication for each payment
// the network still considers unfinished.
type IncompletePaymentFunc func(payment pinetwork.Payment)

// Capability is the identity/payment object the client depends on.
// Availability is not guaranteed; callers must probe before use.
type Capability interface {
	Authenticate(ctx context.Context, scopes []string, onIncompletePaymentFound IncompletePaymentFunc) (*AuthResult, error)
	CreatePayment(ctx context.Context, req PaymentRequest, callbacks Callbacks) error
}
