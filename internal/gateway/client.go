// Package gateway is the client side of the payment gateway HTTP surface,
// used by the session controller and checkout orchestrator. It never sees
// the Pi server key.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/pinetwork"
)

// Error is a non-2xx response from the gateway, carrying whatever the
// gateway attached for diagnosis.
type Error struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("gateway error: status=%d message=%s details=%s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("gateway error: status=%d message=%s", e.StatusCode, e.Message)
}

// Client calls the payment gateway endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// VerifyUser verifies an access token through the gateway.
func (c *Client) VerifyUser(ctx context.Context, accessToken string) (*pinetwork.User, error) {
	var user pinetwork.User
	body := map[string]string{"accessToken": accessToken}
	if err := c.post(ctx, "/api/pi/verify-user", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ApprovePayment asks the gateway to approve a payment.
func (c *Client) ApprovePayment(ctx context.Context, paymentID string) (*pinetwork.Payment, error) {
	var payment pinetwork.Payment
	body := map[string]string{"paymentId": paymentID}
	if err := c.post(ctx, "/api/pi/approve-payment", body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompletePayment asks the gateway to complete a payment with its
// on-chain transaction id.
func (c *Client) CompletePayment(ctx context.Context, paymentID, txid string) (*pinetwork.Payment, error) {
	var payment pinetwork.Payment
	body := map[string]string{"paymentId": paymentID, "txid": txid}
	if err := c.post(ctx, "/api/pi/complete-payment", body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment fetches the current payment state through the gateway.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*pinetwork.Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/pi/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	var payment pinetwork.Payment
	if err := c.send(req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CancelPayment asks the gateway to cancel a payment.
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*pinetwork.Payment, error) {
	var payment pinetwork.Payment
	body := map[string]string{"paymentId": paymentID}
	if err := c.post(ctx, "/api/pi/cancel-payment", body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gatewayErr struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		_ = json.Unmarshal(respBody, &gatewayErr)
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    gatewayErr.Error,
			Details:    gatewayErr.Details,
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}
