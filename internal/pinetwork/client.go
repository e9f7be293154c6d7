package pinetwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dhaneshkmd/DailyPiMart.Store/internal/util"
)

// DefaultBaseURL is the production Pi Platform API endpoint.
const DefaultBaseURL = "https://api.minepi.com/v2"

// PaymentStatus carries the four independent lifecycle flags owned by the
// Pi Network.
type PaymentStatus struct {
	DeveloperApproved   bool `json:"developer_approved"`
	TransactionVerified bool `json:"transaction_verified"`
	DeveloperCompleted  bool `json:"developer_completed"`
	Cancelled           bool `json:"cancelled"`
	UserCancelled       bool `json:"user_cancelled"`
}

// Transaction is present once the payment has been broadcast on-chain.
type Transaction struct {
	TxID     string `json:"txid"`
	Verified bool   `json:"verified"`
	Link     string `json:"_link"`
}

// Payment mirrors the Pi Platform payment resource.
type Payment struct {
	Identifier  string                 `json:"identifier"`
	UserUID     string                 `json:"user_uid"`
	Amount      float64                `json:"amount"`
	Memo        string                 `json:"memo"`
	Metadata    map[string]interface{} `json:"metadata"`
	FromAddress string                 `json:"from_address"`
	ToAddress   string                 `json:"to_address"`
	Direction   string                 `json:"direction"`
	CreatedAt   string                 `json:"created_at"`
	Network     string                 `json:"network"`
	Status      PaymentStatus          `json:"status"`
	Transaction *Transaction           `json:"transaction"`
}

// UserCredentials describes the scopes granted to an access token.
type UserCredentials struct {
	Scopes     []string `json:"scopes"`
	ValidUntil struct {
		Timestamp int64  `json:"timestamp"`
		ISO8601   string `json:"iso8601"`
	} `json:"valid_until"`
}

// User is the Pi Platform "who am I" response.
type User struct {
	UID         string          `json:"uid"`
	Username    string          `json:"username,omitempty"`
	Credentials UserCredentials `json:"credentials"`
}

// APIError is a non-2xx response from the Pi Platform API. The upstream
// status and body are preserved so callers can forward them for diagnosis.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pi api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Client talks to the Pi Platform API. It is the only component holding
// the server key.
type Client struct {
	baseURL    string
	serverKey  string
	httpClient *http.Client
}

// NewClient creates a Pi Platform API client
func NewClient(baseURL, serverKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		serverKey:  serverKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether the server key is present.
func (c *Client) Configured() bool {
	return c.serverKey != ""
}

// Me verifies an access token against the Pi Network and returns the
// user it belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	var user User
	auth := fmt.Sprintf("Bearer %s", accessToken)
	if err := c.do(ctx, http.MethodGet, "/me", auth, nil, &user, "verify_user"); err != nil {
		return nil, err
	}
	return &user, nil
}

// Approve approves a payment for processing.
func (c *Client) Approve(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	path := fmt.Sprintf("/payments/%s/approve", paymentID)
	if err := c.do(ctx, http.MethodPost, path, c.keyAuth(), nil, &payment, "approve"); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Complete completes a payment, forwarding the on-chain transaction id.
func (c *Client) Complete(ctx context.Context, paymentID, txid string) (*Payment, error) {
	var payment Payment
	path := fmt.Sprintf("/payments/%s/complete", paymentID)
	body := map[string]string{"txid": txid}
	if err := c.do(ctx, http.MethodPost, path, c.keyAuth(), body, &payment, "complete"); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Get retrieves the current state of a payment.
func (c *Client) Get(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	path := fmt.Sprintf("/payments/%s", paymentID)
	if err := c.do(ctx, http.MethodGet, path, c.keyAuth(), nil, &payment, "get"); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Cancel cancels a payment.
func (c *Client) Cancel(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	path := fmt.Sprintf("/payments/%s/cancel", paymentID)
	if err := c.do(ctx, http.MethodPost, path, c.keyAuth(), nil, &payment, "cancel"); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) keyAuth() string {
	return fmt.Sprintf("Key %s", c.serverKey)
}

func (c *Client) do(ctx context.Context, method, path, authorization string, body, out interface{}, operation string) error {
	start := time.Now()
	defer func() {
		util.UpstreamLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pi api request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read pi api response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.UpstreamErrorsTotal.WithLabelValues(operation).Inc()
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode pi api response: %w", err)
		}
	}
	return nil
}
