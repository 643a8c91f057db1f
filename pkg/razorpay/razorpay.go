// Package razorpay provides a minimal HTTP client for the Razorpay v1 API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/medora-health/medora_backend/config"
)

var (
	ErrTransport          = errors.New("razorpay: request failed")
	ErrUnexpectedResponse = errors.New("razorpay: unexpected response from gateway")
)

// APIError is a failure reported by the gateway itself, as opposed to a
// transport failure reaching it.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %s (%s)", e.Description, e.Code)
}

// Order is a gateway-tracked payment order.
type Order struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Status   string            `json:"status"`
	Notes    map[string]string `json:"notes"`
}

// Payment is a gateway-tracked transaction. Amount and currency here are
// authoritative; client-reported values must never be persisted instead.
type Payment struct {
	ID       string            `json:"id"`
	OrderID  string            `json:"order_id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"` // created, authorized, captured, refunded, failed
	Method   string            `json:"method"`
	Email    string            `json:"email"`
	Notes    map[string]string `json:"notes"`
}

// Refund is a gateway-issued refund.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Client is a lightweight Razorpay HTTP client using basic auth.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func New(cfg config.RazorpayConfig) *Client {
	return &Client{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    "https://api.razorpay.com/v1",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateOrder creates a remote order. amount is in minor units (paise).
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*Order, error) {
	reqBody := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		reqBody["notes"] = notes
	}

	var order Order
	if err := c.do(ctx, http.MethodPost, "/orders", reqBody, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, ErrUnexpectedResponse
	}
	return &order, nil
}

// FetchPayment fetches the authoritative payment by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return nil, err
	}
	if payment.ID == "" {
		return nil, ErrUnexpectedResponse
	}
	return &payment, nil
}

// CreateRefund issues a refund against a captured payment. amount is in
// minor units; notes carry the refund reason for the gateway dashboard.
func (c *Client) CreateRefund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (*Refund, error) {
	reqBody := map[string]any{
		"amount": amount,
	}
	if len(notes) > 0 {
		reqBody["notes"] = notes
	}

	var refund Refund
	if err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/refund", reqBody, &refund); err != nil {
		return nil, err
	}
	if refund.ID == "" {
		return nil, ErrUnexpectedResponse
	}
	return &refund, nil
}

// do sends a JSON request to baseURL+path and decodes the response into out.
// Non-2xx responses are decoded into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var errResp struct {
			Error APIError `json:"error"`
		}
		if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
			return fmt.Errorf("%w (status=%d)", ErrUnexpectedResponse, res.StatusCode)
		}
		apiErr := errResp.Error
		apiErr.StatusCode = res.StatusCode
		return &apiErr
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
