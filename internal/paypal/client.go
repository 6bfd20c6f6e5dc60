// Package paypal is a narrow client for the PayPal Orders v2 API: client
// credential token exchange, order creation and order capture.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrAuth marks a failed credential exchange.
var ErrAuth = errors.New("paypal auth failed")

// APIError is a non-2xx (or unusable) gateway response. Body is kept verbatim
// for diagnostics.
type APIError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal %s: status %d", e.Op, e.StatusCode)
}

// Details returns the gateway body as raw JSON when it is JSON and as a
// string otherwise.
func (e *APIError) Details() any {
	if len(e.Body) > 0 && json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	return string(e.Body)
}

// Client talks to one gateway base URL. A token is never cached: every
// AccessToken call performs a fresh exchange.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
}

func NewClient(baseURL, clientID, clientSecret string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         hc,
	}
}

func (c *Client) AccessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	var tok tokenResponse
	_ = json.Unmarshal(body, &tok)
	if status < 200 || status >= 300 || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: %w", ErrAuth, &APIError{Op: "token", StatusCode: status, Body: body})
	}
	return tok.AccessToken, nil
}

// CreateOrder submits the order and returns both the decoded order and the
// raw gateway response.
func (c *Client) CreateOrder(ctx context.Context, token string, in CreateOrderRequest) (Order, json.RawMessage, error) {
	var order Order
	raw, err := c.postJSON(ctx, "create_order", "/v2/checkout/orders", token, in)
	if err != nil {
		return order, raw, err
	}
	if err := json.Unmarshal(raw, &order); err != nil {
		return order, raw, fmt.Errorf("decode order: %w", err)
	}
	return order, raw, nil
}

func (c *Client) CaptureOrder(ctx context.Context, token, orderID string) (Capture, json.RawMessage, error) {
	var capture Capture
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	raw, err := c.postJSON(ctx, "capture_order", path, token, nil)
	if err != nil {
		return capture, raw, err
	}
	if err := json.Unmarshal(raw, &capture); err != nil {
		return capture, raw, fmt.Errorf("decode capture: %w", err)
	}
	return capture, raw, nil
}

func (c *Client) postJSON(ctx context.Context, op, path, token string, body any) (json.RawMessage, error) {
	data := []byte("{}")
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal %s: %w", op, err)
	}
	if status < 200 || status >= 300 {
		return respBody, &APIError{Op: op, StatusCode: status, Body: respBody}
	}
	return respBody, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
