package orderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"bistro/internal/models"

	"github.com/shopspring/decimal"
)

// CSRF cookie and header names used by the API.
const (
	CSRFCookie = "csrf_"
	CSRFHeader = "X-CSRF-Token"
)

// Order is an order as returned by the API.
type Order struct {
	models.Order
	StatusLabel        string                `json:"statusLabel"`
	CanCancel          bool                  `json:"canCancel"`
	AllowedTransitions []models.StatusChoice `json:"allowedTransitions"`
	ItemCount          int                   `json:"itemCount"`
	PrepMinutes        int                   `json:"prepMinutes"`
	AveragePerItem     decimal.Decimal       `json:"averagePerItem"`
}

// APIError is a {success: false} response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client calls the order API on behalf of one authenticated user.
type Client struct {
	baseURL    string
	token      string
	csrfToken  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCSRFToken sends token on every mutating request instead of the
// value found in the cookie jar.
func WithCSRFToken(token string) Option {
	return func(c *Client) { c.csrfToken = token }
}

// NewClient creates a Client for the API rooted at baseURL (for example
// "http://localhost:8080/api/v1"). token is the bearer JWT.
func NewClient(baseURL, token string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if method != http.MethodGet {
		if token := c.csrfFor(req.URL); token != "" {
			req.Header.Set(CSRFHeader, token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) csrfFor(u *url.URL) string {
	if c.csrfToken != "" {
		return c.csrfToken
	}
	if c.httpClient.Jar == nil {
		return ""
	}
	for _, cookie := range c.httpClient.Jar.Cookies(u) {
		if cookie.Name == CSRFCookie {
			return cookie.Value
		}
	}
	return ""
}

type orderResponse struct {
	Order *Order `json:"order"`
}

func (c *Client) order(ctx context.Context, method, path string, body interface{}) (*Order, error) {
	var resp orderResponse
	if err := c.do(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

// CreateOrder returns the caller's active order, creating it if needed.
func (c *Client) CreateOrder(ctx context.Context, deliveryType models.DeliveryType, address, notes string) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders", map[string]string{
		"deliveryType":    string(deliveryType),
		"deliveryAddress": address,
		"notes":           notes,
	})
}

// ActiveOrder returns the caller's ORDERING order, or nil.
func (c *Client) ActiveOrder(ctx context.Context) (*Order, error) {
	return c.order(ctx, http.MethodGet, "/orders/active", nil)
}

// GetOrder fetches one order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return c.order(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil)
}

// AddItem adds quantity units of productID. An empty orderID targets the
// caller's active order.
func (c *Client) AddItem(ctx context.Context, orderID, productID string, quantity int, instructions string) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/items/add", map[string]interface{}{
		"orderId":      orderID,
		"productId":    productID,
		"quantity":     quantity,
		"instructions": instructions,
	})
}

// UpdateQuantity sets the quantity of a line; zero removes it.
func (c *Client) UpdateQuantity(ctx context.Context, orderID, productID string, quantity int) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/items/update-quantity", map[string]interface{}{
		"orderId":   orderID,
		"productId": productID,
		"quantity":  quantity,
	})
}

// RemoveItem drops a line.
func (c *Client) RemoveItem(ctx context.Context, orderID, productID string) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/items/remove", map[string]string{
		"orderId":   orderID,
		"productId": productID,
	})
}

// Finalize checks the order out.
func (c *Client) Finalize(ctx context.Context, orderID string, deliveryType models.DeliveryType, address string) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/finalize", map[string]string{
		"deliveryType":    string(deliveryType),
		"deliveryAddress": address,
	})
}

// Pay charges an order awaiting payment.
func (c *Client) Pay(ctx context.Context, orderID string, method models.PaymentMethod) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/payment", map[string]string{
		"orderId": orderID,
		"method":  string(method),
	})
}

// Cancel cancels an order.
func (c *Client) Cancel(ctx context.Context, orderID, reason string) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/cancel", map[string]string{
		"reason": reason,
	})
}

// Advance moves an order one step forward. Staff only.
func (c *Client) Advance(ctx context.Context, orderID, note string) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/advance", map[string]string{
		"note": note,
	})
}

// SetStatus moves an order directly to status. Staff only.
func (c *Client) SetStatus(ctx context.Context, orderID string, status models.OrderStatus, note string) (*Order, error) {
	return c.order(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/status", map[string]interface{}{
		"status": int(status),
		"note":   note,
	})
}

// History returns the status changes of an order.
func (c *Client) History(ctx context.Context, orderID string) ([]models.StatusChange, error) {
	var resp struct {
		History []models.StatusChange `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}
