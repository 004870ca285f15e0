// Package paypal wraps the PayPal REST endpoints used for checkout and
// credit pack purchases: OAuth, Orders v2 and webhook verification.
package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imagine-it/storefront/internal/config"
	"github.com/imagine-it/storefront/internal/httpjson"
)

const (
	StatusCompleted = "COMPLETED"
	StatusApproved  = "APPROVED"
)

type Client struct {
	clientID   string
	secret     string
	baseURL    string
	webhookID  string
	returnURL  string
	cancelURL  string
	httpClient *http.Client
	log        *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		clientID:   cfg.PayPalClientID,
		secret:     cfg.PayPalClientSecret,
		baseURL:    strings.TrimRight(cfg.PayPalBaseURL, "/"),
		webhookID:  cfg.PayPalWebhookID,
		returnURL:  cfg.PayPalReturnURL,
		cancelURL:  cfg.PayPalCancelURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func NewAmount(currency string, value decimal.Decimal) Amount {
	return Amount{CurrencyCode: strings.ToUpper(currency), Value: value.StringFixed(2)}
}

type OrderRequest struct {
	// RequestID makes the create call idempotent on PayPal's side.
	RequestID   string
	ReferenceID string
	CustomID    string
	Description string
	Amount      Amount
}

type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Amount `json:"amount"`
}

type Order struct {
	ID          string
	Status      string
	ApproveURL  string
	CustomID    string
	ReferenceID string
	Captures    []Capture
	Raw         json.RawMessage
}

type orderPayload struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		CustomID    string `json:"custom_id"`
		Payments    struct {
			Captures []Capture `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (p orderPayload) order(raw []byte) *Order {
	o := &Order{ID: p.ID, Status: p.Status, Raw: raw}
	for _, l := range p.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			o.ApproveURL = l.Href
			break
		}
	}
	for _, pu := range p.PurchaseUnits {
		if o.CustomID == "" {
			o.CustomID = pu.CustomID
		}
		if o.ReferenceID == "" {
			o.ReferenceID = pu.ReferenceID
		}
		o.Captures = append(o.Captures, pu.Payments.Captures...)
	}
	return o
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.ReferenceID,
			"custom_id":    req.CustomID,
			"description":  req.Description,
			"amount":       req.Amount,
		}},
		"application_context": map[string]string{
			"return_url":  c.returnURL,
			"cancel_url":  c.cancelURL,
			"user_action": "PAY_NOW",
		},
	}
	headers := map[string]string{"Prefer": "return=representation"}
	if req.RequestID != "" {
		headers["PayPal-Request-Id"] = req.RequestID
	}

	var parsed orderPayload
	raw, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, headers, &parsed)
	if err != nil {
		return nil, fmt.Errorf("create paypal order: %w", err)
	}
	if parsed.ID == "" {
		return nil, fmt.Errorf("invalid paypal response (missing order id)")
	}
	return parsed.order(raw), nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*Order, error) {
	var parsed orderPayload
	raw, err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", map[string]any{}, map[string]string{
		"Prefer":            "return=representation",
		"PayPal-Request-Id": "capture-" + orderID,
	}, &parsed)
	if err != nil {
		return nil, fmt.Errorf("capture paypal order: %w", err)
	}
	return parsed.order(raw), nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var parsed orderPayload
	raw, err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), nil, nil, &parsed)
	if err != nil {
		return nil, fmt.Errorf("get paypal order: %w", err)
	}
	return parsed.order(raw), nil
}

// VerifyWebhook asks PayPal to check the transmission signature of a webhook
// delivery. Without a configured webhook id every delivery is accepted.
func (c *Client) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error) {
	if c.webhookID == "" {
		return true, nil
	}
	payload := map[string]any{
		"auth_algo":         headers.Get("PAYPAL-AUTH-ALGO"),
		"cert_url":          headers.Get("PAYPAL-CERT-URL"),
		"transmission_id":   headers.Get("PAYPAL-TRANSMISSION-ID"),
		"transmission_sig":  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		"transmission_time": headers.Get("PAYPAL-TRANSMISSION-TIME"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}
	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, nil, &resp); err != nil {
		return false, fmt.Errorf("verify webhook: %w", err)
	}
	return resp.VerificationStatus == "SUCCESS", nil
}

// APIError is a non-2xx answer from PayPal.
type APIError struct {
	Status int
	Name   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal error: status=%d name=%s body=%s", e.Status, e.Name, e.Body)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", &APIError{Status: resp.StatusCode, Body: httpjson.Truncate(raw)}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("empty paypal access token")
	}
	c.token = parsed.AccessToken
	// Refresh a minute early.
	c.tokenExpiry = time.Now().Add(time.Duration(parsed.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, headers map[string]string, out any) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		header.Set(k, v)
	}
	resp, err := httpjson.Send(ctx, c.httpClient, method, c.baseURL+path, header, payload)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.OK() {
		apiErr := &APIError{Status: resp.Status, Body: httpjson.Truncate(resp.Body)}
		var named struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(resp.Body, &named) == nil {
			apiErr.Name = named.Name
		}
		if c.log != nil {
			c.log.Error("paypal request failed", "method", method, "path", path, "status", apiErr.Status, "name", apiErr.Name)
		}
		return nil, apiErr
	}
	if err := httpjson.Decode(resp.Body, out); err != nil {
		return nil, err
	}
	return resp.Body, nil
}
