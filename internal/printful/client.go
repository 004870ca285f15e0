// Package printful is a small client for the Printful v2 API: catalog
// prices, mockup generation and order submission.
package printful

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imagine-it/storefront/internal/config"
	"github.com/imagine-it/storefront/internal/httpjson"
)

type Client struct {
	apiKey     string
	baseURL    string
	storeID    string
	pricesPath string
	currency   string
	httpClient *http.Client
	log        *slog.Logger

	pollInterval time.Duration
	maxAttempts  int
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pricesPath := cfg.PrintfulPricesPath
	if pricesPath == "" {
		pricesPath = "/v2/catalog-variants/prices"
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	return &Client{
		apiKey:       cfg.PrintfulAPIKey,
		baseURL:      strings.TrimRight(cfg.PrintfulBaseURL, "/"),
		storeID:      cfg.PrintfulStoreID,
		pricesPath:   pricesPath,
		currency:     currency,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
		pollInterval: 2 * time.Second,
		maxAttempts:  30,
	}
}

// WithPolling overrides the mockup task poll cadence.
func (c *Client) WithPolling(interval time.Duration, attempts int) *Client {
	if interval > 0 {
		c.pollInterval = interval
	}
	if attempts > 0 {
		c.maxAttempts = attempts
	}
	return c
}

// APIError is a non-2xx answer from Printful.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("printful error: status=%d body=%s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, out any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	if c.storeID != "" {
		header.Set("X-PF-Store-Id", c.storeID)
	}
	resp, err := httpjson.Send(ctx, c.httpClient, method, fullURL, header, payload)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.OK() {
		apiErr := &APIError{Status: resp.Status, Body: httpjson.Truncate(resp.Body)}
		if c.log != nil {
			c.log.Error("printful request failed", "method", method, "path", path, "status", apiErr.Status, "body", apiErr.Body)
		}
		return apiErr
	}
	return httpjson.Decode(resp.Body, out)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
