// Package httpjson is the request plumbing shared by the vendor API clients:
// JSON bodies in, whole responses out, and short body excerpts for logs and
// errors.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// excerptLimit caps how much of a response body ends up in logs and errors.
const excerptLimit = 512

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 1xx or 2xx status.
func (r *Response) OK() bool {
	return r.Status < http.StatusMultipleChoices
}

// Send issues one request with payload encoded as JSON (no body when nil) and
// reads the whole response. header is added on top of the JSON headers.
func Send(ctx context.Context, client *http.Client, method, url string, header http.Header, payload any) (*Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

// Decode unmarshals body into out. A nil out or an empty body is a no-op.
func Decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w (body=%s)", err, Truncate(body))
	}
	return nil
}

// Truncate returns the trimmed body, cut at excerptLimit bytes.
func Truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit] + "…"
}
