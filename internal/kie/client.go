package kie

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imagine-it/storefront/internal/config"
	"github.com/imagine-it/storefront/internal/httpjson"
)

// Client talks to the kie.ai jobs API: a generation is a task that is created
// once and then polled until it settles.
type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	log          *slog.Logger
	pollInterval time.Duration
	maxAttempts  int
}

type GenerateOptions struct {
	Prompt       string
	AspectRatio  string
	Resolution   string
	InputURLs    []string
	OutputFormat string
}

type Image struct {
	URL    string
	TaskID string
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		apiKey:       cfg.KIEAPIKey,
		baseURL:      strings.TrimRight(cfg.KIEBaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
		pollInterval: 2 * time.Second,
		maxAttempts:  60,
	}
}

// WithPolling overrides the status poll cadence.
func (c *Client) WithPolling(interval time.Duration, attempts int) *Client {
	if interval > 0 {
		c.pollInterval = interval
	}
	if attempts > 0 {
		c.maxAttempts = attempts
	}
	return c
}

// Generate runs one image generation on providerModel and blocks until the
// task succeeds, fails, runs out of attempts or ctx is done.
func (c *Client) Generate(ctx context.Context, providerModel string, opts GenerateOptions) (*Image, error) {
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}

	taskID, err := c.createTask(ctx, providerModel, opts.input())
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	resultURL, err := c.awaitTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &Image{URL: resultURL, TaskID: taskID}, nil
}

func (o GenerateOptions) input() map[string]any {
	in := map[string]any{
		"prompt":        o.Prompt,
		"output_format": "png",
	}
	if o.OutputFormat != "" {
		in["output_format"] = strings.ToLower(o.OutputFormat)
	}
	if o.AspectRatio != "" {
		in["aspect_ratio"] = o.AspectRatio
	}
	if o.Resolution != "" {
		in["resolution"] = o.Resolution
	}
	if len(o.InputURLs) > 0 {
		in["input_urls"] = o.InputURLs
	}
	return in
}

// envelope is the wrapper kie puts around every response body.
type envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

func (c *Client) createTask(ctx context.Context, model string, input map[string]any) (string, error) {
	c.log.Info("creating kie task", "model", model)

	var resp envelope[struct {
		TaskID string `json:"taskId"`
	}]
	payload := map[string]any{"model": model, "input": input}
	if err := c.call(ctx, http.MethodPost, "/api/v1/jobs/createTask", nil, payload, &resp); err != nil {
		return "", err
	}
	if resp.Code != http.StatusOK {
		return "", fmt.Errorf("create task rejected: code=%d msg=%s", resp.Code, resp.Msg)
	}
	if resp.Data.TaskID == "" {
		return "", errors.New("empty taskId in response")
	}
	return resp.Data.TaskID, nil
}

type taskRecord struct {
	State      string `json:"state"`
	ResultJSON string `json:"resultJson"`
	FailCode   string `json:"failCode"`
	FailMsg    string `json:"failMsg"`
}

// settled reports whether the task reached a final state, and for a
// successful one the first result URL.
func (t taskRecord) settled() (bool, string, error) {
	switch t.State {
	case "waiting", "generating", "processing", "queued", "queueing":
		return false, "", nil
	case "fail":
		msg := t.FailMsg
		if msg == "" {
			msg = "unknown error"
		}
		return true, "", fmt.Errorf("task failed: %s (code: %s)", msg, t.FailCode)
	case "success":
		if t.ResultJSON == "" {
			return true, "", errors.New("empty resultJson in success response")
		}
		var result struct {
			ResultURLs []string `json:"resultUrls"`
		}
		if err := json.Unmarshal([]byte(t.ResultJSON), &result); err != nil {
			return true, "", fmt.Errorf("parse resultJson: %w", err)
		}
		if len(result.ResultURLs) == 0 {
			return true, "", errors.New("no resultUrls in result")
		}
		return true, result.ResultURLs[0], nil
	default:
		return true, "", fmt.Errorf("unknown task state: %s", t.State)
	}
}

func (c *Client) awaitTask(ctx context.Context, taskID string) (string, error) {
	query := url.Values{"taskId": {taskID}}
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var resp envelope[taskRecord]
		if err := c.call(ctx, http.MethodGet, "/api/v1/jobs/recordInfo", query, nil, &resp); err != nil {
			return "", fmt.Errorf("task %s status: %w", taskID, err)
		}
		if resp.Code != http.StatusOK {
			return "", fmt.Errorf("task status rejected: code=%d msg=%s", resp.Code, resp.Msg)
		}

		done, resultURL, err := resp.Data.settled()
		if done {
			if err != nil {
				c.log.Error("kie task failed", "task_id", taskID, "err", err)
				return "", err
			}
			c.log.Info("kie task completed", "task_id", taskID, "attempt", attempt)
			return resultURL, nil
		}
		if attempt%10 == 1 {
			c.log.Info("kie task waiting", "task_id", taskID, "state", resp.Data.State, "attempt", attempt, "max_attempts", c.maxAttempts)
		}
		if attempt == c.maxAttempts {
			break
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return "", fmt.Errorf("task timeout after %d attempts", c.maxAttempts)
}

// call sends one authenticated request and decodes a 2xx JSON body into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}
	resp, err := httpjson.Send(ctx, c.httpClient, method, endpoint, header, payload)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if !resp.OK() {
		excerpt := httpjson.Truncate(resp.Body)
		c.log.Error("kie request failed", "path", path, "status", resp.Status, "body", excerpt)
		return fmt.Errorf("kie error: status=%d body=%s", resp.Status, excerpt)
	}
	if err := httpjson.Decode(resp.Body, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
