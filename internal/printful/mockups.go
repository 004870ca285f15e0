package printful

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	MockupPending   = "pending"
	MockupCompleted = "completed"
	MockupFailed    = "failed"
)

// Layer is one artwork file placed on a printable area.
type Layer struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type Placement struct {
	Placement string  `json:"placement"`
	Technique string  `json:"technique"`
	Layers    []Layer `json:"layers"`
}

type MockupRequest struct {
	ProductID  int64
	VariantIDs []int64
	Format     string
	Placements []Placement
}

type Mockup struct {
	VariantID int64  `json:"variant_id"`
	Placement string `json:"placement"`
	URL       string `json:"mockup_url"`
}

type MockupTask struct {
	ID             int64    `json:"id"`
	Status         string   `json:"status"`
	Mockups        []Mockup `json:"mockups"`
	FailureReasons []string `json:"failure_reasons,omitempty"`
}

type mockupTaskPayload struct {
	ID                    int64  `json:"id"`
	Status                string `json:"status"`
	CatalogVariantMockups []struct {
		CatalogVariantID int64 `json:"catalog_variant_id"`
		Mockups          []struct {
			Placement string `json:"placement"`
			MockupURL string `json:"mockup_url"`
		} `json:"mockups"`
	} `json:"catalog_variant_mockups"`
	FailureReasons []struct {
		Detail string `json:"detail"`
	} `json:"failure_reasons"`
}

func (p mockupTaskPayload) task() MockupTask {
	t := MockupTask{ID: p.ID, Status: strings.ToLower(p.Status), Mockups: []Mockup{}}
	for _, vm := range p.CatalogVariantMockups {
		for _, m := range vm.Mockups {
			t.Mockups = append(t.Mockups, Mockup{VariantID: vm.CatalogVariantID, Placement: m.Placement, URL: m.MockupURL})
		}
	}
	for _, r := range p.FailureReasons {
		t.FailureReasons = append(t.FailureReasons, r.Detail)
	}
	return t
}

// CreateMockupTask starts mockup rendering and returns the task id.
func (c *Client) CreateMockupTask(ctx context.Context, req MockupRequest) (int64, error) {
	if req.ProductID <= 0 || len(req.VariantIDs) == 0 {
		return 0, fmt.Errorf("product and at least one variant are required")
	}
	if len(req.Placements) == 0 {
		return 0, fmt.Errorf("at least one placement is required")
	}
	format := req.Format
	if format == "" {
		format = "png"
	}

	payload := map[string]any{
		"format": format,
		"products": []map[string]any{{
			"source":              "catalog",
			"catalog_product_id":  req.ProductID,
			"catalog_variant_ids": req.VariantIDs,
			"placements":          req.Placements,
		}},
	}

	var resp struct {
		Data []mockupTaskPayload `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/mockup-tasks", nil, payload, &resp); err != nil {
		return 0, fmt.Errorf("create mockup task: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].ID == 0 {
		return 0, fmt.Errorf("empty mockup task in response")
	}
	return resp.Data[0].ID, nil
}

func (c *Client) MockupTask(ctx context.Context, taskID int64) (*MockupTask, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(taskID, 10))

	var resp struct {
		Data []mockupTaskPayload `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/mockup-tasks", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("get mockup task: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("mockup task %d not found", taskID)
	}
	task := resp.Data[0].task()
	return &task, nil
}

// WaitMockupTask polls the task until it completes or fails.
func (c *Client) WaitMockupTask(ctx context.Context, taskID int64) (*MockupTask, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		task, err := c.MockupTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case MockupCompleted:
			return task, nil
		case MockupFailed:
			return task, fmt.Errorf("mockup task failed: %s", strings.Join(task.FailureReasons, "; "))
		}
		if attempt == c.maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("mockup task timeout after %d attempts", c.maxAttempts)
}
