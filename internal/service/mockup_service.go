package service

import (
	"context"
	"fmt"

	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/printful"
)

type MockupService struct {
	renderer MockupRenderer
}

type MockupRequest struct {
	ProductID  int64                  `json:"product_id"`
	VariantID  int64                  `json:"variant_id"`
	Technique  string                 `json:"technique"`
	Placements []models.CartPlacement `json:"placements"`
}

func NewMockupService(renderer MockupRenderer) *MockupService {
	return &MockupService{renderer: renderer}
}

// Create starts rendering product previews for the chosen artwork and
// returns the task id the client polls.
func (s *MockupService) Create(ctx context.Context, req MockupRequest) (int64, error) {
	if req.ProductID <= 0 || req.VariantID <= 0 {
		return 0, fmt.Errorf("%w: product and variant are required", ErrInvalidInput)
	}
	if len(req.Placements) == 0 {
		return 0, fmt.Errorf("%w: at least one placement is required", ErrInvalidInput)
	}
	technique := req.Technique
	if technique == "" {
		technique = "dtg"
	}
	placements := make([]printful.Placement, 0, len(req.Placements))
	for _, p := range req.Placements {
		if p.Placement == "" || p.ImageURL == "" {
			return 0, fmt.Errorf("%w: placement and image_url are required", ErrInvalidInput)
		}
		placements = append(placements, printful.Placement{
			Placement: p.Placement,
			Technique: technique,
			Layers:    []printful.Layer{{Type: "file", URL: p.ImageURL}},
		})
	}
	return s.renderer.CreateMockupTask(ctx, printful.MockupRequest{
		ProductID:  req.ProductID,
		VariantIDs: []int64{req.VariantID},
		Placements: placements,
	})
}

func (s *MockupService) Status(ctx context.Context, taskID int64) (*printful.MockupTask, error) {
	return s.renderer.MockupTask(ctx, taskID)
}

// Wait blocks until the task settles.
func (s *MockupService) Wait(ctx context.Context, taskID int64) (*printful.MockupTask, error) {
	return s.renderer.WaitMockupTask(ctx, taskID)
}
