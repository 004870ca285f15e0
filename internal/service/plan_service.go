package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/repository"
)

// DefaultPlan describes the credit pack seeded into an empty catalog.
type DefaultPlan struct {
	Title           string
	Currency        string
	PriceMinorUnits int
	Credits         int
}

type PlanService struct {
	repo     PlanStore
	defaults DefaultPlan
}

type CreatePlanInput struct {
	Title           string
	Description     string
	Currency        string
	PriceMinorUnits int
	Credits         int
	IsActive        *bool
}

type UpdatePlanInput struct {
	Title           *string
	Description     *string
	Currency        *string
	PriceMinorUnits *int
	Credits         *int
	IsActive        *bool
}

func NewPlanService(repo PlanStore, defaults DefaultPlan) *PlanService {
	return &PlanService{repo: repo, defaults: defaults}
}

// EnsureDefaultPlan seeds the configured pack when no active plan exists.
func (s *PlanService) EnsureDefaultPlan(ctx context.Context) error {
	switch _, err := s.repo.GetDefault(ctx); {
	case err == nil:
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}

	seed := CreatePlanInput{
		Title:           s.defaults.Title,
		Description:     fmt.Sprintf("%d generation credits", s.defaults.Credits),
		Currency:        s.defaults.Currency,
		PriceMinorUnits: s.defaults.PriceMinorUnits,
		Credits:         s.defaults.Credits,
	}
	if _, err := s.Create(ctx, seed); err != nil {
		return fmt.Errorf("create default plan: %w", err)
	}
	return nil
}

func (s *PlanService) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *PlanService) Create(ctx context.Context, input CreatePlanInput) (*models.Plan, error) {
	plan := &models.Plan{
		Title:           input.Title,
		Description:     input.Description,
		Currency:        cmp.Or(input.Currency, s.defaults.Currency),
		PriceMinorUnits: input.PriceMinorUnits,
		Credits:         input.Credits,
		IsActive:        input.IsActive == nil || *input.IsActive,
	}
	if err := normalizePlan(plan); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, plan)
}

// Update applies the non-nil fields of input. Blank titles and currencies and
// non-positive amounts leave the stored value alone.
func (s *PlanService) Update(ctx context.Context, id int64, input UpdatePlanInput) (*models.Plan, error) {
	plan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		plan.Title = cmp.Or(strings.TrimSpace(*input.Title), plan.Title)
	}
	if input.Description != nil {
		plan.Description = *input.Description
	}
	if input.Currency != nil {
		plan.Currency = cmp.Or(*input.Currency, plan.Currency)
	}
	if input.PriceMinorUnits != nil && *input.PriceMinorUnits > 0 {
		plan.PriceMinorUnits = *input.PriceMinorUnits
	}
	if input.Credits != nil && *input.Credits > 0 {
		plan.Credits = *input.Credits
	}
	if input.IsActive != nil {
		plan.IsActive = *input.IsActive
	}
	if err := normalizePlan(plan); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, plan)
}

func normalizePlan(p *models.Plan) error {
	p.Title = strings.TrimSpace(p.Title)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	switch {
	case p.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case p.PriceMinorUnits <= 0:
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	case p.Credits <= 0:
		return fmt.Errorf("%w: credits must be positive", ErrInvalidInput)
	}
	return nil
}

func (s *PlanService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *PlanService) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	return s.repo.GetByID(ctx, id)
}

// Resolve returns the plan to sell: the requested one, or the default when
// planID is zero. Inactive plans are not for sale.
func (s *PlanService) Resolve(ctx context.Context, planID int64) (*models.Plan, error) {
	lookup := s.repo.GetDefault
	if planID > 0 {
		lookup = func(ctx context.Context) (*models.Plan, error) { return s.repo.GetByID(ctx, planID) }
	}
	plan, err := lookup(ctx)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, repository.ErrNotFound
	}
	return plan, nil
}
