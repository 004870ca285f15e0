package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imagine-it/storefront/internal/credits"
	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/repository"
)

type PromoService struct {
	promos PromoStore
	bonus  int
}

func NewPromoService(promos PromoStore, bonus int) *PromoService {
	return &PromoService{promos: promos, bonus: bonus}
}

// Apply redeems code for the user once and returns the new balance.
func (s *PromoService) Apply(ctx context.Context, userID, code string) (int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, ErrPromoInvalid
	}
	balance, err := s.promos.Redeem(ctx, userID, code, s.bonus)
	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, repository.ErrNotFound):
		return 0, ErrPromoInvalid
	case errors.Is(err, repository.ErrPromoExhausted):
		return 0, ErrPromoExhausted
	case errors.Is(err, repository.ErrAlreadyRedeemed):
		return 0, ErrPromoAlreadyRedeemed
	case errors.Is(err, repository.ErrNoProfile):
		return 0, credits.ErrProfileNotInitialized
	default:
		return 0, fmt.Errorf("redeem promo: %w", err)
	}
}

func (s *PromoService) List(ctx context.Context) ([]models.PromoCode, error) {
	return s.promos.List(ctx)
}

type PromoInput struct {
	Code    *string
	MaxUses *int
	Uses    *int
}

func (s *PromoService) Create(ctx context.Context, code string, maxUses int) (*models.PromoCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if maxUses <= 0 {
		return nil, fmt.Errorf("%w: max_uses must be positive", ErrInvalidInput)
	}
	return s.promos.Create(ctx, &models.PromoCode{Code: code, MaxUses: maxUses})
}

func (s *PromoService) Update(ctx context.Context, id int64, in PromoInput) (*models.PromoCode, error) {
	existing, err := s.promos.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Code != nil && strings.TrimSpace(*in.Code) != "" {
		existing.Code = strings.TrimSpace(*in.Code)
	}
	if in.MaxUses != nil && *in.MaxUses > 0 {
		existing.MaxUses = *in.MaxUses
	}
	if in.Uses != nil && *in.Uses >= 0 {
		existing.Uses = *in.Uses
	}
	if existing.Uses > existing.MaxUses {
		return nil, fmt.Errorf("%w: uses cannot exceed max_uses", ErrInvalidInput)
	}
	return s.promos.Update(ctx, existing)
}

func (s *PromoService) Delete(ctx context.Context, id int64) error {
	return s.promos.Delete(ctx, id)
}
