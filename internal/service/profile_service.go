package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/imagine-it/storefront/internal/models"
)

type ProfileService struct {
	profiles      ProfileStore
	signupCredits int
}

func NewProfileService(profiles ProfileStore, signupCredits int) *ProfileService {
	return &ProfileService{profiles: profiles, signupCredits: signupCredits}
}

// Ensure sets up the profile on first sign-in, granting the signup credits.
func (s *ProfileService) Ensure(ctx context.Context, userID, email, displayName string) (*models.Profile, bool, error) {
	profile, created, err := s.profiles.Ensure(ctx, userID, strings.TrimSpace(email), strings.TrimSpace(displayName), s.signupCredits)
	if err != nil {
		return nil, false, fmt.Errorf("ensure profile: %w", err)
	}
	return profile, created, nil
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

// AddCredits is the admin adjustment; delta may be negative.
func (s *ProfileService) AddCredits(ctx context.Context, userID string, delta int) (*models.Profile, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", ErrInvalidInput)
	}
	if err := s.profiles.AddCredits(ctx, userID, delta); err != nil {
		return nil, err
	}
	return s.profiles.Get(ctx, userID)
}
