package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/imagine-it/storefront/internal/credits"
	"github.com/imagine-it/storefront/internal/kie"
	"github.com/imagine-it/storefront/internal/models"
)

const maxPromptLength = 4000

type GenerationService struct {
	log         *slog.Logger
	gate        *credits.Gate
	profiles    ProfileStore
	generations GenerationStore
	generator   ImageGenerator
	images      ImageStore
}

type GenerationRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	Resolution  string
	InputURLs   []string
}

type GenerationResult struct {
	Generation models.GenerationLog
	Cost       int
	Remaining  int
}

func NewGenerationService(log *slog.Logger, gate *credits.Gate, profiles ProfileStore, generations GenerationStore, generator ImageGenerator, images ImageStore) *GenerationService {
	return &GenerationService{
		log:         log,
		gate:        gate,
		profiles:    profiles,
		generations: generations,
		generator:   generator,
		images:      images,
	}
}

// Generate charges the model's cost, runs the generation and stores the
// image. If the provider fails after the charge, the credits are refunded.
func (s *GenerationService) Generate(ctx context.Context, userID string, req GenerationRequest) (*GenerationResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(req.Prompt) > maxPromptLength {
		return nil, fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidInput, maxPromptLength)
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}
	if req.Resolution == "" {
		req.Resolution = "1K"
	}

	authz, err := s.gate.AuthorizeGeneration(ctx, userID, req.Model)
	if err != nil {
		return nil, err
	}

	image, err := s.generator.Generate(ctx, authz.Model.ProviderModel, kie.GenerateOptions{
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
		InputURLs:   req.InputURLs,
	})
	if err != nil {
		s.refund(ctx, userID, authz, req.Prompt, err)
		return nil, fmt.Errorf("generate image: %w", err)
	}

	imageURL, err := s.images.UploadFromURL(ctx, image.URL)
	if err != nil {
		// The user paid for an image that exists; hand out the provider URL.
		s.log.Warn("store generated image failed", "user", userID, "task_id", image.TaskID, "err", err)
		imageURL = image.URL
	}

	entry := models.GenerationLog{
		UserID:   userID,
		Model:    authz.Model.Key,
		Prompt:   req.Prompt,
		Credits:  authz.Cost,
		Status:   models.GenerationSucceeded,
		ImageURL: imageURL,
	}
	if err := s.generations.Log(ctx, &entry); err != nil {
		s.log.Error("failed to log generation", "user", userID, "err", err)
	}

	return &GenerationResult{Generation: entry, Cost: authz.Cost, Remaining: authz.Remaining}, nil
}

func (s *GenerationService) refund(ctx context.Context, userID string, authz *credits.Authorization, prompt string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.profiles.AddCredits(ctx, userID, authz.Cost); err != nil {
		s.log.Error("refund after failed generation", "user", userID, "credits", authz.Cost, "cause", cause, "err", err)
	} else {
		s.log.Info("generation refunded", "user", userID, "model", authz.Model.Key, "credits", authz.Cost, "cause", cause)
	}
	entry := models.GenerationLog{
		UserID:  userID,
		Model:   authz.Model.Key,
		Prompt:  prompt,
		Credits: authz.Cost,
		Status:  models.GenerationFailed,
	}
	if err := s.generations.Log(ctx, &entry); err != nil {
		s.log.Error("failed to log generation", "user", userID, "err", err)
	}
}

func (s *GenerationService) List(ctx context.Context, userID string, limit int) ([]models.GenerationLog, error) {
	return s.generations.List(ctx, userID, limit)
}

func (s *GenerationService) Models() []credits.ModelCost {
	return s.gate.Costs().Models()
}
