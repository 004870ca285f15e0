package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/pricing"
)

const maxItemQuantity = 99

type CartService struct {
	carts    CartStore
	prices   *PriceService
	currency string
	log      *slog.Logger
}

type AddItemInput struct {
	ProductID  int64
	VariantID  int64
	Technique  string
	Placements []models.CartPlacement
	Quantity   int
}

// CartView is a cart together with its current prices.
type CartView struct {
	Items    []models.CartItem
	Pricing  pricing.Summary
	Currency string
}

func NewCartService(carts CartStore, prices *PriceService, currency string, log *slog.Logger) *CartService {
	return &CartService{carts: carts, prices: prices, currency: currency, log: log}
}

func (s *CartService) Add(ctx context.Context, userID string, in AddItemInput) (*models.CartItem, error) {
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if err := validQuantity(in.Quantity); err != nil {
		return nil, err
	}
	if in.VariantID <= 0 || in.ProductID <= 0 {
		return nil, fmt.Errorf("%w: product and variant are required", ErrInvalidInput)
	}
	if len(in.Placements) == 0 {
		return nil, fmt.Errorf("%w: at least one placement is required", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(in.Placements))
	for i, p := range in.Placements {
		p.Placement = strings.TrimSpace(p.Placement)
		if p.Placement == "" || strings.TrimSpace(p.ImageURL) == "" {
			return nil, fmt.Errorf("%w: placement and image_url are required", ErrInvalidInput)
		}
		if seen[p.Placement] {
			return nil, fmt.Errorf("%w: duplicate placement %q", ErrInvalidInput, p.Placement)
		}
		seen[p.Placement] = true
		in.Placements[i] = p
	}

	item, err := s.carts.Add(ctx, &models.CartItem{
		UserID:     userID,
		ProductID:  in.ProductID,
		VariantID:  in.VariantID,
		Technique:  strings.TrimSpace(in.Technique),
		Placements: in.Placements,
		Quantity:   in.Quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return item, nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	if err := validQuantity(quantity); err != nil {
		return nil, err
	}
	return s.carts.UpdateQuantity(ctx, userID, itemID, quantity)
}

func (s *CartService) Remove(ctx context.Context, userID, itemID string) error {
	return s.carts.Remove(ctx, userID, itemID)
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

// View prices the cart with one quote lookup for all of its variants.
// Variants without a quote are priced at zero and logged.
func (s *CartService) View(ctx context.Context, userID string) (*CartView, error) {
	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	priced := toPricingItems(items)
	quotes := s.prices.Quotes(ctx, pricing.VariantIDs(priced))
	summary := pricing.PriceCartItems(priced, quotes)
	if len(summary.Missing) > 0 {
		s.log.Warn("cart items without price quote", "user", userID, "items", summary.Missing)
	}
	return &CartView{Items: items, Pricing: summary, Currency: s.currency}, nil
}

func validQuantity(q int) error {
	if q <= 0 || q > maxItemQuantity {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, q)
	}
	return nil
}

func toPricingItems(items []models.CartItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		placements := make([]string, 0, len(it.Placements))
		for _, p := range it.Placements {
			placements = append(placements, p.Placement)
		}
		out = append(out, pricing.Item{
			ID:         it.ID,
			VariantID:  it.VariantID,
			Technique:  it.Technique,
			Placements: placements,
			Quantity:   it.Quantity,
		})
	}
	return out
}
