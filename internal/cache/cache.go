// Package cache keeps vendor price quotes close to the API so a cart view
// does not hit the fulfillment vendor on every request.
package cache

import (
	"context"

	"github.com/imagine-it/storefront/internal/pricing"
)

// QuoteCache stores variant quotes by variant id. GetMany returns only the
// ids it holds; absent ids are misses, not errors.
type QuoteCache interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]pricing.VariantQuote, error)
	SetMany(ctx context.Context, quotes map[int64]pricing.VariantQuote) error
}

// Noop never holds anything. It is used when Redis is not configured.
type Noop struct{}

func (Noop) GetMany(context.Context, []int64) (map[int64]pricing.VariantQuote, error) {
	return map[int64]pricing.VariantQuote{}, nil
}

func (Noop) SetMany(context.Context, map[int64]pricing.VariantQuote) error {
	return nil
}
