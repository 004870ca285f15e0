package printful

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/imagine-it/storefront/internal/pricing"
)

type variantPrices struct {
	Currency string `json:"currency"`
	Variant  struct {
		ID         int64 `json:"id"`
		Techniques []struct {
			TechniqueKey string `json:"technique_key"`
			Price        string `json:"price"`
		} `json:"techniques"`
	} `json:"variant"`
	Product struct {
		Placements []struct {
			ID           string `json:"id"`
			TechniqueKey string `json:"technique_key"`
			Price        string `json:"price"`
		} `json:"placements"`
	} `json:"product"`
}

// FetchVariantPrices loads the quotes for all ids in one request. Ids the
// vendor does not return are simply absent from the result.
func (c *Client) FetchVariantPrices(ctx context.Context, ids []int64) (map[int64]pricing.VariantQuote, error) {
	out := make(map[int64]pricing.VariantQuote, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := url.Values{}
	query.Set("variant_ids", joinIDs(ids))
	query.Set("currency", c.currency)

	var resp struct {
		Data []variantPrices `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, c.pricesPath, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch variant prices: %w", err)
	}

	for _, vp := range resp.Data {
		quote := pricing.VariantQuote{
			VariantID: vp.Variant.ID,
			Currency:  vp.Currency,
		}
		for _, t := range vp.Variant.Techniques {
			quote.Techniques = append(quote.Techniques, pricing.TechniquePrice{Key: t.TechniqueKey, Price: t.Price})
		}
		for _, p := range vp.Product.Placements {
			quote.Placements = append(quote.Placements, pricing.PlacementPrice{ID: p.ID, Technique: p.TechniqueKey, Price: p.Price})
		}
		out[quote.VariantID] = quote
	}
	if c.log != nil {
		c.log.Debug("printful prices fetched", "requested", len(ids), "returned", len(out))
	}
	return out, nil
}
