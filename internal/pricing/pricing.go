// Package pricing turns vendor price quotes and cart contents into line and
// cart totals.
//
// Missing or malformed price data never fails the computation: it counts as
// zero and is reported back so the caller can log it. Checkout recomputes
// totals strictly before any payment is captured.
package pricing

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// TechniquePrice is the base price of a variant printed with one technique.
type TechniquePrice struct {
	Key   string `json:"technique_key"`
	Price string `json:"price"`
}

// PlacementPrice is the additive price of one printable area.
type PlacementPrice struct {
	ID        string `json:"id"`
	Technique string `json:"technique_key,omitempty"`
	Price     string `json:"price"`
}

// VariantQuote holds the vendor prices for one catalog variant.
type VariantQuote struct {
	VariantID  int64            `json:"variant_id"`
	Currency   string           `json:"currency"`
	Techniques []TechniquePrice `json:"techniques"`
	Placements []PlacementPrice `json:"placements"`
}

// Item is the pricing view of a cart item.
type Item struct {
	ID         string
	VariantID  int64
	Technique  string
	Placements []string
	Quantity   int
}

type LineTotal struct {
	ItemID             string          `json:"item_id"`
	VariantID          int64           `json:"variant_id"`
	Quantity           int             `json:"quantity"`
	Technique          string          `json:"technique"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Total              decimal.Decimal `json:"total"`
	MissingQuote       bool            `json:"missing_quote,omitempty"`
	UnpricedPlacements []string        `json:"unpriced_placements,omitempty"`
	// TechniqueMismatch is set when the chosen technique has no quoted price
	// and the line was priced with another one, or with no base price at all.
	TechniqueMismatch bool `json:"technique_mismatch,omitempty"`
}

// Exact reports whether every part of the line was priced as requested.
func (l LineTotal) Exact() bool {
	return !l.MissingQuote && !l.TechniqueMismatch && len(l.UnpricedPlacements) == 0
}

type Summary struct {
	Items    []LineTotal     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	// Missing lists the ids of items whose variant had no quote.
	Missing []string `json:"missing,omitempty"`
}

// PriceCartItems computes (base + placements) * quantity for every item and
// the cart subtotal.
func PriceCartItems(items []Item, quotes map[int64]VariantQuote) Summary {
	summary := Summary{
		Items:    make([]LineTotal, 0, len(items)),
		Subtotal: decimal.Zero,
	}
	for _, item := range items {
		line := priceItem(item, quotes)
		if line.MissingQuote {
			summary.Missing = append(summary.Missing, item.ID)
		}
		summary.Subtotal = summary.Subtotal.Add(line.Total)
		summary.Items = append(summary.Items, line)
	}
	return summary
}

func priceItem(item Item, quotes map[int64]VariantQuote) LineTotal {
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	line := LineTotal{
		ItemID:    item.ID,
		VariantID: item.VariantID,
		Quantity:  qty,
		Technique: item.Technique,
		UnitPrice: decimal.Zero,
		Total:     decimal.Zero,
	}

	quote, ok := quotes[item.VariantID]
	if !ok {
		line.MissingQuote = true
		return line
	}

	unit := decimal.Zero
	tech, exact, ok := selectTechnique(quote.Techniques, item.Technique)
	if ok {
		unit = parsePrice(tech.Price)
		line.Technique = tech.Key
	}
	line.TechniqueMismatch = !exact
	for _, id := range item.Placements {
		p, ok := findPlacement(quote.Placements, id, line.Technique)
		if !ok {
			line.UnpricedPlacements = append(line.UnpricedPlacements, id)
			continue
		}
		unit = unit.Add(parsePrice(p.Price))
	}

	line.UnitPrice = unit.Round(2)
	line.Total = unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	return line
}

// selectTechnique prefers the technique the customer chose and falls back to
// the first one the vendor lists. exact is false when a chosen technique was
// replaced or nothing could be priced; an empty choice taking the first entry
// counts as exact.
func selectTechnique(techniques []TechniquePrice, chosen string) (t TechniquePrice, exact, ok bool) {
	chosen = strings.TrimSpace(chosen)
	if len(techniques) == 0 {
		return TechniquePrice{}, false, false
	}
	for _, t := range techniques {
		if strings.EqualFold(t.Key, chosen) {
			return t, true, true
		}
	}
	return techniques[0], chosen == "", true
}

func findPlacement(placements []PlacementPrice, id, technique string) (PlacementPrice, bool) {
	var fallback *PlacementPrice
	for i := range placements {
		p := &placements[i]
		if p.ID != id {
			continue
		}
		if p.Technique == "" || strings.EqualFold(p.Technique, technique) {
			return *p, true
		}
		if fallback == nil {
			fallback = p
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return PlacementPrice{}, false
}

// parsePrice treats anything that is not a non-negative decimal as zero.
func parsePrice(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// VariantIDs returns the distinct variant ids referenced by items, sorted,
// for a single batched price fetch.
func VariantIDs(items []Item) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.VariantID]; ok {
			continue
		}
		seen[it.VariantID] = struct{}{}
		ids = append(ids, it.VariantID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FormatMoney renders an amount with two decimals, rounding half up.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
