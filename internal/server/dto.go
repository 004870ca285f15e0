package server

import (
	"time"

	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/pricing"
	"github.com/imagine-it/storefront/internal/service"
)

// Money leaves the API as fixed two-decimal strings.

type cartLineResponse struct {
	ID                 string                 `json:"id"`
	ProductID          int64                  `json:"product_id"`
	VariantID          int64                  `json:"variant_id"`
	Technique          string                 `json:"technique"`
	Placements         []models.CartPlacement `json:"placements"`
	Quantity           int                    `json:"quantity"`
	UnitPrice          string                 `json:"unit_price"`
	Total              string                 `json:"total"`
	MissingQuote       bool                   `json:"missing_quote,omitempty"`
	UnpricedPlacements []string               `json:"unpriced_placements,omitempty"`
	TechniqueMismatch  bool                   `json:"technique_mismatch,omitempty"`
}

type cartResponse struct {
	Items    []cartLineResponse `json:"items"`
	Subtotal string             `json:"subtotal"`
	Currency string             `json:"currency"`
}

func newCartResponse(view *service.CartView) cartResponse {
	out := cartResponse{
		Items:    make([]cartLineResponse, 0, len(view.Items)),
		Subtotal: pricing.FormatMoney(view.Pricing.Subtotal),
		Currency: view.Currency,
	}
	for i, it := range view.Items {
		line := view.Pricing.Items[i]
		out.Items = append(out.Items, cartLineResponse{
			ID:                 it.ID,
			ProductID:          it.ProductID,
			VariantID:          it.VariantID,
			Technique:          line.Technique,
			Placements:         it.Placements,
			Quantity:           line.Quantity,
			UnitPrice:          pricing.FormatMoney(line.UnitPrice),
			Total:              pricing.FormatMoney(line.Total),
			MissingQuote:       line.MissingQuote,
			UnpricedPlacements: line.UnpricedPlacements,
			TechniqueMismatch:  line.TechniqueMismatch,
		})
	}
	return out
}

type orderLineResponse struct {
	CartItemID string                 `json:"cart_item_id"`
	ProductID  int64                  `json:"product_id"`
	VariantID  int64                  `json:"variant_id"`
	Technique  string                 `json:"technique"`
	Placements []models.CartPlacement `json:"placements"`
	Quantity   int                    `json:"quantity"`
	UnitPrice  string                 `json:"unit_price"`
	Total      string                 `json:"total"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	Status          models.OrderStatus  `json:"status"`
	Currency        string              `json:"currency"`
	Subtotal        string              `json:"subtotal"`
	Recipient       models.Recipient    `json:"recipient"`
	Lines           []orderLineResponse `json:"lines"`
	PayPalOrderID   string              `json:"paypal_order_id,omitempty"`
	PrintfulOrderID string              `json:"printful_order_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func newOrderResponse(o *models.Order) orderResponse {
	out := orderResponse{
		ID:              o.ID,
		Status:          o.Status,
		Currency:        o.Currency,
		Subtotal:        pricing.FormatMoney(o.Subtotal),
		Recipient:       o.Recipient,
		Lines:           make([]orderLineResponse, 0, len(o.Lines)),
		PayPalOrderID:   o.PayPalOrderID,
		PrintfulOrderID: o.PrintfulOrderID,
		CreatedAt:       o.CreatedAt,
	}
	for _, l := range o.Lines {
		out.Lines = append(out.Lines, orderLineResponse{
			CartItemID: l.CartItemID,
			ProductID:  l.ProductID,
			VariantID:  l.VariantID,
			Technique:  l.Technique,
			Placements: l.Placements,
			Quantity:   l.Quantity,
			UnitPrice:  pricing.FormatMoney(l.UnitPrice),
			Total:      pricing.FormatMoney(l.Total),
		})
	}
	return out
}

type generationResponse struct {
	Generation models.GenerationLog `json:"generation"`
	Cost       int                  `json:"cost"`
	Remaining  int                  `json:"remaining"`
}
