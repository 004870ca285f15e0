package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GenerationStatus string

const (
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
)

type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderPaid              OrderStatus = "paid"
	OrderSubmitted         OrderStatus = "submitted"
	OrderFulfillmentFailed OrderStatus = "fulfillment_failed"
	OrderCanceled          OrderStatus = "canceled"
)

const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Profile is the storefront user record. Credits is nil until the profile
// has been set up.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Credits     *int      `json:"credits"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type GenerationLog struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Model     string           `json:"model"`
	Prompt    string           `json:"prompt"`
	Credits   int              `json:"credits"`
	Status    GenerationStatus `json:"status"`
	ImageURL  string           `json:"image_url,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type PromoCode struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	MaxUses   int       `json:"max_uses"`
	Uses      int       `json:"uses"`
	CreatedAt time.Time `json:"created_at"`
}

type Payment struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	PlanID         *int64    `json:"plan_id,omitempty"`
	Provider       string    `json:"provider"`
	ProviderCharge string    `json:"provider_charge"`
	Currency       string    `json:"currency"`
	Amount         int       `json:"amount"`
	Status         string    `json:"status"`
	RawPayload     string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Plan is a purchasable credit pack.
type Plan struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Currency        string    `json:"currency"`
	PriceMinorUnits int       `json:"price_minor_units"`
	Credits         int       `json:"credits"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CartPlacement binds an artwork to a printable area of the product.
type CartPlacement struct {
	Placement string `json:"placement"`
	ImageURL  string `json:"image_url"`
}

type CartItem struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	ProductID  int64           `json:"product_id"`
	VariantID  int64           `json:"variant_id"`
	Technique  string          `json:"technique"`
	Placements []CartPlacement `json:"placements"`
	Quantity   int             `json:"quantity"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type Recipient struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
}

// OrderLine is the priced snapshot of a cart item taken at checkout.
type OrderLine struct {
	CartItemID string          `json:"cart_item_id"`
	ProductID  int64           `json:"product_id"`
	VariantID  int64           `json:"variant_id"`
	Technique  string          `json:"technique"`
	Placements []CartPlacement `json:"placements"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Total      decimal.Decimal `json:"total"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Status          OrderStatus     `json:"status"`
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Recipient       Recipient       `json:"recipient"`
	Lines           []OrderLine     `json:"lines"`
	PayPalOrderID   string          `json:"paypal_order_id,omitempty"`
	PrintfulOrderID string          `json:"printful_order_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
