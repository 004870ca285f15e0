package service

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 99")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrPricingUnavailable   = errors.New("pricing unavailable")
	ErrPromoInvalid         = errors.New("promo code invalid")
	ErrPromoExhausted       = errors.New("promo code exhausted")
	ErrPromoAlreadyRedeemed = errors.New("promo code already redeemed")
	ErrPaymentNotCompleted  = errors.New("payment not completed")
	ErrOrderNotPayable      = errors.New("order cannot be paid")
	ErrWebhookSignature     = errors.New("webhook signature invalid")
)
