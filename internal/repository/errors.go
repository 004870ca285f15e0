package repository

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoProfile       = errors.New("profile not found")
	ErrPromoExhausted  = errors.New("promo code exhausted")
	ErrAlreadyRedeemed = errors.New("promo code already redeemed")
)
