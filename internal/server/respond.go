package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/imagine-it/storefront/internal/credits"
	"github.com/imagine-it/storefront/internal/repository"
	"github.com/imagine-it/storefront/internal/service"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Cost    *int   `json:"cost,omitempty"`
	Balance *int   `json:"balance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_json", Message: err.Error()})
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *credits.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		cost, balance := insufficient.Cost, insufficient.Balance
		writeJSON(w, http.StatusPaymentRequired, errorBody{
			Error:   "insufficient_credits",
			Message: err.Error(),
			Cost:    &cost,
			Balance: &balance,
		})
		return
	}

	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, credits.ErrUnknownModel):
		status, code = http.StatusBadRequest, "unknown_model"
	case errors.Is(err, credits.ErrProfileNotInitialized):
		status, code = http.StatusConflict, "profile_not_initialized"
	case errors.Is(err, service.ErrInvalidQuantity):
		status, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, service.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, repository.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrPricingUnavailable):
		status, code = http.StatusServiceUnavailable, "pricing_unavailable"
	case errors.Is(err, service.ErrPromoInvalid):
		status, code = http.StatusBadRequest, "promo_invalid"
	case errors.Is(err, service.ErrPromoExhausted):
		status, code = http.StatusConflict, "promo_exhausted"
	case errors.Is(err, service.ErrPromoAlreadyRedeemed):
		status, code = http.StatusConflict, "promo_already_redeemed"
	case errors.Is(err, service.ErrPaymentNotCompleted):
		status, code = http.StatusPaymentRequired, "payment_not_completed"
	case errors.Is(err, service.ErrOrderNotPayable):
		status, code = http.StatusConflict, "order_not_payable"
	case errors.Is(err, service.ErrWebhookSignature):
		status, code = http.StatusUnauthorized, "invalid_signature"
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
		writeJSON(w, status, errorBody{Error: code})
		return
	}
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", service.ErrInvalidInput, value)
	}
	return id, nil
}
