package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/notify"
	"github.com/imagine-it/storefront/internal/paypal"
	"github.com/imagine-it/storefront/internal/pricing"
	"github.com/imagine-it/storefront/internal/repository"
)

// CheckoutService turns a cart into a paid order and hands it to the
// fulfillment vendor.
type CheckoutService struct {
	log         *slog.Logger
	carts       CartStore
	orders      OrderStore
	prices      *PriceService
	gateway     PaymentGateway
	fulfillment Fulfillment
	notifier    notify.Notifier
	currency    string
}

type CheckoutResult struct {
	Order      *models.Order `json:"order"`
	ApproveURL string        `json:"approve_url"`
}

func NewCheckoutService(log *slog.Logger, carts CartStore, orders OrderStore, prices *PriceService, gateway PaymentGateway, fulfillment Fulfillment, notifier notify.Notifier, currency string) *CheckoutService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &CheckoutService{
		log:         log,
		carts:       carts,
		orders:      orders,
		prices:      prices,
		gateway:     gateway,
		fulfillment: fulfillment,
		notifier:    notifier,
		currency:    currency,
	}
}

// Start reprices the cart from fresh quotes, snapshots it into a pending
// order and opens the PayPal order the buyer approves.
func (s *CheckoutService) Start(ctx context.Context, userID string, recipient models.Recipient) (*CheckoutResult, error) {
	if err := validateRecipient(recipient); err != nil {
		return nil, err
	}
	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	priced := toPricingItems(items)
	quotes, err := s.prices.QuotesStrict(ctx, pricing.VariantIDs(priced))
	if err != nil {
		return nil, err
	}
	summary := pricing.PriceCartItems(priced, quotes)
	if err := requireExactPricing(summary); err != nil {
		return nil, err
	}
	if !summary.Subtotal.IsPositive() {
		return nil, fmt.Errorf("%w: cart total is zero", ErrPricingUnavailable)
	}

	lines := make([]models.OrderLine, 0, len(items))
	for i, it := range items {
		line := summary.Items[i]
		lines = append(lines, models.OrderLine{
			CartItemID: it.ID,
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Technique:  line.Technique,
			Placements: it.Placements,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Total:      line.Total,
		})
	}

	order, err := s.orders.Create(ctx, &models.Order{
		UserID:    userID,
		Status:    models.OrderPending,
		Currency:  s.currency,
		Subtotal:  summary.Subtotal,
		Recipient: recipient,
		Lines:     lines,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	ppOrder, err := s.gateway.CreateOrder(ctx, paypal.OrderRequest{
		RequestID:   order.ID,
		ReferenceID: order.ID,
		CustomID:    order.ID,
		Description: fmt.Sprintf("Imagine It order %s", order.ID),
		Amount:      paypal.NewAmount(order.Currency, order.Subtotal),
	})
	if err != nil {
		if _, cerr := s.orders.TransitionStatus(context.WithoutCancel(ctx), order.ID, models.OrderPending, models.OrderCanceled); cerr != nil {
			s.log.Error("cancel order after paypal failure", "order_id", order.ID, "err", cerr)
		}
		return nil, err
	}
	if err := s.orders.SetPayPalOrder(ctx, order.ID, ppOrder.ID); err != nil {
		return nil, err
	}
	order.PayPalOrderID = ppOrder.ID

	s.log.Info("checkout started", "user", userID, "order_id", order.ID, "subtotal", pricing.FormatMoney(order.Subtotal))
	return &CheckoutResult{Order: order, ApproveURL: ppOrder.ApproveURL}, nil
}

// requireExactPricing rejects a cart whose total would undercharge: a line
// priced with a substitute technique or with placements the vendor did not
// quote.
func requireExactPricing(summary pricing.Summary) error {
	for _, line := range summary.Items {
		switch {
		case line.MissingQuote:
			return fmt.Errorf("%w: no quote for item %s", ErrPricingUnavailable, line.ItemID)
		case line.TechniqueMismatch:
			return fmt.Errorf("%w: technique not quoted for item %s", ErrPricingUnavailable, line.ItemID)
		case len(line.UnpricedPlacements) > 0:
			return fmt.Errorf("%w: placements %v not quoted for item %s", ErrPricingUnavailable, line.UnpricedPlacements, line.ItemID)
		}
	}
	return nil
}

// Capture collects the approved payment and submits the order for
// fulfillment. Capturing an order that is already paid returns it unchanged.
func (s *CheckoutService) Capture(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.orders.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.OrderPending:
	case models.OrderCanceled:
		return nil, ErrOrderNotPayable
	default:
		return order, nil
	}
	if order.PayPalOrderID == "" {
		return nil, ErrOrderNotPayable
	}

	ppOrder, err := captureOrFetch(ctx, s.gateway, order.PayPalOrderID)
	if err != nil {
		return nil, err
	}
	if ppOrder.Status != paypal.StatusCompleted {
		return nil, fmt.Errorf("%w: paypal status %s", ErrPaymentNotCompleted, ppOrder.Status)
	}

	moved, err := s.orders.TransitionStatus(ctx, order.ID, models.OrderPending, models.OrderPaid)
	if err != nil {
		return nil, err
	}
	if !moved {
		// A concurrent capture got there first.
		return s.orders.Get(ctx, userID, orderID)
	}
	order.Status = models.OrderPaid

	// The payment is final from here on; failures below are reported, not returned.
	ctx = context.WithoutCancel(ctx)
	for _, line := range order.Lines {
		if err := s.carts.Remove(ctx, userID, line.CartItemID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("remove purchased cart item", "order_id", order.ID, "item", line.CartItemID, "err", err)
		}
	}
	s.notifier.Notify(ctx, fmt.Sprintf("Order %s paid: %s %s", order.ID, pricing.FormatMoney(order.Subtotal), order.Currency))

	printfulID, err := s.fulfillment.CreateOrder(ctx, order)
	if err != nil {
		s.log.Error("fulfillment submission failed", "order_id", order.ID, "err", err)
		if _, terr := s.orders.TransitionStatus(ctx, order.ID, models.OrderPaid, models.OrderFulfillmentFailed); terr != nil {
			s.log.Error("mark fulfillment failed", "order_id", order.ID, "err", terr)
		}
		s.notifier.Notify(ctx, fmt.Sprintf("Fulfillment failed for paid order %s: %v", order.ID, err))
		return s.orders.Get(ctx, userID, orderID)
	}
	if err := s.orders.MarkSubmitted(ctx, order.ID, printfulID); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, userID, orderID)
}

func (s *CheckoutService) List(ctx context.Context, userID string) ([]models.Order, error) {
	return s.orders.List(ctx, userID)
}

func validateRecipient(r models.Recipient) error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", r.Name},
		{"address1", r.Address1},
		{"city", r.City},
		{"country_code", r.CountryCode},
		{"zip", r.Zip},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: recipient missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}
