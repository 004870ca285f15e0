package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/notify"
	"github.com/imagine-it/storefront/internal/paypal"
	"github.com/imagine-it/storefront/internal/repository"
)

const providerPayPal = "paypal"

// PaymentService sells credit packs through PayPal.
type PaymentService struct {
	log      *slog.Logger
	payments PaymentStore
	plans    *PlanService
	gateway  PaymentGateway
	notifier notify.Notifier
}

type Purchase struct {
	Payment       *models.Payment `json:"payment"`
	PayPalOrderID string          `json:"paypal_order_id"`
	ApproveURL    string          `json:"approve_url"`
}

func NewPaymentService(log *slog.Logger, payments PaymentStore, plans *PlanService, gateway PaymentGateway, notifier notify.Notifier) *PaymentService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &PaymentService{log: log, payments: payments, plans: plans, gateway: gateway, notifier: notifier}
}

// StartPurchase opens a PayPal order for the plan and records a pending
// payment the buyer completes after approving it.
func (s *PaymentService) StartPurchase(ctx context.Context, userID string, planID int64) (*Purchase, error) {
	plan, err := s.plans.Resolve(ctx, planID)
	if err != nil {
		return nil, err
	}

	amount := decimal.New(int64(plan.PriceMinorUnits), -2)
	order, err := s.gateway.CreateOrder(ctx, paypal.OrderRequest{
		RequestID:   uuid.NewString(),
		ReferenceID: fmt.Sprintf("plan-%d", plan.ID),
		CustomID:    userID,
		Description: fmt.Sprintf("%s (%d credits)", plan.Title, plan.Credits),
		Amount:      paypal.NewAmount(plan.Currency, amount),
	})
	if err != nil {
		return nil, err
	}

	planRef := plan.ID
	record := &models.Payment{
		UserID:         userID,
		PlanID:         &planRef,
		Provider:       providerPayPal,
		ProviderCharge: order.ID,
		Currency:       plan.Currency,
		Amount:         plan.PriceMinorUnits,
		Status:         models.PaymentPending,
		RawPayload:     string(order.Raw),
	}
	if err := s.payments.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}
	return &Purchase{Payment: record, PayPalOrderID: order.ID, ApproveURL: order.ApproveURL}, nil
}

// CompletePurchase captures an approved order and credits the buyer. Calling
// it again for the same order is a no-op.
func (s *PaymentService) CompletePurchase(ctx context.Context, userID, paypalOrderID string) (*models.Payment, error) {
	payment, err := s.payments.FindByProviderCharge(ctx, providerPayPal, paypalOrderID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if payment.Status == models.PaymentPaid {
		return payment, nil
	}

	order, err := captureOrFetch(ctx, s.gateway, paypalOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != paypal.StatusCompleted {
		return nil, fmt.Errorf("%w: paypal status %s", ErrPaymentNotCompleted, order.Status)
	}

	if err := s.credit(ctx, payment, string(order.Raw)); err != nil {
		return nil, err
	}
	return s.payments.FindByProviderCharge(ctx, providerPayPal, paypalOrderID)
}

type webhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// HandleWebhook credits purchases whose capture completed without the buyer
// returning to the storefront. Events for unknown orders are ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	ok, err := s.gateway.VerifyWebhook(ctx, headers, body)
	if err != nil {
		return err
	}
	if !ok {
		return ErrWebhookSignature
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("%w: parse webhook: %v", ErrInvalidInput, err)
	}

	orderID := evt.Resource.SupplementaryData.RelatedIDs.OrderID
	switch evt.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.REFUNDED":
		if orderID == "" {
			return nil
		}
		payment, err := s.payments.FindByProviderCharge(ctx, providerPayPal, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if payment.Status == models.PaymentPaid {
			// Credits already granted stay; reversing them is an ops decision.
			s.log.Warn("paypal reversal for paid credit pack", "event", evt.EventType, "event_id", evt.ID, "payment_id", payment.ID, "user", payment.UserID, "order_id", orderID)
			s.notifier.Notify(context.WithoutCancel(ctx), fmt.Sprintf("Credit pack payment %d reversed by PayPal (%s), user %s, order %s: credits were already granted", payment.ID, evt.EventType, payment.UserID, orderID))
			return nil
		}
		return s.payments.UpdateStatus(ctx, payment.ID, models.PaymentFailed, string(body))
	default:
		return nil
	}

	if orderID == "" {
		s.log.Warn("paypal capture event without order id", "event_id", evt.ID)
		return nil
	}
	payment, err := s.payments.FindByProviderCharge(ctx, providerPayPal, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info("paypal event for non credit order ignored", "event_id", evt.ID, "order_id", orderID)
		return nil
	}
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentPaid {
		return nil
	}
	return s.credit(ctx, payment, string(body))
}

func (s *PaymentService) credit(ctx context.Context, payment *models.Payment, payload string) error {
	if payment.PlanID == nil {
		return fmt.Errorf("payment %d missing plan", payment.ID)
	}
	plan, err := s.plans.GetByID(ctx, *payment.PlanID)
	if err != nil {
		return fmt.Errorf("get plan: %w", err)
	}
	applied, err := s.payments.MarkPaidAndCredit(ctx, payment.ID, plan.Credits, payload)
	if err != nil {
		return err
	}
	if applied {
		s.log.Info("credit pack purchased", "user", payment.UserID, "plan", plan.ID, "credits", plan.Credits)
		s.notifier.Notify(ctx, fmt.Sprintf("Credit pack purchased: %s, %d credits, user %s", plan.Title, plan.Credits, payment.UserID))
	}
	return nil
}

// captureOrFetch captures an approved PayPal order. An order captured by an
// earlier attempt is read back instead.
func captureOrFetch(ctx context.Context, gateway PaymentGateway, orderID string) (*paypal.Order, error) {
	order, err := gateway.CaptureOrder(ctx, orderID)
	if err == nil {
		return order, nil
	}
	var apiErr *paypal.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
		current, getErr := gateway.GetOrder(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status == paypal.StatusCompleted {
			return current, nil
		}
		return nil, fmt.Errorf("%w: paypal status %s", ErrPaymentNotCompleted, current.Status)
	}
	return nil, err
}
