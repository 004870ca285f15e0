package service

import (
	"context"
	"net/http"

	"github.com/imagine-it/storefront/internal/kie"
	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/paypal"
	"github.com/imagine-it/storefront/internal/pricing"
	"github.com/imagine-it/storefront/internal/printful"
)

// The interfaces below are the narrow views services take of the
// repositories and vendor clients, so each service can be exercised against
// in-memory fakes.

type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Ensure(ctx context.Context, userID, email, displayName string, signupCredits int) (*models.Profile, bool, error)
	AddCredits(ctx context.Context, userID string, delta int) error
}

type GenerationStore interface {
	Log(ctx context.Context, entry *models.GenerationLog) error
	List(ctx context.Context, userID string, limit int) ([]models.GenerationLog, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, providerModel string, opts kie.GenerateOptions) (*kie.Image, error)
}

type ImageStore interface {
	UploadFromURL(ctx context.Context, sourceURL string) (string, error)
}

type PriceFetcher interface {
	FetchVariantPrices(ctx context.Context, ids []int64) (map[int64]pricing.VariantQuote, error)
}

type CartStore interface {
	Add(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	Get(ctx context.Context, userID, itemID string) (*models.CartItem, error)
	List(ctx context.Context, userID string) ([]models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error)
	Remove(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, userID, orderID string) (*models.Order, error)
	List(ctx context.Context, userID string) ([]models.Order, error)
	SetPayPalOrder(ctx context.Context, orderID, paypalOrderID string) error
	TransitionStatus(ctx context.Context, orderID string, from, to models.OrderStatus) (bool, error)
	MarkSubmitted(ctx context.Context, orderID, printfulOrderID string) error
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByProviderCharge(ctx context.Context, provider, chargeID string) (*models.Payment, error)
	MarkPaidAndCredit(ctx context.Context, paymentID int64, credits int, payload string) (bool, error)
	UpdateStatus(ctx context.Context, paymentID int64, status string, payload string) error
}

type PlanStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	GetDefault(ctx context.Context) (*models.Plan, error)
	GetByID(ctx context.Context, id int64) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Update(ctx context.Context, plan *models.Plan) (*models.Plan, error)
	Delete(ctx context.Context, id int64) error
}

type PromoStore interface {
	List(ctx context.Context) ([]models.PromoCode, error)
	GetByID(ctx context.Context, id int64) (*models.PromoCode, error)
	Create(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Update(ctx context.Context, promo *models.PromoCode) (*models.PromoCode, error)
	Delete(ctx context.Context, id int64) error
	Redeem(ctx context.Context, userID, code string, bonus int) (int, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, req paypal.OrderRequest) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) (bool, error)
}

type Fulfillment interface {
	CreateOrder(ctx context.Context, order *models.Order) (string, error)
}

type MockupRenderer interface {
	CreateMockupTask(ctx context.Context, req printful.MockupRequest) (int64, error)
	MockupTask(ctx context.Context, taskID int64) (*printful.MockupTask, error)
	WaitMockupTask(ctx context.Context, taskID int64) (*printful.MockupTask, error)
}
