package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagine-it/storefront/internal/auth"
	"github.com/imagine-it/storefront/internal/credits"
	"github.com/imagine-it/storefront/internal/kie"
	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/pricing"
	"github.com/imagine-it/storefront/internal/repository"
	"github.com/imagine-it/storefront/internal/service"
	"github.com/imagine-it/storefront/pkg/logger"
)

const testSecret = "test-secret"

type balances struct {
	mu sync.Mutex
	m  map[string]int
}

func (b *balances) Get(_ context.Context, userID string) (*models.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.Profile{ID: userID, Credits: &v}, nil
}

func (b *balances) Ensure(ctx context.Context, userID, _, _ string, signup int) (*models.Profile, bool, error) {
	b.mu.Lock()
	_, ok := b.m[userID]
	if !ok {
		b.m[userID] = signup
	}
	b.mu.Unlock()
	p, err := b.Get(ctx, userID)
	return p, !ok, err
}

func (b *balances) AddCredits(_ context.Context, userID string, delta int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.m[userID]; !ok {
		return repository.ErrNotFound
	}
	b.m[userID] += delta
	return nil
}

func (b *balances) Balance(_ context.Context, userID string) (*int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[userID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (b *balances) Debit(_ context.Context, userID string, amount int) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[userID]
	if !ok || v < amount {
		return 0, false, nil
	}
	b.m[userID] = v - amount
	return v - amount, true, nil
}

type nopGenerations struct{}

func (nopGenerations) Log(context.Context, *models.GenerationLog) error { return nil }
func (nopGenerations) List(context.Context, string, int) ([]models.GenerationLog, error) {
	return nil, nil
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(context.Context, string, kie.GenerateOptions) (*kie.Image, error) {
	return &kie.Image{URL: "https://cdn.kie.ai/out.png", TaskID: "t-1"}, nil
}

type echoImages struct{}

func (echoImages) UploadFromURL(_ context.Context, src string) (string, error) { return src, nil }

type staticCart struct {
	items []models.CartItem
}

func (c *staticCart) Add(_ context.Context, item *models.CartItem) (*models.CartItem, error) {
	item.ID = fmt.Sprintf("item-%d", len(c.items)+1)
	c.items = append(c.items, *item)
	return item, nil
}
func (c *staticCart) Get(context.Context, string, string) (*models.CartItem, error) {
	return nil, repository.ErrNotFound
}
func (c *staticCart) List(_ context.Context, userID string) ([]models.CartItem, error) {
	var out []models.CartItem
	for _, it := range c.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}
func (c *staticCart) UpdateQuantity(context.Context, string, string, int) (*models.CartItem, error) {
	return nil, repository.ErrNotFound
}
func (c *staticCart) Remove(context.Context, string, string) error { return repository.ErrNotFound }
func (c *staticCart) Clear(context.Context, string) error          { return nil }

type quoteTable map[int64]pricing.VariantQuote

func (q quoteTable) FetchVariantPrices(_ context.Context, ids []int64) (map[int64]pricing.VariantQuote, error) {
	out := make(map[int64]pricing.VariantQuote)
	for _, id := range ids {
		if v, ok := q[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type harness struct {
	srv      *Server
	balances *balances
	cart     *staticCart
	verifier *auth.Verifier
	health   error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		balances: &balances{m: map[string]int{"u1": 20, "poor": 3}},
		cart:     &staticCart{},
		verifier: auth.NewVerifier(testSecret),
	}
	log := logger.Discard()
	costs, err := credits.NewCostTable(credits.DefaultModels)
	require.NoError(t, err)
	gate := credits.NewGate(costs, h.balances, log)
	prices := service.NewPriceService(quoteTable{4012: {
		VariantID:  4012,
		Techniques: []pricing.TechniquePrice{{Key: "dtg", Price: "10"}},
		Placements: []pricing.PlacementPrice{{ID: "front", Price: "2.5"}},
	}}, nil, log)

	h.srv = NewServer(Options{
		AdminUsername: "admin",
		AdminPassword: "pw",
		Health:        func(context.Context) error { return h.health },
	}, log, h.verifier, Services{
		Profiles:    service.NewProfileService(h.balances, 10),
		Generations: service.NewGenerationService(log, gate, h.balances, nopGenerations{}, fixedGenerator{}, echoImages{}),
		Carts:       service.NewCartService(h.cart, prices, "USD", log),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		token, err := h.verifier.Issue(userID, userID+"@example.com", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "", "").Code)

	h.health = errors.New("db down")
	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodGet, "/healthz", "", "").Code)
}

func TestUserRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/cart", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListModelsHidesProviderModel(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/models", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gpt-image-1"`)
	assert.NotContains(t, rec.Body.String(), "gpt4o-image")
}

func TestGenerate(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/generations", "u1", `{"model":"gpt-image-1","prompt":"a red fox"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.EqualValues(t, 13, body["cost"])
	assert.EqualValues(t, 7, body["remaining"])
}

func TestGenerateErrorMapping(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/generations", "poor", `{"model":"gpt-image-1","prompt":"fox"}`)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "insufficient_credits", body["error"])
	assert.EqualValues(t, 13, body["cost"])
	assert.EqualValues(t, 3, body["balance"])

	rec = h.do(t, http.MethodPost, "/api/generations", "u1", `{"model":"nope","prompt":"fox"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_model", decodeBody(t, rec)["error"])

	rec = h.do(t, http.MethodPost, "/api/generations", "stranger", `{"model":"flux-2","prompt":"fox"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "profile_not_initialized", decodeBody(t, rec)["error"])

	rec = h.do(t, http.MethodPost, "/api/generations", "u1", `{"model":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeBody(t, rec)["error"])
}

func TestEnsureProfile(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/profile", "newbie", `{"display_name":"New"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 10, decodeBody(t, rec)["credits"])

	rec = h.do(t, http.MethodPost, "/api/profile", "newbie", ``)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/profile", "ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartFormatsMoney(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/cart/items", "u1", `{"product_id":71,"variant_id":4012,"technique":"dtg","placements":[{"placement":"front","image_url":"https://cdn/a.png"}],"quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(t, http.MethodGet, "/api/cart", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cart cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, "25.00", cart.Subtotal)
	assert.Equal(t, "USD", cart.Currency)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "12.50", cart.Items[0].UnitPrice)

	rec = h.do(t, http.MethodPost, "/api/cart/items", "u1", `{"product_id":71,"variant_id":4012,"placements":[{"placement":"front","image_url":"x"}],"quantity":500}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decodeBody(t, rec)["error"])

	rec = h.do(t, http.MethodDelete, "/api/cart/items/missing", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRequiresBasicAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/admin/profiles/u1/credits", "", `{"delta":5}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/profiles/u1/credits", strings.NewReader(`{"delta":5}`))
	req.SetBasicAuth("admin", "pw")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 25, decodeBody(t, rec)["credits"])

	req = httptest.NewRequest(http.MethodPost, "/admin/profiles/u1/credits", strings.NewReader(`{"delta":5}`))
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestAdminWithoutPasswordRefusesEveryone(t *testing.T) {
	srv := NewServer(Options{AdminUsername: "admin"}, logger.Discard(), auth.NewVerifier(testSecret), Services{})

	req := httptest.NewRequest(http.MethodGet, "/admin/plans", nil)
	req.SetBasicAuth("admin", "")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteErrorMapping(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrPricingUnavailable, http.StatusServiceUnavailable, "pricing_unavailable"},
		{service.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
		{fmt.Errorf("wrapped: %w", repository.ErrNotFound), http.StatusNotFound, "not_found"},
		{service.ErrPromoExhausted, http.StatusConflict, "promo_exhausted"},
		{service.ErrPaymentNotCompleted, http.StatusPaymentRequired, "payment_not_completed"},
		{service.ErrWebhookSignature, http.StatusUnauthorized, "invalid_signature"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.srv.writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.code, body["error"])
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, body, "message")
			}
		})
	}
}
