package service

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/imagine-it/storefront/internal/kie"
	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/paypal"
	"github.com/imagine-it/storefront/internal/pricing"
	"github.com/imagine-it/storefront/internal/printful"
	"github.com/imagine-it/storefront/internal/repository"
)

// memProfiles backs both ProfileStore and credits.Ledger.
type memProfiles struct {
	mu       sync.Mutex
	balances map[string]*int
}

func newMemProfiles(balances map[string]int) *memProfiles {
	p := &memProfiles{balances: make(map[string]*int)}
	for id, b := range balances {
		v := b
		p.balances[id] = &v
	}
	return p
}

func (p *memProfiles) Get(_ context.Context, userID string) (*models.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.balances[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	profile := &models.Profile{ID: userID}
	if b != nil {
		v := *b
		profile.Credits = &v
	}
	return profile, nil
}

func (p *memProfiles) Ensure(ctx context.Context, userID, _, _ string, signupCredits int) (*models.Profile, bool, error) {
	p.mu.Lock()
	_, exists := p.balances[userID]
	if !exists {
		v := signupCredits
		p.balances[userID] = &v
	}
	p.mu.Unlock()
	profile, err := p.Get(ctx, userID)
	return profile, !exists, err
}

func (p *memProfiles) AddCredits(_ context.Context, userID string, delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.balances[userID]
	if !ok {
		return repository.ErrNotFound
	}
	v := delta
	if b != nil {
		v += *b
	}
	if v < 0 {
		v = 0
	}
	p.balances[userID] = &v
	return nil
}

func (p *memProfiles) Balance(_ context.Context, userID string) (*int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.balances[userID]
	if !ok || b == nil {
		return nil, nil
	}
	v := *b
	return &v, nil
}

func (p *memProfiles) Debit(_ context.Context, userID string, amount int) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.balances[userID]
	if !ok || b == nil || *b < amount {
		return 0, false, nil
	}
	*b -= amount
	return *b, true, nil
}

func (p *memProfiles) balance(userID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.balances[userID]
}

type memGenerations struct {
	mu      sync.Mutex
	entries []models.GenerationLog
}

func (g *memGenerations) Log(_ context.Context, entry *models.GenerationLog) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry.ID = int64(len(g.entries) + 1)
	g.entries = append(g.entries, *entry)
	return nil
}

func (g *memGenerations) List(_ context.Context, userID string, _ int) ([]models.GenerationLog, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.GenerationLog
	for _, e := range g.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubGenerator struct {
	calls atomic.Int32
	model string
	image *kie.Image
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, providerModel string, _ kie.GenerateOptions) (*kie.Image, error) {
	g.calls.Add(1)
	g.model = providerModel
	if g.err != nil {
		return nil, g.err
	}
	return g.image, nil
}

type stubImages struct {
	url string
	err error
}

func (s stubImages) UploadFromURL(context.Context, string) (string, error) {
	return s.url, s.err
}

type stubFetcher struct {
	mu     sync.Mutex
	calls  int
	asked  [][]int64
	quotes map[int64]pricing.VariantQuote
	err    error
	gate   chan struct{}
}

func (f *stubFetcher) FetchVariantPrices(_ context.Context, ids []int64) (map[int64]pricing.VariantQuote, error) {
	f.mu.Lock()
	f.calls++
	f.asked = append(f.asked, append([]int64(nil), ids...))
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int64]pricing.VariantQuote)
	for _, id := range ids {
		if q, ok := f.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type memQuoteCache struct {
	mu     sync.Mutex
	quotes map[int64]pricing.VariantQuote
}

func (c *memQuoteCache) GetMany(_ context.Context, ids []int64) (map[int64]pricing.VariantQuote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]pricing.VariantQuote)
	for _, id := range ids {
		if q, ok := c.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (c *memQuoteCache) SetMany(_ context.Context, quotes map[int64]pricing.VariantQuote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quotes == nil {
		c.quotes = make(map[int64]pricing.VariantQuote)
	}
	for id, q := range quotes {
		c.quotes[id] = q
	}
	return nil
}

type memCarts struct {
	mu    sync.Mutex
	seq   int
	items []models.CartItem
}

func (c *memCarts) Add(_ context.Context, item *models.CartItem) (*models.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	item.ID = fmt.Sprintf("item-%d", c.seq)
	c.items = append(c.items, *item)
	out := *item
	return &out, nil
}

func (c *memCarts) Get(_ context.Context, userID, itemID string) (*models.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.ID == itemID && it.UserID == userID {
			out := it
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (c *memCarts) List(_ context.Context, userID string) ([]models.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.CartItem
	for _, it := range c.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (c *memCarts) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == itemID && c.items[i].UserID == userID {
			c.items[i].Quantity = quantity
		}
	}
	c.mu.Unlock()
	return c.Get(ctx, userID, itemID)
}

func (c *memCarts) Remove(_ context.Context, userID, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if it.ID == itemID && it.UserID == userID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (c *memCarts) Clear(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	for _, it := range c.items {
		if it.UserID != userID {
			kept = append(kept, it)
		}
	}
	c.items = kept
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	seq    int
	orders map[string]*models.Order
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]*models.Order)}
}

func (o *memOrders) Create(_ context.Context, order *models.Order) (*models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	order.ID = fmt.Sprintf("ord-%d", o.seq)
	stored := *order
	o.orders[order.ID] = &stored
	out := stored
	return &out, nil
}

func (o *memOrders) Get(_ context.Context, userID, orderID string) (*models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, repository.ErrNotFound
	}
	out := *order
	return &out, nil
}

func (o *memOrders) List(_ context.Context, userID string) ([]models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.Order
	for _, order := range o.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (o *memOrders) SetPayPalOrder(_ context.Context, orderID, paypalOrderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.orders[orderID].PayPalOrderID = paypalOrderID
	return nil
}

func (o *memOrders) TransitionStatus(_ context.Context, orderID string, from, to models.OrderStatus) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (o *memOrders) MarkSubmitted(_ context.Context, orderID, printfulOrderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	order := o.orders[orderID]
	order.Status = models.OrderSubmitted
	order.PrintfulOrderID = printfulOrderID
	return nil
}

func (o *memOrders) status(orderID string) models.OrderStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orders[orderID].Status
}

// memPayments credits through the attached profiles the way the SQL
// repository does inside its transaction.
type memPayments struct {
	mu       sync.Mutex
	profiles *memProfiles
	payments []*models.Payment
}

func (p *memPayments) Create(_ context.Context, payment *models.Payment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	payment.ID = int64(len(p.payments) + 1)
	stored := *payment
	p.payments = append(p.payments, &stored)
	return nil
}

func (p *memPayments) FindByProviderCharge(_ context.Context, provider, chargeID string) (*models.Payment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pay := range p.payments {
		if pay.Provider == provider && pay.ProviderCharge == chargeID {
			out := *pay
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (p *memPayments) MarkPaidAndCredit(ctx context.Context, paymentID int64, credits int, payload string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay := p.payments[paymentID-1]
	if pay.Status == models.PaymentPaid {
		return false, nil
	}
	if err := p.profiles.AddCredits(ctx, pay.UserID, credits); err != nil {
		return false, repository.ErrNoProfile
	}
	pay.Status = models.PaymentPaid
	pay.RawPayload = payload
	return true, nil
}

func (p *memPayments) UpdateStatus(_ context.Context, paymentID int64, status string, payload string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pay := p.payments[paymentID-1]
	if pay.Status != models.PaymentPaid {
		pay.Status = status
		pay.RawPayload = payload
	}
	return nil
}

type memPlans struct {
	plans []*models.Plan
}

func (m *memPlans) List(_ context.Context, activeOnly bool) ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range m.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memPlans) GetDefault(_ context.Context) (*models.Plan, error) {
	for _, p := range m.plans {
		if p.IsActive {
			out := *p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPlans) GetByID(_ context.Context, id int64) (*models.Plan, error) {
	for _, p := range m.plans {
		if p.ID == id {
			out := *p
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPlans) Create(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	plan.ID = int64(len(m.plans) + 1)
	stored := *plan
	m.plans = append(m.plans, &stored)
	return plan, nil
}

func (m *memPlans) Update(_ context.Context, plan *models.Plan) (*models.Plan, error) {
	for i, p := range m.plans {
		if p.ID == plan.ID {
			stored := *plan
			m.plans[i] = &stored
			return plan, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPlans) Delete(_ context.Context, id int64) error {
	for i, p := range m.plans {
		if p.ID == id {
			m.plans = append(m.plans[:i], m.plans[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubPromos struct {
	balance  int
	err      error
	gotCode  string
	gotBonus int
}

func (s *stubPromos) List(context.Context) ([]models.PromoCode, error) { return nil, nil }
func (s *stubPromos) GetByID(_ context.Context, id int64) (*models.PromoCode, error) {
	return &models.PromoCode{ID: id, Code: "LAUNCH", MaxUses: 10, Uses: 2}, nil
}
func (s *stubPromos) Create(_ context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	promo.ID = 1
	return promo, nil
}
func (s *stubPromos) Update(_ context.Context, promo *models.PromoCode) (*models.PromoCode, error) {
	return promo, nil
}
func (s *stubPromos) Delete(context.Context, int64) error { return nil }
func (s *stubPromos) Redeem(_ context.Context, _, code string, bonus int) (int, error) {
	s.gotCode = code
	s.gotBonus = bonus
	return s.balance, s.err
}

// fakeGateway stands in for PayPal.
type fakeGateway struct {
	mu          sync.Mutex
	created     []paypal.OrderRequest
	createErr   error
	captureErr  error
	status      string
	captures    int
	verified    bool
	verifyCalls int
}

func (g *fakeGateway) CreateOrder(_ context.Context, req paypal.OrderRequest) (*paypal.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	id := fmt.Sprintf("PP-%d", len(g.created))
	return &paypal.Order{ID: id, Status: "CREATED", ApproveURL: "https://paypal.test/approve/" + id}, nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, orderID string) (*paypal.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captures++
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	return &paypal.Order{ID: orderID, Status: g.status}, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, orderID string) (*paypal.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &paypal.Order{ID: orderID, Status: g.status}, nil
}

func (g *fakeGateway) VerifyWebhook(context.Context, http.Header, []byte) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	return g.verified, nil
}

type stubFulfillment struct {
	calls  int
	orders []*models.Order
	err    error
}

func (f *stubFulfillment) CreateOrder(_ context.Context, order *models.Order) (string, error) {
	f.calls++
	f.orders = append(f.orders, order)
	if f.err != nil {
		return "", f.err
	}
	return "pf-777", nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type stubRenderer struct {
	req  printful.MockupRequest
	task *printful.MockupTask
}

func (r *stubRenderer) CreateMockupTask(_ context.Context, req printful.MockupRequest) (int64, error) {
	r.req = req
	return 900, nil
}

func (r *stubRenderer) MockupTask(_ context.Context, taskID int64) (*printful.MockupTask, error) {
	return r.task, nil
}

func (r *stubRenderer) WaitMockupTask(_ context.Context, taskID int64) (*printful.MockupTask, error) {
	return r.task, nil
}

// tshirtQuote is a dtg shirt at 10.00 with a 2.50 front print.
func tshirtQuote(variantID int64) pricing.VariantQuote {
	return pricing.VariantQuote{
		VariantID:  variantID,
		Currency:   "USD",
		Techniques: []pricing.TechniquePrice{{Key: "dtg", Price: "10.00"}},
		Placements: []pricing.PlacementPrice{{ID: "front", Technique: "dtg", Price: "2.50"}},
	}
}
