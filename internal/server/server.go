// Package server exposes the storefront services over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/imagine-it/storefront/internal/auth"
	"github.com/imagine-it/storefront/internal/service"
)

// Services are the domain services the handlers call into.
type Services struct {
	Profiles    *service.ProfileService
	Promos      *service.PromoService
	Generations *service.GenerationService
	Plans       *service.PlanService
	Payments    *service.PaymentService
	Carts       *service.CartService
	Checkout    *service.CheckoutService
	Mockups     *service.MockupService
}

type Options struct {
	Addr            string
	AdminUsername   string
	AdminPassword   string
	ShutdownTimeout time.Duration
	// WriteTimeout must cover a full image generation.
	WriteTimeout time.Duration
	// Health reports whether the backing stores are reachable.
	Health func(ctx context.Context) error
}

type Server struct {
	opts     Options
	log      *slog.Logger
	verifier *auth.Verifier
	svc      Services
	router   *chi.Mux
}

func NewServer(opts Options, log *slog.Logger, verifier *auth.Verifier, svc Services) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		opts:     opts,
		log:      log,
		verifier: verifier,
		svc:      svc,
		router:   r,
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/models", s.handleListModels)
	r.Get("/api/plans", s.handleListActivePlans)
	r.Post("/webhooks/paypal", s.handlePayPalWebhook)

	r.Group(func(user chi.Router) {
		user.Use(verifier.Middleware)
		user.Get("/api/profile", s.handleGetProfile)
		user.Post("/api/profile", s.handleEnsureProfile)
		user.Post("/api/promo", s.handleApplyPromo)
		user.Get("/api/generations", s.handleListGenerations)
		user.Post("/api/generations", s.handleGenerate)

		user.Route("/api/cart", func(r chi.Router) {
			r.Get("/", s.handleViewCart)
			r.Delete("/", s.handleClearCart)
			r.Post("/items", s.handleAddCartItem)
			r.Patch("/items/{id}", s.handleUpdateCartItem)
			r.Delete("/items/{id}", s.handleRemoveCartItem)
		})
		user.Post("/api/checkout", s.handleCheckout)
		user.Get("/api/orders", s.handleListOrders)
		user.Post("/api/orders/{id}/capture", s.handleCaptureOrder)

		user.Post("/api/credits/purchase", s.handleStartPurchase)
		user.Post("/api/credits/purchase/{paypalOrderID}/capture", s.handleCompletePurchase)

		user.Post("/api/mockups", s.handleCreateMockup)
		user.Get("/api/mockups/{taskID}", s.handleMockupStatus)
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(s.basicAuthMiddleware())
		admin.Route("/plans", func(r chi.Router) {
			r.Get("/", s.handleAdminListPlans)
			r.Post("/", s.handleCreatePlan)
			r.Put("/{id}", s.handleUpdatePlan)
			r.Delete("/{id}", s.handleDeletePlan)
		})
		admin.Route("/promo-codes", func(r chi.Router) {
			r.Get("/", s.handleListPromos)
			r.Post("/", s.handleCreatePromo)
			r.Put("/{id}", s.handleUpdatePromo)
			r.Delete("/{id}", s.handleDeletePromo)
		})
		admin.Post("/profiles/{id}/credits", s.handleAdjustCredits)
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("http shutdown error", "err", err)
		}
	}()

	s.log.Info("storefront api listening", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Health(ctx); err != nil {
			s.log.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// basicAuthMiddleware guards the admin routes. With no password configured
// every request is refused.
func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	if s.opts.AdminUsername == "" || s.opts.AdminPassword == "" {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			})
		}
	}
	return middleware.BasicAuth("imagine-it admin", map[string]string{
		s.opts.AdminUsername: s.opts.AdminPassword,
	})
}
