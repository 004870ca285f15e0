package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imagine-it/storefront/internal/auth"
	"github.com/imagine-it/storefront/internal/service"
)

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Generations.Models())
}

func (s *Server) handleListActivePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.svc.Plans.List(r.Context(), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Profiles.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type ensureProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// handleEnsureProfile is called by the client after sign-in.
func (s *Server) handleEnsureProfile(w http.ResponseWriter, r *http.Request) {
	var req ensureProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var email string
	if claims, ok := auth.ClaimsFrom(r.Context()); ok {
		email = claims.Email
	}
	profile, created, err := s.svc.Profiles.Ensure(r.Context(), auth.UserID(r.Context()), email, req.DisplayName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, profile)
}

type promoApplyRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req promoApplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	balance, err := s.svc.Promos.Apply(r.Context(), auth.UserID(r.Context()), req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"credits": balance})
}

type generateRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	AspectRatio string   `json:"aspect_ratio"`
	Resolution  string   `json:"resolution"`
	InputURLs   []string `json:"input_urls"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Generations.Generate(r.Context(), auth.UserID(r.Context()), service.GenerationRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
		InputURLs:   req.InputURLs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, generationResponse{Generation: res.Generation, Cost: res.Cost, Remaining: res.Remaining})
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := s.svc.Generations.List(r.Context(), auth.UserID(r.Context()), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type purchaseRequest struct {
	PlanID int64 `json:"plan_id"`
}

func (s *Server) handleStartPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	purchase, err := s.svc.Payments.StartPurchase(r.Context(), auth.UserID(r.Context()), req.PlanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

func (s *Server) handleCompletePurchase(w http.ResponseWriter, r *http.Request) {
	payment, err := s.svc.Payments.CompletePurchase(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "paypalOrderID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (s *Server) handlePayPalWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	if err := s.svc.Payments.HandleWebhook(r.Context(), r.Header, body); err != nil {
		s.log.Warn("paypal webhook rejected", "err", err)
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
