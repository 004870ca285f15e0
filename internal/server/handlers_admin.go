package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imagine-it/storefront/internal/service"
)

// planRequest carries both create and update bodies. Absent fields are nil
// and leave the stored value unchanged on update.
type planRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Currency        *string `json:"currency"`
	PriceMinorUnits *int    `json:"price_minor_units"`
	Credits         *int    `json:"credits"`
	IsActive        *bool   `json:"is_active"`
}

func (p planRequest) createInput() service.CreatePlanInput {
	return service.CreatePlanInput{
		Title:           deref(p.Title),
		Description:     deref(p.Description),
		Currency:        deref(p.Currency),
		PriceMinorUnits: deref(p.PriceMinorUnits),
		Credits:         deref(p.Credits),
		IsActive:        p.IsActive,
	}
}

func (p planRequest) updateInput() service.UpdatePlanInput {
	return service.UpdatePlanInput(p)
}

type promoRequest struct {
	Code    *string `json:"code"`
	MaxUses *int    `json:"max_uses"`
	Uses    *int    `json:"uses"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// idParam parses the {id} route parameter, writing the error response itself
// when it is malformed.
func (s *Server) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return 0, false
	}
	return id, true
}

// reply writes v with status, or the mapped error.
func (s *Server) reply(w http.ResponseWriter, r *http.Request, status int, v any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if v == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) handleAdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.svc.Plans.List(r.Context(), false)
	s.reply(w, r, http.StatusOK, plans, err)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := s.svc.Plans.Create(r.Context(), req.createInput())
	s.reply(w, r, http.StatusCreated, plan, err)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	var req planRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := s.svc.Plans.Update(r.Context(), id, req.updateInput())
	s.reply(w, r, http.StatusOK, plan, err)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.idParam(w, r); ok {
		s.reply(w, r, http.StatusNoContent, nil, s.svc.Plans.Delete(r.Context(), id))
	}
}

func (s *Server) handleListPromos(w http.ResponseWriter, r *http.Request) {
	promos, err := s.svc.Promos.List(r.Context())
	s.reply(w, r, http.StatusOK, promos, err)
}

func (s *Server) handleCreatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	promo, err := s.svc.Promos.Create(r.Context(), deref(req.Code), deref(req.MaxUses))
	s.reply(w, r, http.StatusCreated, promo, err)
}

func (s *Server) handleUpdatePromo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	var req promoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	promo, err := s.svc.Promos.Update(r.Context(), id, service.PromoInput(req))
	s.reply(w, r, http.StatusOK, promo, err)
}

func (s *Server) handleDeletePromo(w http.ResponseWriter, r *http.Request) {
	if id, ok := s.idParam(w, r); ok {
		s.reply(w, r, http.StatusNoContent, nil, s.svc.Promos.Delete(r.Context(), id))
	}
}

func (s *Server) handleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := s.svc.Profiles.AddCredits(r.Context(), chi.URLParam(r, "id"), req.Delta)
	if err == nil {
		s.log.Info("credits adjusted by admin", "user", profile.ID, "delta", req.Delta)
	}
	s.reply(w, r, http.StatusOK, profile, err)
}
