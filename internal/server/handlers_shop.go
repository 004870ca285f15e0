package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imagine-it/storefront/internal/auth"
	"github.com/imagine-it/storefront/internal/models"
	"github.com/imagine-it/storefront/internal/service"
)

func (s *Server) handleViewCart(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Carts.View(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartResponse(view))
}

type addCartItemRequest struct {
	ProductID  int64                  `json:"product_id"`
	VariantID  int64                  `json:"variant_id"`
	Technique  string                 `json:"technique"`
	Placements []models.CartPlacement `json:"placements"`
	Quantity   int                    `json:"quantity"`
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.svc.Carts.Add(r.Context(), auth.UserID(r.Context()), service.AddItemInput{
		ProductID:  req.ProductID,
		VariantID:  req.VariantID,
		Technique:  req.Technique,
		Placements: req.Placements,
		Quantity:   req.Quantity,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := s.svc.Carts.UpdateQuantity(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Carts.Remove(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Carts.Clear(r.Context(), auth.UserID(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	Recipient models.Recipient `json:"recipient"`
}

type checkoutResponse struct {
	Order      orderResponse `json:"order"`
	ApproveURL string        `json:"approve_url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Checkout.Start(r.Context(), auth.UserID(r.Context()), req.Recipient)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{Order: newOrderResponse(res.Order), ApproveURL: res.ApproveURL})
}

func (s *Server) handleCaptureOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.svc.Checkout.Capture(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.svc.Checkout.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMockup(w http.ResponseWriter, r *http.Request) {
	var req service.MockupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	taskID, err := s.svc.Mockups.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"task_id": taskID})
}

// handleMockupStatus returns the task state; ?wait=true blocks until it settles.
func (s *Server) handleMockupStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseID(chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lookup := s.svc.Mockups.Status
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		lookup = s.svc.Mockups.Wait
	}
	task, err := lookup(r.Context(), taskID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
