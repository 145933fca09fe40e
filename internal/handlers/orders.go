package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/internal/usecases"
)

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var in usecases.PlaceOrder
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	order, err := h.orders.Place(r.Context(), currentSession(r).UserID, in)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusCreated, order)
}

func (h *HTTPHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForUser(r.Context(), currentSession(r).UserID)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, orders)
}

// ListOrders lists all orders, optionally narrowed by ?status=.
func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *entities.OrderStatus
	switch s := entities.OrderStatus(r.URL.Query().Get("status")); s {
	case "":
	case entities.OrderStatusPending, entities.OrderStatusCompleted, entities.OrderStatusRejected:
		status = &s
	default:
		writeError(h.logger, w, r, apperrors.BadRequest(apperrors.WithMessage("status must be pending, completed or rejected")))
		return
	}

	orders, err := h.orders.ListForAdmin(r.Context(), status)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, orders)
}

func (h *HTTPHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PDFURL string `json:"pdfUrl"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	order, err := h.orders.Complete(r.Context(), currentSession(r).UserID, mux.Vars(r)["id"], in.PDFURL)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, order)
}

func (h *HTTPHandler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	order, err := h.orders.Reject(r.Context(), currentSession(r).UserID, mux.Vars(r)["id"], in.Reason)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, order)
}
