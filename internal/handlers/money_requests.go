package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/internal/usecases"
)

func (h *HTTPHandler) SubmitRecharge(w http.ResponseWriter, r *http.Request) {
	var in usecases.SubmitRecharge
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	req, err := h.recharges.Submit(r.Context(), currentSession(r).UserID, in)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusCreated, req)
}

func (h *HTTPHandler) GetUserRecharges(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.recharges.ListForUser(r.Context(), currentSession(r).UserID)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, reqs)
}

func statusTab(r *http.Request) (entities.StatusTab, error) {
	tab, ok := entities.ParseStatusTab(r.URL.Query().Get("tab"))
	if !ok {
		return "", apperrors.BadRequest(apperrors.WithMessage("tab must be Pending, Approved or Rejected"))
	}
	return tab, nil
}

// ListMoneyRequests lists the requests under one review tab, newest first.
func (h *HTTPHandler) ListMoneyRequests(w http.ResponseWriter, r *http.Request) {
	tab, err := statusTab(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	reqs, err := h.recharges.ListForAdmin(r.Context(), tab)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, reqs)
}

// MoneyRequestsOverview serves the review board. cached=true returns the last
// loaded board with server-side changes patched in.
func (h *HTTPHandler) MoneyRequestsOverview(w http.ResponseWriter, r *http.Request) {
	tab, err := statusTab(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	useCache, _ := strconv.ParseBool(r.URL.Query().Get("cached"))

	overview, err := h.recharges.Overview(r.Context(), tab, useCache)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, overview)
}

func (h *HTTPHandler) ApproveMoneyRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ConfirmMismatch bool `json:"confirmMismatch"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	req, err := h.recharges.Approve(r.Context(), currentSession(r).UserID, mux.Vars(r)["id"], in.ConfirmMismatch)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, req)
}

func (h *HTTPHandler) RejectMoneyRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	req, err := h.recharges.Reject(r.Context(), currentSession(r).UserID, mux.Vars(r)["id"], in.Reason)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, req)
}

func (h *HTTPHandler) ReverifyMoneyRequest(w http.ResponseWriter, r *http.Request) {
	res, err := h.recharges.Reverify(r.Context(), currentSession(r).UserID, mux.Vars(r)["id"])
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, res)
}
