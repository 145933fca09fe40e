package handlers

import (
	"net/http"
	"strconv"

	"github.com/sand/digiseba/backend/internal/usecases"
)

const defaultSMSListLimit = 100

// IncomingSMS accepts a payment SMS from the forwarder device. A repeated
// transaction id is answered with 200 and the stored record.
func (h *HTTPHandler) IncomingSMS(w http.ResponseWriter, r *http.Request) {
	var in usecases.IncomingSMS
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	record, created, err := h.sms.Ingest(r.Context(), in)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(h.logger, w, status, record)
}

func (h *HTTPHandler) ListSMS(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultSMSListLimit
	}

	records, err := h.sms.List(r.Context(), limit)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, records)
}
