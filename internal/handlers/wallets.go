package handlers

import "net/http"

// GetWallet returns the caller's balance and recent ledger entries.
func (h *HTTPHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	summary, err := h.wallets.Summary(r.Context(), currentSession(r).UserID)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, summary)
}
