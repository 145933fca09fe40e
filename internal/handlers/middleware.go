package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sand/digiseba/backend/internal/auth"
	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
)

const smsTokenHeader = "X-SMS-Token"

// authenticate places the session from the bearer token into the request
// context.
func (h *HTTPHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(h.logger, w, r, apperrors.Unauthorized(apperrors.WithMessage("missing bearer token")))
			return
		}

		session, err := h.tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			writeError(h.logger, w, r, apperrors.Unauthorized(apperrors.WithError(err)))
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
	})
}

func (h *HTTPHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := auth.SessionFromContext(r.Context())
		if !ok || !session.IsAdmin() {
			writeError(h.logger, w, r, apperrors.Forbidden(apperrors.WithMessage("admin access required")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireSMSToken guards the SMS forwarder endpoint with a shared secret.
func (h *HTTPHandler) requireSMSToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(smsTokenHeader)
		if h.smsToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.smsToken)) != 1 {
			writeError(h.logger, w, r, apperrors.Unauthorized(apperrors.WithMessage("invalid sms token")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentSession(r *http.Request) auth.Session {
	s, _ := auth.SessionFromContext(r.Context())
	return s
}
