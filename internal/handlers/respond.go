package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}

// writeError answers {"error": message} with the exception's status code.
// Anything that is not an Exception is logged and reported as a 500.
func writeError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	ex := apperrors.As(err)
	if ex.Code >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(logger, w, ex.Code, errorResponse{Error: ex.Message, Details: ex.Details})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.BadRequest(apperrors.WithMessage(fmt.Sprintf("invalid request body: %v", err)), apperrors.WithCause(err))
	}
	return nil
}
