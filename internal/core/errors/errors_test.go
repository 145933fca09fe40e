package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := stderrors.New("request has already been processed")

	tests := []struct {
		name    string
		ex      *Exception
		code    int
		message string
	}{
		{"not found default", NotFound(), http.StatusNotFound, "no entities found with given parameters"},
		{"conflict with error", Conflict(WithError(cause)), http.StatusConflict, cause.Error()},
		{"payment required", PaymentRequired(WithMessage("insufficient wallet balance")), http.StatusPaymentRequired, "insufficient wallet balance"},
		{"unexpected hides cause", Unexpected(WithCause(cause)), http.StatusInternalServerError, "internal server error"},
		{"unprocessable", Unprocessable(), http.StatusUnprocessableEntity, "unprocessable entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, tt.ex.Code)
			require.Equal(t, tt.message, tt.ex.Error())
		})
	}
}

func TestAs(t *testing.T) {
	cause := stderrors.New("boom")
	ex := As(fmt.Errorf("failed to approve: %w", Conflict(WithError(cause))))
	require.Equal(t, http.StatusConflict, ex.Code)
	require.ErrorIs(t, ex, cause)

	ex = As(cause)
	require.Equal(t, http.StatusInternalServerError, ex.Code)
	require.ErrorIs(t, ex, cause)
}
