package errors

import (
	stderrors "errors"
	"net/http"
)

type Exception struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	err error
}

func (e *Exception) Error() string {
	return e.Message
}

func (e *Exception) Unwrap() error {
	return e.err
}

type UserFriendlyExceptionOption func(*Exception)

func WithCode(code int) UserFriendlyExceptionOption {
	return func(h *Exception) {
		h.Code = code
	}
}

func WithMessage(message string) UserFriendlyExceptionOption {
	return func(h *Exception) {
		h.Message = message
	}
}

// WithError keeps err as the cause and uses its text as the message.
func WithError(err error) UserFriendlyExceptionOption {
	return func(h *Exception) {
		h.err = err
		h.Message = err.Error()
	}
}

// WithCause keeps err as the cause without exposing it to the client.
func WithCause(err error) UserFriendlyExceptionOption {
	return func(h *Exception) {
		h.err = err
	}
}

func WithDetails(details any) UserFriendlyExceptionOption {
	return func(h *Exception) {
		h.Details = details
	}
}

func NotFound(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusNotFound),
		WithMessage("no entities found with given parameters"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func BadRequest(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusBadRequest),
		WithMessage("bad request"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func Conflict(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusConflict),
		WithMessage("conflict"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func Unauthorized(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusUnauthorized),
		WithMessage("unauthorized"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func Forbidden(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusForbidden),
		WithMessage("forbidden"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func PaymentRequired(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusPaymentRequired),
		WithMessage("payment required"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func Unprocessable(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusUnprocessableEntity),
		WithMessage("unprocessable entity"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func Unexpected(opts ...UserFriendlyExceptionOption) *Exception {
	defaultOpts := []UserFriendlyExceptionOption{
		WithCode(http.StatusInternalServerError),
		WithMessage("internal server error"),
	}
	return UserFriendlyException(append(defaultOpts, opts...)...)
}

func UserFriendlyException(opts ...UserFriendlyExceptionOption) *Exception {
	h := &Exception{
		Code:    http.StatusInternalServerError,
		Message: "internal server error",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// As returns the Exception in err's chain, or an Unexpected one wrapping err.
func As(err error) *Exception {
	var ex *Exception
	if stderrors.As(err, &ex) {
		return ex
	}
	return Unexpected(WithCause(err))
}
