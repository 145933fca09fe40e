package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sand/digiseba/backend/internal/auth"
	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/internal/handlers"
	"github.com/sand/digiseba/backend/internal/handlers/mocks"
	"github.com/sand/digiseba/backend/internal/usecases"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"
	smsToken   = "forwarder-secret"
)

type fixture struct {
	recharges *mocks.MockRechargeService
	sms       *mocks.MockSMSService
	wallets   *mocks.MockWalletService
	users     *mocks.MockUserService
	settings  *mocks.MockSettingsService
	orders    *mocks.MockOrderService
	router    *mux.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	tokens := mocks.NewMockTokenValidator(ctrl)
	tokens.EXPECT().ValidateToken(userToken).Return(auth.Session{UserID: 7, Role: entities.RoleUser}, nil).AnyTimes()
	tokens.EXPECT().ValidateToken(adminToken).Return(auth.Session{UserID: 1, Role: entities.RoleAdmin}, nil).AnyTimes()
	tokens.EXPECT().ValidateToken(gomock.Any()).Return(auth.Session{}, auth.ErrInvalidToken).AnyTimes()

	f := &fixture{
		recharges: mocks.NewMockRechargeService(ctrl),
		sms:       mocks.NewMockSMSService(ctrl),
		wallets:   mocks.NewMockWalletService(ctrl),
		users:     mocks.NewMockUserService(ctrl),
		settings:  mocks.NewMockSettingsService(ctrl),
		orders:    mocks.NewMockOrderService(ctrl),
		router:    mux.NewRouter(),
	}

	h := handlers.NewHTTPHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), tokens, smsToken,
		f.recharges, f.sms, f.wallets, f.users, f.settings, f.orders)
	f.router.Use(handlers.MetricsMiddleware)
	h.RegisterRoutes(f.router)
	return f
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthGuards(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/wallet", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing bearer token", errorBody(t, rec)["error"])

	rec = f.do(http.MethodGet, "/api/wallet", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/api/admin/money-requests", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin access required", errorBody(t, rec)["error"])
}

func TestSubmitRecharge(t *testing.T) {
	f := newFixture(t)

	f.recharges.EXPECT().
		Submit(gomock.Any(), int64(7), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ int64, in usecases.SubmitRecharge) (*entities.MoneyRequest, error) {
			assert.Equal(t, "TXN001", in.TransactionID)
			assert.True(t, decimal.NewFromInt(1000).Equal(in.Amount))
			assert.Equal(t, "bKash", in.PaymentMethod)
			assert.Equal(t, "5678", in.SenderNumber)
			return &entities.MoneyRequest{ID: "req-1", Status: entities.RequestStatusPending}, nil
		})

	rec := f.do(http.MethodPost, "/api/wallet/recharge", userToken, map[string]any{
		"transactionId": "TXN001",
		"amount":        1000,
		"paymentMethod": "bKash",
		"senderNumber":  "5678",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got entities.MoneyRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "req-1", got.ID)
	assert.Equal(t, entities.RequestStatusPending, got.Status)
}

func TestSubmitRechargeErrorMessageIsVerbatim(t *testing.T) {
	f := newFixture(t)

	f.recharges.EXPECT().Submit(gomock.Any(), int64(7), gomock.Any()).
		Return(nil, apperrors.Conflict(apperrors.WithError(entities.ErrDuplicateTransaction)))

	rec := f.do(http.MethodPost, "/api/wallet/recharge", userToken, map[string]any{"transactionId": "TXN001"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "transaction id already used", errorBody(t, rec)["error"])
}

func TestInvalidBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec)["error"], "invalid request body")
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	f := newFixture(t)

	f.wallets.EXPECT().Summary(gomock.Any(), int64(7)).Return(nil, errors.New("connection reset by peer"))

	rec := f.do(http.MethodGet, "/api/wallet", userToken, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", errorBody(t, rec)["error"])
}

func TestApproveMismatchNeedsConfirmation(t *testing.T) {
	f := newFixture(t)

	mismatch := entities.Mismatch{
		AmountMatches: false,
		SenderMatches: true,
		Fields:        []entities.MismatchField{{Field: "amount", Declared: "500.00", Observed: "550.00"}},
	}
	f.recharges.EXPECT().Approve(gomock.Any(), int64(1), "req-1", false).
		Return(nil, apperrors.Conflict(apperrors.WithError(entities.ErrMismatchNotConfirmed), apperrors.WithDetails(mismatch)))
	f.recharges.EXPECT().Approve(gomock.Any(), int64(1), "req-1", true).
		Return(&entities.MoneyRequest{ID: "req-1", Status: entities.RequestStatusApproved}, nil)

	rec := f.do(http.MethodPost, "/api/admin/money-requests/req-1/approve", adminToken, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := errorBody(t, rec)
	details := body["details"].(map[string]any)
	assert.Equal(t, false, details["amountMatches"])
	assert.Len(t, details["fields"], 1)

	rec = f.do(http.MethodPost, "/api/admin/money-requests/req-1/approve", adminToken, map[string]bool{"confirmMismatch": true})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRejectAndReverify(t *testing.T) {
	f := newFixture(t)

	f.recharges.EXPECT().Reject(gomock.Any(), int64(1), "req-2", "wrong amount").
		Return(&entities.MoneyRequest{ID: "req-2", Status: entities.RequestStatusRejected}, nil)
	approved := entities.RequestStatusApproved
	verified := entities.VerificationVerified
	f.recharges.EXPECT().Reverify(gomock.Any(), int64(1), "req-3").
		Return(&usecases.ReverifyResult{RequestID: "req-3", NewStatus: &approved, VerificationStatus: &verified, Message: "verified and approved"}, nil)

	rec := f.do(http.MethodPost, "/api/admin/money-requests/req-2/reject", adminToken, map[string]string{"reason": "wrong amount"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/admin/money-requests/req-3/reverify", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, "Approved", body["newStatus"])
	assert.Equal(t, "Verified", body["verificationStatus"])
}

func TestListMoneyRequestsTab(t *testing.T) {
	f := newFixture(t)

	f.recharges.EXPECT().ListForAdmin(gomock.Any(), entities.TabApproved).Return([]entities.MoneyRequest{}, nil)
	f.recharges.EXPECT().Overview(gomock.Any(), entities.TabPending, true).Return(&usecases.Overview{Tab: entities.TabPending, Cached: true}, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/admin/money-requests?tab=approved", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/admin/money-requests?tab=archived", adminToken, nil).Code)

	rec := f.do(http.MethodGet, "/api/admin/money-requests/overview?cached=true", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, errorBody(t, rec)["cached"])
}

func TestListUsersPaging(t *testing.T) {
	f := newFixture(t)

	f.users.EXPECT().List(gomock.Any(), 2, 50).Return(&usecases.UserPage{Users: []entities.User{}, Page: entities.Page{Page: 2, Limit: 50}}, nil)
	f.users.EXPECT().List(gomock.Any(), 0, 0).Return(&usecases.UserPage{Users: []entities.User{}, Page: entities.Page{Page: 1, Limit: 20}}, nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/admin/users?page=2&limit=50", adminToken, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/admin/users", adminToken, nil).Code)
}

func TestIncomingSMSToken(t *testing.T) {
	f := newFixture(t)

	record := &entities.SMSRecord{ID: "s-1", TransactionID: "TXN001"}
	gomock.InOrder(
		f.sms.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(record, true, nil),
		f.sms.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(record, false, nil),
	)

	send := func(token string) int {
		body := bytes.NewBufferString(`{"sender":"bKash","body":"You have received Tk 1,000.00 from 01812345678. TrxID TXN001"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/sms/incoming", body)
		if token != "" {
			req.Header.Set("X-SMS-Token", token)
		}
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send("guess"))
	assert.Equal(t, http.StatusCreated, send(smsToken))
	assert.Equal(t, http.StatusOK, send(smsToken))
}

func TestOrders(t *testing.T) {
	f := newFixture(t)

	f.orders.EXPECT().Place(gomock.Any(), int64(7), usecases.PlaceOrder{Kind: entities.OrderCallList, Phone: "01711111111"}).
		Return(nil, apperrors.PaymentRequired(apperrors.WithError(entities.ErrInsufficientBalance)))
	completed := entities.OrderStatusCompleted
	f.orders.EXPECT().ListForAdmin(gomock.Any(), &completed).Return([]entities.Order{}, nil)
	f.orders.EXPECT().Complete(gomock.Any(), int64(1), "o-1", "https://files.example.com/r.pdf").
		Return(&entities.Order{ID: "o-1", Status: entities.OrderStatusCompleted}, nil)

	rec := f.do(http.MethodPost, "/api/orders", userToken, map[string]any{"kind": "call_list", "phone": "01711111111"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient wallet balance", errorBody(t, rec)["error"])

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/admin/orders?status=completed", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/admin/orders?status=lost", adminToken, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/admin/orders/o-1/complete", adminToken, map[string]string{"pdfUrl": "https://files.example.com/r.pdf"}).Code)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	settings := entities.DefaultSettings()
	f.settings.EXPECT().Get(gomock.Any()).Return(&settings, nil)
	f.settings.EXPECT().Update(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.BadRequest(apperrors.WithMessage("payment method \"x\": type must be Bkash, Nagad or Rocket")))

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/settings", "", nil).Code)

	rec := f.do(http.MethodPut, "/api/admin/settings", adminToken, map[string]any{
		"paymentMethods": []map[string]string{{"name": "x", "type": "Upay", "number": "1"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
