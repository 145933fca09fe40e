package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/internal/usecases"
)

type HTTPHandler struct {
	logger    *slog.Logger
	tokens    TokenValidator
	smsToken  string
	recharges RechargeService
	sms       SMSService
	wallets   WalletService
	users     UserService
	settings  SettingsService
	orders    OrderService
}

func NewHTTPHandler(
	logger *slog.Logger,
	tokens TokenValidator,
	smsToken string,
	recharges RechargeService,
	sms SMSService,
	wallets WalletService,
	users UserService,
	settings SettingsService,
	orders OrderService,
) *HTTPHandler {
	return &HTTPHandler{
		logger:    logger,
		tokens:    tokens,
		smsToken:  smsToken,
		recharges: recharges,
		sms:       sms,
		wallets:   wallets,
		users:     users,
		settings:  settings,
		orders:    orders,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()
	user := func(fn http.HandlerFunc) http.Handler { return h.authenticate(fn) }

	// Auth
	api.HandleFunc("/auth/register", h.Register).Methods("POST")
	api.HandleFunc("/auth/login", h.Login).Methods("POST")
	api.Handle("/auth/me", user(h.Me)).Methods("GET")

	// Settings
	api.HandleFunc("/settings", h.GetSettings).Methods("GET")

	// SMS forwarder
	api.Handle("/sms/incoming", h.requireSMSToken(http.HandlerFunc(h.IncomingSMS))).Methods("POST")

	// Wallet
	api.Handle("/wallet", user(h.GetWallet)).Methods("GET")
	api.Handle("/wallet/recharges", user(h.GetUserRecharges)).Methods("GET")
	api.Handle("/wallet/recharge", user(h.SubmitRecharge)).Methods("POST")

	// Orders
	api.Handle("/orders", user(h.GetUserOrders)).Methods("GET")
	api.Handle("/orders", user(h.PlaceOrder)).Methods("POST")

	// Admin
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.authenticate, h.requireAdmin)

	admin.HandleFunc("/users", h.ListUsers).Methods("GET")
	admin.HandleFunc("/settings", h.UpdateSettings).Methods("PUT")
	admin.HandleFunc("/sms", h.ListSMS).Methods("GET")

	admin.HandleFunc("/money-requests", h.ListMoneyRequests).Methods("GET")
	admin.HandleFunc("/money-requests/overview", h.MoneyRequestsOverview).Methods("GET")
	admin.HandleFunc("/money-requests/{id}/approve", h.ApproveMoneyRequest).Methods("POST")
	admin.HandleFunc("/money-requests/{id}/reject", h.RejectMoneyRequest).Methods("POST")
	admin.HandleFunc("/money-requests/{id}/reverify", h.ReverifyMoneyRequest).Methods("POST")

	admin.HandleFunc("/orders", h.ListOrders).Methods("GET")
	admin.HandleFunc("/orders/{id}/complete", h.CompleteOrder).Methods("POST")
	admin.HandleFunc("/orders/{id}/reject", h.RejectOrder).Methods("POST")
}

func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in usecases.Registration
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	res, err := h.users.Register(r.Context(), in)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusCreated, res)
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	res, err := h.users.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, res)
}

func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), currentSession(r).UserID)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, user)
}

// ListUsers returns one page of users; page and limit default to 1 and 20.
func (h *HTTPHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	res, err := h.users.List(r.Context(), page, limit)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, res)
}

func (h *HTTPHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, settings)
}

func (h *HTTPHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in entities.Settings
	if err := decodeJSON(r, &in); err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	settings, err := h.settings.Update(r.Context(), &in)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}

	h.logger.Info("Settings updated", "admin_id", currentSession(r).UserID, "payment_methods", len(settings.PaymentMethods))
	writeJSON(h.logger, w, http.StatusOK, settings)
}
