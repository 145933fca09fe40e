package handlers

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks -source=services.go

import (
	"context"

	"github.com/sand/digiseba/backend/internal/auth"
	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/internal/usecases"
)

var (
	_ RechargeService = (*usecases.RechargeService)(nil)
	_ SMSService      = (*usecases.SMSService)(nil)
	_ WalletService   = (*usecases.WalletService)(nil)
	_ UserService     = (*usecases.UserService)(nil)
	_ SettingsService = (*usecases.SettingsService)(nil)
	_ OrderService    = (*usecases.OrderService)(nil)
	_ TokenValidator  = (*auth.Tokens)(nil)
)

type RechargeService interface {
	Submit(ctx context.Context, userID int64, in usecases.SubmitRecharge) (*entities.MoneyRequest, error)
	ListForUser(ctx context.Context, userID int64) ([]entities.MoneyRequest, error)
	ListForAdmin(ctx context.Context, tab entities.StatusTab) ([]entities.MoneyRequest, error)
	Overview(ctx context.Context, tab entities.StatusTab, useCache bool) (*usecases.Overview, error)
	Approve(ctx context.Context, reviewerID int64, id string, confirmMismatch bool) (*entities.MoneyRequest, error)
	Reject(ctx context.Context, reviewerID int64, id, reason string) (*entities.MoneyRequest, error)
	Reverify(ctx context.Context, reviewerID int64, id string) (*usecases.ReverifyResult, error)
}

type SMSService interface {
	Ingest(ctx context.Context, in usecases.IncomingSMS) (*entities.SMSRecord, bool, error)
	List(ctx context.Context, limit int) ([]entities.SMSRecord, error)
}

type WalletService interface {
	Summary(ctx context.Context, userID int64) (*entities.WalletSummary, error)
}

type UserService interface {
	Register(ctx context.Context, in usecases.Registration) (*usecases.LoginResult, error)
	Login(ctx context.Context, email, password string) (*usecases.LoginResult, error)
	Me(ctx context.Context, userID int64) (*entities.User, error)
	List(ctx context.Context, page, limit int) (*usecases.UserPage, error)
}

type SettingsService interface {
	Get(ctx context.Context) (*entities.Settings, error)
	Update(ctx context.Context, settings *entities.Settings) (*entities.Settings, error)
}

type OrderService interface {
	Place(ctx context.Context, userID int64, in usecases.PlaceOrder) (*entities.Order, error)
	Complete(ctx context.Context, adminID int64, id, pdfURL string) (*entities.Order, error)
	Reject(ctx context.Context, adminID int64, id, reason string) (*entities.Order, error)
	ListForUser(ctx context.Context, userID int64) ([]entities.Order, error)
	ListForAdmin(ctx context.Context, status *entities.OrderStatus) ([]entities.Order, error)
}

// TokenValidator turns a bearer token into a session.
type TokenValidator interface {
	ValidateToken(token string) (auth.Session, error)
}
