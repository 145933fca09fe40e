package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sand/digiseba/backend/internal/entities"
)

// Finders return (nil, nil) when no row matches. Lock* variants take a row
// lock and must run inside Transactor.WithinTransaction.

type MoneyRequestRepository interface {
	InsertMoneyRequest(ctx context.Context, req *entities.MoneyRequest) error
	FindMoneyRequest(ctx context.Context, id string) (*entities.MoneyRequest, error)
	LockMoneyRequest(ctx context.Context, id string) (*entities.MoneyRequest, error)
	UpdateMoneyRequest(ctx context.Context, req *entities.MoneyRequest) error
	ListMoneyRequests(ctx context.Context, filter entities.MoneyRequestFilter) ([]entities.MoneyRequest, error)
	// FindActiveByTransactionID returns non-rejected requests holding the id, oldest first.
	FindActiveByTransactionID(ctx context.Context, transactionID string) ([]entities.MoneyRequest, error)
	// ListAwaitingVerification returns open requests with no outcome or a Not Found outcome,
	// those with no outcome first.
	ListAwaitingVerification(ctx context.Context, limit int) ([]entities.MoneyRequest, error)
}

type SMSRepository interface {
	// InsertSMS reports false when an SMS with the same transaction id is already stored.
	InsertSMS(ctx context.Context, sms *entities.SMSRecord) (bool, error)
	FindSMSByTransactionID(ctx context.Context, transactionID string) (*entities.SMSRecord, error)
	MarkSMSConsumed(ctx context.Context, transactionID, requestID string) error
	ListSMS(ctx context.Context, limit int) ([]entities.SMSRecord, error)
}

type WalletRepository interface {
	// LockWallet serialises ledger writes for one user.
	LockWallet(ctx context.Context, userID int64) error
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	// InsertWalletEntry reports false when the reference was already booked.
	InsertWalletEntry(ctx context.Context, entry *entities.WalletEntry) (bool, error)
	ListWalletEntries(ctx context.Context, userID int64, limit int) ([]entities.WalletEntry, error)
}

type UserRepository interface {
	// InsertUser sets user.ID and returns entities.ErrEmailTaken on a duplicate email.
	InsertUser(ctx context.Context, user *entities.User) error
	FindUserByID(ctx context.Context, id int64) (*entities.User, error)
	FindUserByEmail(ctx context.Context, email string) (*entities.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]entities.User, int, error)
	UserNames(ctx context.Context) (map[int64]string, error)
}

type SettingsRepository interface {
	GetSettings(ctx context.Context) (*entities.Settings, error)
	SaveSettings(ctx context.Context, settings *entities.Settings) error
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, order *entities.Order) error
	FindOrder(ctx context.Context, id string) (*entities.Order, error)
	LockOrder(ctx context.Context, id string) (*entities.Order, error)
	UpdateOrder(ctx context.Context, order *entities.Order) error
	ListOrders(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error)
}

type OutboxRepository interface {
	InsertOutbox(ctx context.Context, event *entities.OutboxEvent) error
	// FetchPending claims up to limit PENDING events by marking them PROCESSING.
	FetchPending(ctx context.Context, limit int) ([]*entities.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	// MarkForRetry returns the event to PENDING, or FAILED once attempts reach the cap.
	MarkForRetry(ctx context.Context, id string) error
}
