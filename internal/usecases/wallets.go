package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	apperrors "github.com/sand/digiseba/backend/internal/core/errors"
	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

// WalletService books ledger entries. Every entry carries a reference, and a
// reference is booked at most once.
type WalletService struct {
	logger     *slog.Logger
	repo       ports.WalletRepository
	transactor ports.Transactor
}

func NewWalletService(logger *slog.Logger, repo ports.WalletRepository, transactor ports.Transactor) *WalletService {
	return &WalletService{logger: logger, repo: repo, transactor: transactor}
}

// LedgerEntry describes one booking. Debits carry a negative amount.
type LedgerEntry struct {
	UserID        int64
	Type          entities.EntryType
	Amount        decimal.Decimal
	ReferenceType string
	ReferenceID   string
	Notes         string
}

// Book writes the entry under the user's wallet lock. It reports false when
// the reference was already booked, and fails with ErrInsufficientBalance when
// a debit would overdraw the wallet.
func (s *WalletService) Book(ctx context.Context, in LedgerEntry) (*entities.WalletEntry, bool, error) {
	var (
		entry  *entities.WalletEntry
		booked bool
	)

	err := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockWallet(ctx, in.UserID); err != nil {
			return err
		}

		balance, err := s.repo.Balance(ctx, in.UserID)
		if err != nil {
			return err
		}

		after := balance.Add(in.Amount)
		if in.Amount.IsNegative() && after.IsNegative() {
			return entities.ErrInsufficientBalance
		}

		entry = &entities.WalletEntry{
			UserID:        in.UserID,
			Type:          in.Type,
			Amount:        in.Amount,
			BalanceAfter:  after,
			ReferenceType: in.ReferenceType,
			ReferenceID:   in.ReferenceID,
			Notes:         in.Notes,
		}
		booked, err = s.repo.InsertWalletEntry(ctx, entry)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if booked {
		s.logger.Info("Wallet entry booked",
			"user_id", in.UserID,
			"type", in.Type,
			"amount", in.Amount.String(),
			"balance_after", entry.BalanceAfter.String(),
			"reference", in.ReferenceType+":"+in.ReferenceID)
	} else {
		s.logger.Warn("Wallet reference already booked", "reference", in.ReferenceType+":"+in.ReferenceID)
	}

	return entry, booked, nil
}

func (s *WalletService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.repo.Balance(ctx, userID)
}

// Summary returns the balance and the most recent entries.
func (s *WalletService) Summary(ctx context.Context, userID int64) (*entities.WalletSummary, error) {
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListWalletEntries(ctx, userID, ports.RecentWalletEntries)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []entities.WalletEntry{}
	}

	return &entities.WalletSummary{UserID: userID, Balance: balance, Entries: entries}, nil
}

func walletException(err error) error {
	switch {
	case errors.Is(err, entities.ErrInsufficientBalance):
		return apperrors.PaymentRequired(apperrors.WithError(err))
	case errors.Is(err, entities.ErrUserNotFound):
		return apperrors.NotFound(apperrors.WithError(err))
	}
	return err
}
