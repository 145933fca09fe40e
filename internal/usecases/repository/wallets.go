package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/pkg/database"
)

// WalletsRepository stores the wallet ledger. A balance is the sum of the
// user's entries.
type WalletsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewWalletsRepository(logger *slog.Logger, pg *database.Postgres) *WalletsRepository {
	return &WalletsRepository{logger: logger, db: pg.DBGetter}
}

// LockWallet locks the owning users row. Postgres refuses FOR UPDATE on an
// aggregate, so the user row stands in for the wallet.
func (r *WalletsRepository) LockWallet(ctx context.Context, userID int64) error {
	var id int64
	err := r.db(ctx).QueryRow(ctx, "SELECT id FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock wallet of user %d: %w", userID, err)
	}
	return nil
}

func (r *WalletsRepository) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db(ctx).QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM wallet_transactions WHERE user_id = $1", userID,
	).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum wallet of user %d: %w", userID, err)
	}
	return balance, nil
}

func (r *WalletsRepository) InsertWalletEntry(ctx context.Context, entry *entities.WalletEntry) (bool, error) {
	err := r.db(ctx).QueryRow(ctx, `
		INSERT INTO wallet_transactions (user_id, type, amount, balance_after, reference_type, reference_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reference_type, reference_id) DO NOTHING
		RETURNING id, created_at`,
		entry.UserID, entry.Type, entry.Amount, entry.BalanceAfter, entry.ReferenceType, entry.ReferenceID, entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert wallet entry: %w", err)
	}
	return true, nil
}

func (r *WalletsRepository) ListWalletEntries(ctx context.Context, userID int64, limit int) ([]entities.WalletEntry, error) {
	rows, err := r.db(ctx).Query(ctx, `
		SELECT id, user_id, type, amount, balance_after, reference_type, reference_id, notes, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.WalletEntry])
	if err != nil {
		r.logger.Error("failed to collect wallet entry rows", "error", err)
		return nil, err
	}
	return entries, nil
}
