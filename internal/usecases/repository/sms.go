package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/pkg/database"
)

const smsColumns = `id, provider, sender, body, transaction_id, amount, sender_number, received_at, consumed_by, created_at`

type SMSRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewSMSRepository(logger *slog.Logger, pg *database.Postgres) *SMSRepository {
	return &SMSRepository{logger: logger, db: pg.DBGetter}
}

func (r *SMSRepository) InsertSMS(ctx context.Context, sms *entities.SMSRecord) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, `
		INSERT INTO sms_records (id, provider, sender, body, transaction_id, amount, sender_number, received_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (transaction_id) DO NOTHING`,
		sms.ID, sms.Provider, sms.Sender, sms.Body, sms.TransactionID, sms.Amount, sms.SenderNumber,
		sms.ReceivedAt, sms.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert sms: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SMSRepository) FindSMSByTransactionID(ctx context.Context, transactionID string) (*entities.SMSRecord, error) {
	rows, err := r.db(ctx).Query(ctx, "SELECT "+smsColumns+" FROM sms_records WHERE transaction_id = $1", transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sms: %w", err)
	}

	sms, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.SMSRecord])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect sms: %w", err)
	}
	return &sms, nil
}

// MarkSMSConsumed links the SMS to the approved request. An SMS already
// consumed by a different request is a duplicate use.
func (r *SMSRepository) MarkSMSConsumed(ctx context.Context, transactionID, requestID string) error {
	tag, err := r.db(ctx).Exec(ctx, `
		UPDATE sms_records SET consumed_by = $2
		WHERE transaction_id = $1 AND (consumed_by IS NULL OR consumed_by = $2)`,
		transactionID, requestID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark sms consumed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.db(ctx).QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM sms_records WHERE transaction_id = $1)", transactionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check sms: %w", err)
	}
	if exists {
		return entities.ErrDuplicateTransaction
	}
	return nil
}

func (r *SMSRepository) ListSMS(ctx context.Context, limit int) ([]entities.SMSRecord, error) {
	rows, err := r.db(ctx).Query(ctx, "SELECT "+smsColumns+" FROM sms_records ORDER BY received_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sms records: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.SMSRecord])
	if err != nil {
		r.logger.Error("failed to collect sms rows", "error", err)
		return nil, err
	}
	return records, nil
}
