package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/pkg/database"
)

const moneyRequestColumns = `id, user_id, amount, payment_method, sender_number, transaction_id, status,
	verification_status, verification_attempts, sms_amount, sms_company, sms_sender_number,
	rejection_reason, reviewed_by, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// uniqueViolation is the SQLSTATE of unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

type MoneyRequestsRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewMoneyRequestsRepository(logger *slog.Logger, pg *database.Postgres) *MoneyRequestsRepository {
	return &MoneyRequestsRepository{logger: logger, db: pg.DBGetter}
}

func (r *MoneyRequestsRepository) InsertMoneyRequest(ctx context.Context, req *entities.MoneyRequest) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO money_requests (id, user_id, amount, payment_method, sender_number, transaction_id, status,
			verification_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.UserID, req.Amount, req.PaymentMethod, req.SenderNumber, req.TransactionID, req.Status,
		req.VerificationAttempts, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert money request: %w", err)
	}
	return nil
}

func (r *MoneyRequestsRepository) FindMoneyRequest(ctx context.Context, id string) (*entities.MoneyRequest, error) {
	return r.findOne(ctx, "SELECT "+moneyRequestColumns+" FROM money_requests WHERE id = $1", id)
}

func (r *MoneyRequestsRepository) LockMoneyRequest(ctx context.Context, id string) (*entities.MoneyRequest, error) {
	return r.findOne(ctx, "SELECT "+moneyRequestColumns+" FROM money_requests WHERE id = $1 FOR UPDATE", id)
}

func (r *MoneyRequestsRepository) findOne(ctx context.Context, query string, args ...any) (*entities.MoneyRequest, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query money request: %w", err)
	}

	req, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.MoneyRequest])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect money request: %w", err)
	}
	return &req, nil
}

func (r *MoneyRequestsRepository) UpdateMoneyRequest(ctx context.Context, req *entities.MoneyRequest) error {
	_, err := r.db(ctx).Exec(ctx, `
		UPDATE money_requests
		SET status = $2, verification_status = $3, verification_attempts = $4, sms_amount = $5, sms_company = $6,
			sms_sender_number = $7, rejection_reason = $8, reviewed_by = $9, updated_at = $10
		WHERE id = $1`,
		req.ID, req.Status, req.VerificationStatus, req.VerificationAttempts, req.SMSAmount, req.SMSCompany,
		req.SMSSenderNumber, req.RejectionReason, req.ReviewedBy, req.UpdatedAt,
	)
	if isUniqueViolation(err, "uq_money_requests_approved_txn") {
		return entities.ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to update money request %s: %w", req.ID, err)
	}
	return nil
}

func (r *MoneyRequestsRepository) ListMoneyRequests(ctx context.Context, filter entities.MoneyRequestFilter) ([]entities.MoneyRequest, error) {
	query := psql.Select(moneyRequestColumns).From("money_requests").OrderBy("created_at DESC", "id DESC")
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where(sq.Eq{"status": statuses})
	}
	if filter.UserID != nil {
		query = query.Where(sq.Eq{"user_id": *filter.UserID})
	}

	return r.list(ctx, query)
}

func (r *MoneyRequestsRepository) FindActiveByTransactionID(ctx context.Context, transactionID string) ([]entities.MoneyRequest, error) {
	query := psql.Select(moneyRequestColumns).From("money_requests").
		Where(sq.Eq{"transaction_id": transactionID}).
		Where(sq.NotEq{"status": string(entities.RequestStatusRejected)}).
		OrderBy("created_at ASC", "id ASC")

	return r.list(ctx, query)
}

func (r *MoneyRequestsRepository) ListAwaitingVerification(ctx context.Context, limit int) ([]entities.MoneyRequest, error) {
	query := psql.Select(moneyRequestColumns).From("money_requests").
		Where(sq.Eq{"status": []string{string(entities.RequestStatusPending), string(entities.RequestStatusVerifying)}}).
		Where(sq.Or{
			sq.Eq{"verification_status": nil},
			sq.Eq{"verification_status": string(entities.VerificationNotFound)},
		}).
		OrderBy("verification_status IS NOT NULL", "created_at ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	return r.list(ctx, query)
}

func (r *MoneyRequestsRepository) list(ctx context.Context, query sq.SelectBuilder) ([]entities.MoneyRequest, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build money requests query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query money requests: %w", err)
	}

	requests, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.MoneyRequest])
	if err != nil {
		r.logger.Error("failed to collect money request rows", "error", err)
		return nil, err
	}

	return requests, nil
}
