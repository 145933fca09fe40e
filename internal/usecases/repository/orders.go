package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/pkg/database"
)

const orderColumns = `id, user_id, kind, nid, phone, note, price, email_delivery, delivery_email, status, pdf_url,
	rejection_reason, created_at, updated_at`

type OrdersRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewOrdersRepository(logger *slog.Logger, pg *database.Postgres) *OrdersRepository {
	return &OrdersRepository{logger: logger, db: pg.DBGetter}
}

func (r *OrdersRepository) InsertOrder(ctx context.Context, order *entities.Order) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO orders (id, user_id, kind, nid, phone, note, price, email_delivery, delivery_email, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.ID, order.UserID, order.Kind, order.NID, order.Phone, order.Note, order.Price, order.EmailDelivery,
		order.DeliveryEmail, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *OrdersRepository) FindOrder(ctx context.Context, id string) (*entities.Order, error) {
	return r.findOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

func (r *OrdersRepository) LockOrder(ctx context.Context, id string) (*entities.Order, error) {
	return r.findOne(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
}

func (r *OrdersRepository) findOne(ctx context.Context, query string, args ...any) (*entities.Order, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	order, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.Order])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect order: %w", err)
	}
	return &order, nil
}

func (r *OrdersRepository) UpdateOrder(ctx context.Context, order *entities.Order) error {
	_, err := r.db(ctx).Exec(ctx, `
		UPDATE orders SET status = $2, pdf_url = $3, rejection_reason = $4, updated_at = $5
		WHERE id = $1`,
		order.ID, order.Status, order.PDFURL, order.RejectionReason, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	return nil
}

func (r *OrdersRepository) ListOrders(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	query := psql.Select(orderColumns).From("orders").OrderBy("created_at DESC")
	if filter.UserID != nil {
		query = query.Where(sq.Eq{"user_id": *filter.UserID})
	}
	if filter.Status != nil {
		query = query.Where(sq.Eq{"status": string(*filter.Status)})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Order])
	if err != nil {
		r.logger.Error("failed to collect orders rows", "error", err)
		return nil, err
	}
	return orders, nil
}
