package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/pkg/database"
)

type OutboxRepository struct {
	logger     *slog.Logger
	db         tx.DBGetter
	transactor database.Transactor
}

func NewOutboxRepository(logger *slog.Logger, pg *database.Postgres) *OutboxRepository {
	return &OutboxRepository{logger: logger, db: pg.DBGetter, transactor: pg.Transactor}
}

func (r *OutboxRepository) InsertOutbox(ctx context.Context, event *entities.OutboxEvent) error {
	_, err := r.db(ctx).Exec(ctx, `
		INSERT INTO outbox (id, type, aggregate_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Type, event.AggregateID, event.Payload, event.Status, event.Attempts, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchPending claims PENDING events and marks them PROCESSING. SKIP LOCKED
// lets several relays run side by side.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*entities.OutboxEvent, error) {
	var events []*entities.OutboxEvent

	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		rows, err := r.db(ctx).Query(ctx, `
			SELECT id, type, aggregate_id, payload::text AS payload, status, attempts, created_at, processed_at
			FROM outbox
			WHERE status = 'PENDING'
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, limit)
		if err != nil {
			return fmt.Errorf("failed to query pending events: %w", err)
		}

		events, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[entities.OutboxEvent])
		if err != nil {
			return fmt.Errorf("failed to collect pending events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		ids := make([]string, 0, len(events))
		for _, e := range events {
			ids = append(ids, e.ID)
			e.Status = entities.OutboxStatusProcessing
		}

		_, err = r.db(ctx).Exec(ctx, "UPDATE outbox SET status = 'PROCESSING' WHERE id = ANY($1)", ids)
		if err != nil {
			return fmt.Errorf("failed to claim pending events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db(ctx).Exec(ctx,
		"UPDATE outbox SET status = 'PROCESSED', processed_at = $1 WHERE id = $2", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event %s processed: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) MarkForRetry(ctx context.Context, id string) error {
	_, err := r.db(ctx).Exec(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= $2 THEN 'FAILED' ELSE 'PENDING' END
		WHERE id = $1`, id, entities.MaxOutboxAttempts)
	if err != nil {
		return fmt.Errorf("failed to schedule retry of event %s: %w", id, err)
	}
	return nil
}
