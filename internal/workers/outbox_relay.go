package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/sand/digiseba/backend/internal/core/ports"
)

// OutboxRelay publishes committed outbox events. A failed publish puts the
// event back for a later poll until the attempt cap moves it to FAILED.
type OutboxRelay struct {
	logger    *slog.Logger
	outbox    ports.OutboxRepository
	publisher ports.EventPublisher
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(
	logger *slog.Logger,
	outbox ports.OutboxRepository,
	publisher ports.EventPublisher,
	interval time.Duration,
) *OutboxRelay {
	return &OutboxRelay{
		logger:    logger,
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: ports.OutboxBatchSize,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) {
	r.logger.InfoContext(ctx, "Outbox relay started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			r.process(ctx)
		}
	}
}

// process relays one batch and returns how many events were published.
func (r *OutboxRelay) process(ctx context.Context) int {
	events, err := r.outbox.FetchPending(ctx, r.batchSize)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to fetch pending events", "error", err)
		return 0
	}

	if len(events) == 0 {
		return 0
	}

	r.logger.DebugContext(ctx, "Processing outbox events", "count", len(events))

	published := 0
	for _, event := range events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish event",
				"event_id", event.ID,
				"event_type", event.Type,
				"attempts", event.Attempts+1,
				"error", err,
			)
			if err = r.outbox.MarkForRetry(ctx, event.ID); err != nil {
				r.logger.ErrorContext(ctx, "Failed to schedule event retry", "event_id", event.ID, "error", err)
			}
			continue
		}

		if err := r.outbox.MarkProcessed(ctx, event.ID); err != nil {
			r.logger.ErrorContext(ctx, "Failed to mark event as processed", "event_id", event.ID, "error", err)
			continue
		}
		published++
	}

	return published
}
