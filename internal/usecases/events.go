package usecases

import (
	"context"
	"fmt"

	"github.com/sand/digiseba/backend/internal/core/ports"
	"github.com/sand/digiseba/backend/internal/entities"
)

// recordEvent writes an outbox event in the caller's transaction.
func recordEvent(ctx context.Context, outbox ports.OutboxRepository, eventType, aggregateID string, payload any) error {
	event, err := entities.NewOutboxEvent(eventType, aggregateID, payload)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	if err = outbox.InsertOutbox(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}
