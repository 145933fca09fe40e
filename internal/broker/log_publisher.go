package broker

import (
	"context"
	"log/slog"

	"github.com/sand/digiseba/backend/internal/entities"
)

// LogEventPublisher logs events instead of sending them to a broker. It is
// used when no RabbitMQ URL is configured.
type LogEventPublisher struct {
	logger *slog.Logger
}

func NewLogEventPublisher(logger *slog.Logger) *LogEventPublisher {
	return &LogEventPublisher{logger: logger}
}

func (p *LogEventPublisher) Publish(ctx context.Context, event *entities.OutboxEvent) error {
	p.logger.InfoContext(ctx, "Event published",
		"event_id", event.ID,
		"event_type", event.Type,
		"aggregate_id", event.AggregateID,
		"payload", event.Payload,
	)
	return nil
}
