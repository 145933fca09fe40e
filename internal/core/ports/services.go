package ports

//go:generate mockgen -destination=mocks/mock_outbox.go -package=mocks . OutboxRepository,EventPublisher

import (
	"context"

	"github.com/sand/digiseba/backend/internal/entities"
)

// Transactor runs fn in a database transaction carried by ctx. Nested calls
// join the outer transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher delivers outbox events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event *entities.OutboxEvent) error
}

// VerificationQueue hands request ids to the background matcher. Enqueue
// never blocks and reports false when the queue is full.
type VerificationQueue interface {
	Enqueue(requestID string) bool
}
