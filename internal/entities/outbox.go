package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusProcessed  OutboxStatus = "PROCESSED"
	OutboxStatusFailed     OutboxStatus = "FAILED"
)

// Event types written to the outbox.
const (
	EventMoneyRequestApproved = "money_request.approved"
	EventMoneyRequestRejected = "money_request.rejected"
	EventOrderPlaced          = "order.placed"
	EventOrderCompleted       = "order.completed"
	EventOrderEmailRequested  = "order.email_requested"
	EventOrderRejected        = "order.rejected"
)

// MaxOutboxAttempts is how many publish failures an event survives before it
// is marked FAILED.
const MaxOutboxAttempts = 10

// OutboxEvent is written in the same transaction as the state change it
// announces and relayed to the broker later.
type OutboxEvent struct {
	ID          string       `json:"id" db:"id"`
	Type        string       `json:"type" db:"type"`
	AggregateID string       `json:"aggregateId" db:"aggregate_id"`
	Payload     string       `json:"payload" db:"payload"`
	Status      OutboxStatus `json:"status" db:"status"`
	Attempts    int          `json:"attempts" db:"attempts"`
	CreatedAt   time.Time    `json:"createdAt" db:"created_at"`
	ProcessedAt *time.Time   `json:"processedAt,omitempty" db:"processed_at"`
}

// NewOutboxEvent marshals payload into a pending event.
func NewOutboxEvent(eventType, aggregateID string, payload any) (*OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     string(body),
		Status:      OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
