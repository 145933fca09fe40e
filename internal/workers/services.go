package workers

import "context"

// RequestVerifier runs one background SMS match attempt for a request.
type RequestVerifier interface {
	VerifyRequest(ctx context.Context, id string) error
}

// AwaitingRequeuer hands requests still waiting for an SMS back to the queue.
type AwaitingRequeuer interface {
	RequeueAwaiting(ctx context.Context, limit int) (int, error)
}
