package workers

import (
	"context"
	"log/slog"
	"time"
)

// VerificationSweeper periodically re-queues requests that have no outcome
// yet or whose SMS was not found, so late SMS still get matched.
type VerificationSweeper struct {
	logger   *slog.Logger
	requeuer AwaitingRequeuer

	// How many requests one sweep may re-queue
	batchSize int

	// How often to sweep
	interval time.Duration
}

func NewVerificationSweeper(
	logger *slog.Logger,
	requeuer AwaitingRequeuer,
	batchSize int,
	interval time.Duration,
) *VerificationSweeper {
	return &VerificationSweeper{
		logger:    logger,
		requeuer:  requeuer,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (vs *VerificationSweeper) Start(ctx context.Context) {
	vs.logger.Info("Starting verification sweeper", "interval", vs.interval.String(), "batch_size", vs.batchSize)

	if err := vs.sweep(ctx); err != nil {
		vs.logger.Error("Initial verification sweep failed", "error", err)
	}

	ticker := time.NewTicker(vs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			vs.logger.Info("Verification sweeper stopped")
			return
		case <-ticker.C:
			if err := vs.sweep(ctx); err != nil {
				vs.logger.Error("Verification sweep failed", "error", err)
			}
		}
	}
}

func (vs *VerificationSweeper) sweep(ctx context.Context) error {
	count, err := vs.requeuer.RequeueAwaiting(ctx, vs.batchSize)
	if err != nil {
		return err
	}

	if count > 0 {
		vs.logger.Info("Re-queued requests awaiting an SMS", "count", count)
	} else {
		vs.logger.Debug("No requests awaiting an SMS")
	}

	return nil
}
