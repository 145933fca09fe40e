package workers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sand/digiseba/backend/internal/core/ports"
)

// VerificationPool matches money requests against SMS records on a bounded
// number of goroutines. Request ids wait in a buffered queue.
type VerificationPool struct {
	logger  *slog.Logger
	workers int
	queue   chan string

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewVerificationPool(logger *slog.Logger, workers, queueSize int) *VerificationPool {
	if workers < 1 {
		workers = ports.DefaultVerificationWorkers
	}
	if queueSize < 1 {
		queueSize = ports.DefaultVerificationQueue
	}
	return &VerificationPool{
		logger:  logger,
		workers: workers,
		queue:   make(chan string, queueSize),
		pending: make(map[string]struct{}),
	}
}

// Enqueue never blocks. It reports false when the queue is full; ids already
// waiting in the queue are accepted without being queued twice.
func (p *VerificationPool) Enqueue(requestID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.pending[requestID]; ok {
		return true
	}

	select {
	case p.queue <- requestID:
		p.pending[requestID] = struct{}{}
		return true
	default:
		p.logger.Warn("Verification queue is full", "request_id", requestID, "size", cap(p.queue))
		return false
	}
}

// Start runs the workers until ctx is done and returns once all of them
// have stopped.
func (p *VerificationPool) Start(ctx context.Context, verifier RequestVerifier) {
	p.logger.Info("Starting verification workers", "workers", p.workers, "queue_size", cap(p.queue))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.run(ctx, worker, verifier)
		}(i)
	}
	wg.Wait()

	p.logger.Info("Verification workers stopped")
}

func (p *VerificationPool) run(ctx context.Context, worker int, verifier RequestVerifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.mu.Lock()
			delete(p.pending, id)
			p.mu.Unlock()

			if err := verifier.VerifyRequest(ctx, id); err != nil {
				p.logger.Error("Verification failed", "worker", worker, "request_id", id, "error", err)
			}
		}
	}
}
