package ports

import "time"

const (
	DefaultVerificationWorkers = 4               // Workers matching requests against SMS records
	DefaultVerificationQueue   = 256             // Buffered request ids waiting for a worker
	DefaultSweepInterval       = 2 * time.Minute // How often unmatched requests are re-queued
	DefaultOutboxInterval      = 5 * time.Second // How often the outbox is polled
	OutboxBatchSize            = 100
	SweepBatchSize             = 200
	RecentWalletEntries        = 50
)
