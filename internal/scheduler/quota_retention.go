package scheduler

import (
	"context"
	"log/slog"
	"time"

	"outreach_backend/internal/outreach/quota"
	"outreach_backend/platform/logger"
)

const defaultQuotaCleanupInterval = 24 * time.Hour

// QuotaRetention periodically removes quota rows for days long past. Spent
// quota carries no invariant once its day is over; the table only needs
// enough history for the stats endpoint.
type QuotaRetention struct {
	ledger    *quota.PostgresLedger
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
}

func NewQuotaRetention(ledger *quota.PostgresLedger, log *logger.Logger, retention time.Duration) *QuotaRetention {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	return &QuotaRetention{
		ledger:    ledger,
		log:       log,
		interval:  defaultQuotaCleanupInterval,
		retention: retention,
	}
}

func (c *QuotaRetention) Run(ctx context.Context) {
	if c == nil || c.ledger == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *QuotaRetention) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-c.retention)

	deleted, err := c.ledger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		c.log.Warn("quota retention cleanup failed", "error", err)
		return
	}

	if deleted > 0 {
		c.log.Info("quota retention cleanup removed rows", slog.Int64("deleted", deleted))
	}
}
