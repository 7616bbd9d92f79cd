package scheduler

import (
	"context"
	"log/slog"
	"time"

	leadsrepo "outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach/quota"
	"outreach_backend/internal/outreach/window"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// OutreachDispatcher is the periodic scan that feeds the send queue. Each
// tick it selects due leads oldest first, drops the ones outside their local
// send window, caps the batch at the day's remaining quota, and enqueues one
// send task per lead. All gates are re-checked by the worker; the dispatcher
// only keeps the queue from flooding.
type OutreachDispatcher struct {
	enqueuer  SendEnqueuer
	repo      *leadsrepo.Repository
	ledger    quota.Ledger
	window    *window.Calculator
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

func NewOutreachDispatcher(cfg config.SchedulerConfig, enqueuer SendEnqueuer, repo *leadsrepo.Repository, ledger quota.Ledger, win *window.Calculator, log *logger.Logger) *OutreachDispatcher {
	interval := cfg.GetDispatchInterval()
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	batchSize := cfg.GetDispatchBatchSize()
	if batchSize < 1 {
		batchSize = 50
	}

	return &OutreachDispatcher{
		enqueuer:  enqueuer,
		repo:      repo,
		ledger:    ledger,
		window:    win,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

func (d *OutreachDispatcher) Run(ctx context.Context) {
	if d == nil || d.enqueuer == nil || d.repo == nil {
		return
	}

	d.tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *OutreachDispatcher) tick(ctx context.Context) {
	now := time.Now()
	d.log.JobStart("outreach_dispatch")

	remaining, err := d.ledger.Remaining(ctx, now)
	if err != nil {
		d.log.JobError("outreach_dispatch", err)
		return
	}

	var enqueued, deduped, skippedWindow, skippedQuota int

	if remaining > 0 {
		leads, err := d.repo.DueForSend(ctx, now, d.batchSize)
		if err != nil {
			d.log.JobError("outreach_dispatch", err)
			return
		}

		for _, lead := range leads {
			stage, ok := lead.Snapshot().NextStage()
			if !ok {
				continue
			}

			if !d.window.Within(lead.Country(), now) {
				skippedWindow++
				continue
			}

			if enqueued >= remaining {
				skippedQuota++
				continue
			}

			queued, err := d.enqueuer.EnqueueSend(ctx, OutreachSendPayload{
				LeadID: lead.ID.String(),
				Stage:  string(stage),
			}, now)
			if err != nil {
				d.log.JobError("outreach_dispatch", err)
				continue
			}
			if queued {
				enqueued++
			} else {
				deduped++
			}
		}
	}

	d.log.JobEnd("outreach_dispatch",
		slog.Int("enqueued", enqueued),
		slog.Int("deduped", deduped),
		slog.Int("skipped_window", skippedWindow),
		slog.Int("skipped_quota", skippedQuota),
		slog.Int("quota_remaining", remaining),
	)
}
