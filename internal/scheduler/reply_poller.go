package scheduler

import (
	"context"
	"log/slog"
	"time"

	"outreach_backend/internal/outreach"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// ReplyPoller periodically runs a mailbox scan for replies to open threads.
// Registration is idempotent, so re-seeing a reply on the next poll is
// harmless.
type ReplyPoller struct {
	check    *outreach.ReplyCheck
	interval time.Duration
	log      *logger.Logger
}

func NewReplyPoller(cfg config.SchedulerConfig, check *outreach.ReplyCheck, log *logger.Logger) *ReplyPoller {
	interval := cfg.GetReplyPollInterval()
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &ReplyPoller{
		check:    check,
		interval: interval,
		log:      log,
	}
}

func (p *ReplyPoller) Run(ctx context.Context) {
	if p == nil || p.check == nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *ReplyPoller) tick(ctx context.Context) {
	result, err := p.check.Run(ctx)
	if err != nil {
		p.log.JobError("reply_poll", err)
		return
	}

	if result.Replies > 0 {
		p.log.JobEnd("reply_poll",
			slog.Int("open_threads", result.OpenThreads),
			slog.Int("replies", result.Replies),
			slog.Int("registered", result.Registered),
		)
	}
}
