package scheduler

import (
	"context"
	"log/slog"
	"time"

	leadsrepo "outreach_backend/internal/leads/repository"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// RetrySweep re-enqueues leads parked on a backoff once their retry instant
// passes. The main dispatcher would pick them up too on its next scan; the
// sweep exists so retries are not also delayed by the dispatch interval.
type RetrySweep struct {
	enqueuer    SendEnqueuer
	repo        *leadsrepo.Repository
	interval    time.Duration
	maxAttempts int
	batchSize   int
	log         *logger.Logger
}

func NewRetrySweep(cfg config.SchedulerConfig, outreachCfg config.OutreachConfig, enqueuer SendEnqueuer, repo *leadsrepo.Repository, log *logger.Logger) *RetrySweep {
	interval := cfg.GetRetrySweepInterval()
	if interval <= 0 {
		interval = time.Hour
	}
	batchSize := cfg.GetDispatchBatchSize()
	if batchSize < 1 {
		batchSize = 50
	}

	return &RetrySweep{
		enqueuer:    enqueuer,
		repo:        repo,
		interval:    interval,
		maxAttempts: outreachCfg.GetMaxRetryAttempts(),
		batchSize:   batchSize,
		log:         log,
	}
}

func (s *RetrySweep) Run(ctx context.Context) {
	if s == nil || s.enqueuer == nil || s.repo == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *RetrySweep) tick(ctx context.Context) {
	now := time.Now()

	leads, err := s.repo.DueForRetry(ctx, now, s.maxAttempts, s.batchSize)
	if err != nil {
		s.log.JobError("outreach_retry_sweep", err)
		return
	}
	if len(leads) == 0 {
		return
	}

	var enqueued int
	for _, lead := range leads {
		stage, ok := lead.Snapshot().NextStage()
		if !ok {
			continue
		}

		queued, err := s.enqueuer.EnqueueSend(ctx, OutreachSendPayload{
			LeadID: lead.ID.String(),
			Stage:  string(stage),
		}, now)
		if err != nil {
			s.log.JobError("outreach_retry_sweep", err)
			continue
		}
		if queued {
			enqueued++
		}
	}

	s.log.JobEnd("outreach_retry_sweep",
		slog.Int("due", len(leads)),
		slog.Int("enqueued", enqueued),
	)
}
