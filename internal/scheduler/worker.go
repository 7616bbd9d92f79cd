package scheduler

import (
	"context"
	"fmt"

	"outreach_backend/internal/outreach"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// SendProcessor runs one send attempt end to end. Satisfied by
// outreach.Service.
type SendProcessor interface {
	ProcessLead(ctx context.Context, leadID uuid.UUID) (outreach.Outcome, error)
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor SendProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, processor SendProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		processor: processor,
		log:       log,
	}

	mux.HandleFunc(TaskOutreachSend, w.handleOutreachSend)

	return w, nil
}

// handleOutreachSend delegates one queued send attempt to the pipeline.
// Send failures are absorbed by the pipeline's own retry bookkeeping, so the
// handler only errors on infrastructure problems. Tasks are enqueued with
// MaxRetry(0): the database backoff, not asynq, owns the retry policy.
func (w *Worker) handleOutreachSend(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutreachSendPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	outcome, err := w.processor.ProcessLead(ctx, leadID)
	if err != nil {
		w.log.JobError("outreach_send", err)
		return err
	}

	w.log.Debug("outreach send handled",
		"lead_id", payload.LeadID,
		"stage", payload.Stage,
		"outcome", string(outcome),
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
