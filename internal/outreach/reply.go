package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/internal/leads/repository"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Registrar attributes inbound replies to their leads. It is separate from
// Service so the API can run reply checks without SMTP or LLM wiring.
type Registrar struct {
	store LeadStore
	bus   events.Bus
	log   *logger.Logger
}

func NewRegistrar(store LeadStore, bus events.Bus, log *logger.Logger) *Registrar {
	return &Registrar{store: store, bus: bus, log: log}
}

// RegisterReply halts the lead's sequence. Safe to call more than once for
// the same reply.
func (r *Registrar) RegisterReply(ctx context.Context, leadID uuid.UUID, threadID string, receivedAt time.Time, snippet string) error {
	lead, err := r.store.GetByID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("load lead: %w", err)
	}

	if err := r.store.MarkReplied(ctx, leadID, receivedAt, snippet); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			// Already replied or failed. Nothing to do.
			return nil
		}
		return fmt.Errorf("mark replied: %w", err)
	}

	r.log.ReplyDetected(leadID.String(), threadID)
	r.bus.Publish(ctx, events.LeadReplied{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		Email:     lead.Email,
		ThreadID:  threadID,
		Snippet:   snippet,
	})
	return nil
}

// ThreadLister lists threads still awaiting a reply. Satisfied by the leads
// repository.
type ThreadLister interface {
	OpenThreads(ctx context.Context) ([]repository.ThreadRef, error)
}

// ReplyCheck is one mailbox scan end to end: list open threads, fetch their
// replies, register each. Used by the scheduler's poll loop and by the manual
// trigger on the API.
type ReplyCheck struct {
	threads   ThreadLister
	fetcher   ReplyFetcher
	registrar *Registrar
	log       *logger.Logger
}

func NewReplyCheck(threads ThreadLister, fetcher ReplyFetcher, registrar *Registrar, log *logger.Logger) *ReplyCheck {
	return &ReplyCheck{
		threads:   threads,
		fetcher:   fetcher,
		registrar: registrar,
		log:       log,
	}
}

// ReplyCheckResult reports what one scan found.
type ReplyCheckResult struct {
	OpenThreads int `json:"openThreads"`
	Replies     int `json:"replies"`
	Registered  int `json:"registered"`
}

// Run performs one scan. Per-reply registration failures are logged and
// skipped; only thread listing and mailbox errors abort the scan.
func (c *ReplyCheck) Run(ctx context.Context) (ReplyCheckResult, error) {
	var result ReplyCheckResult

	threads, err := c.threads.OpenThreads(ctx)
	if err != nil {
		return result, fmt.Errorf("list open threads: %w", err)
	}
	result.OpenThreads = len(threads)
	if len(threads) == 0 {
		return result, nil
	}

	replies, err := c.fetcher.FetchReplies(ctx, threads)
	if err != nil {
		return result, fmt.Errorf("fetch replies: %w", err)
	}
	result.Replies = len(replies)

	for _, reply := range replies {
		if err := c.registrar.RegisterReply(ctx, reply.LeadID, reply.ThreadID, reply.ReceivedAt, reply.Snippet); err != nil {
			c.log.JobError("reply_check", err)
			continue
		}
		result.Registered++
	}
	return result, nil
}
