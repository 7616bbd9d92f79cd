package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach/quota"
	"outreach_backend/internal/outreach/window"
	"outreach_backend/platform/config"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// Outcome classifies one ProcessLead run for the dispatcher's tick counters.
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeSkippedState   Outcome = "skipped_state"
	OutcomeSkippedWindow  Outcome = "skipped_window"
	OutcomeSkippedQuota   Outcome = "skipped_quota"
	OutcomeLostRace       Outcome = "lost_race"
	OutcomeRetryScheduled Outcome = "retry_scheduled"
	OutcomeDeadLettered   Outcome = "dead_lettered"
)

// Service drives a lead through one send attempt end to end. The embedded
// Registrar contributes RegisterReply.
type Service struct {
	*Registrar

	store     LeadStore
	quota     quota.Ledger
	window    *window.Calculator
	enricher  Enricher
	generator ContentGenerator
	sender    MailSender
	bus       events.Bus
	cfg       config.OutreachConfig
	log       *logger.Logger
	now       func() time.Time
}

func NewService(
	store LeadStore,
	ledger quota.Ledger,
	win *window.Calculator,
	enricher Enricher,
	generator ContentGenerator,
	sender MailSender,
	bus events.Bus,
	cfg config.OutreachConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		Registrar: NewRegistrar(store, bus, log),
		store:     store,
		quota:     ledger,
		window:    win,
		enricher:  enricher,
		generator: generator,
		sender:    sender,
		bus:       bus,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// ProcessLead runs one send attempt for the lead. Every gate is re-checked
// here even though the dispatcher filtered on the same conditions: between
// enqueue and execution a reply can land, the window can close, or the quota
// can run out.
func (s *Service) ProcessLead(ctx context.Context, leadID uuid.UUID) (Outcome, error) {
	now := s.now()

	lead, err := s.store.GetByID(ctx, leadID)
	if err != nil {
		return "", fmt.Errorf("load lead: %w", err)
	}

	log := s.log.WithLeadID(lead.ID.String())

	// A reply or a concurrent worker may have moved the lead since the task
	// was enqueued. Stale tasks are dropped without side effects.
	snap := lead.Snapshot()
	stage, ok := snap.NextStage()
	if !ok || !snap.SendEligible(now) {
		log.Debug("send skipped", "reason", "state", "state", string(lead.State))
		return OutcomeSkippedState, nil
	}

	if !s.window.Within(lead.Country(), now) {
		log.Debug("send skipped", "reason", "window", "country", lead.Country())
		return OutcomeSkippedWindow, nil
	}

	reserved, err := s.quota.TryReserve(ctx, now)
	if err != nil {
		return "", fmt.Errorf("reserve quota: %w", err)
	}
	if !reserved {
		log.Debug("send skipped", "reason", "quota")
		return OutcomeSkippedQuota, nil
	}

	// The reservation is spent from here on, success or not. Counting
	// attempts rather than deliveries keeps the ledger a single atomic
	// operation and errs on the side of sending less.
	companyContext, err := s.enricher.CompanyContext(ctx, lead)
	if err != nil {
		if !errors.Is(err, ErrContextUnavailable) {
			return s.handleFailure(ctx, lead, stage, now, fmt.Errorf("enrich: %w", err))
		}
		companyContext = ""
	}

	content, err := s.generator.Compose(ctx, lead, stage, companyContext)
	if err != nil {
		return s.handleFailure(ctx, lead, stage, now, fmt.Errorf("compose: %w", err))
	}

	threadID := ""
	if lead.ThreadID != nil {
		threadID = *lead.ThreadID
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.GetSendTimeout())
	messageID, err := s.sender.Send(sendCtx, OutboundEmail{
		To:       lead.Email,
		ToName:   lead.Name,
		Subject:  content.Subject,
		Body:     content.Body,
		ThreadID: threadID,
	})
	cancel()
	if err != nil {
		return s.handleFailure(ctx, lead, stage, now, fmt.Errorf("send: %w", err))
	}

	if stage == domain.StageInitial {
		threadID = messageID
	}

	var followupDue [2]time.Time
	if stage == domain.StageInitial {
		followupDue[0], followupDue[1] = domain.FollowupDueTimes(now, s.cfg.GetFollowupOffsets())
	}

	if err := s.store.ApplySendSuccess(ctx, lead.ID, stage, threadID, now, followupDue); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			// The email went out but a reply landed first. The reply wins;
			// the transition is abandoned.
			log.Warn("send transition lost race", "stage", string(stage))
			return OutcomeLostRace, nil
		}
		return "", fmt.Errorf("apply send success: %w", err)
	}

	log.SendOutcome(lead.ID.String(), string(stage), true, nil)
	s.bus.Publish(ctx, events.EmailSent{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Email:     lead.Email,
		Stage:     string(stage),
		ThreadID:  threadID,
	})
	return OutcomeSent, nil
}

// handleFailure applies the retry policy after a failed attempt: park the
// lead on the next backoff, or dead-letter it once the budget is exhausted.
func (s *Service) handleFailure(ctx context.Context, lead repository.Lead, stage domain.Stage, now time.Time, cause error) (Outcome, error) {
	s.log.SendOutcome(lead.ID.String(), string(stage), false, cause)

	attempts := lead.RetryCount + 1
	if attempts >= s.cfg.GetMaxRetryAttempts() {
		if err := s.store.MarkFailed(ctx, lead.ID, cause.Error()); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				return OutcomeLostRace, nil
			}
			return "", fmt.Errorf("mark failed: %w", err)
		}

		s.bus.Publish(ctx, events.LeadDeadLettered{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			Email:     lead.Email,
			Stage:     string(stage),
			Attempts:  attempts,
			LastError: cause.Error(),
		})
		return OutcomeDeadLettered, nil
	}

	nextRetryAt := now.Add(s.backoffFor(attempts))
	if err := s.store.RecordSendFailure(ctx, lead.ID, attempts, nextRetryAt, cause.Error()); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return OutcomeLostRace, nil
		}
		return "", fmt.Errorf("record send failure: %w", err)
	}
	return OutcomeRetryScheduled, nil
}

// backoffFor returns the delay before retry attempt n (1-based). The schedule
// is clamped: attempts beyond its length reuse the final entry.
func (s *Service) backoffFor(attempt int) time.Duration {
	schedule := s.cfg.GetBackoffSchedule()
	if len(schedule) == 0 {
		return time.Hour
	}
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}
