// Package outreach runs the send pipeline: eligibility, window and quota
// gating, content generation, delivery, and the resulting state transition.
package outreach

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// ErrContextUnavailable is returned by an Enricher when no company context
// could be collected. Sends proceed without enrichment in that case.
var ErrContextUnavailable = errors.New("company context unavailable")

// LeadStore is the slice of the lead repository the pipeline needs.
type LeadStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	ApplySendSuccess(ctx context.Context, id uuid.UUID, stage domain.Stage, threadID string, sentAt time.Time, followupDue [2]time.Time) error
	RecordSendFailure(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	MarkReplied(ctx context.Context, id uuid.UUID, repliedAt time.Time, snippet string) error
}

// Enricher collects company context used to personalize the email body.
// Implementations return ErrContextUnavailable when the company has no
// reachable website; any other error is treated as a send failure.
type Enricher interface {
	CompanyContext(ctx context.Context, lead repository.Lead) (string, error)
}

// EmailContent is a composed message for one stage.
type EmailContent struct {
	Subject string
	Body    string
}

// ContentGenerator composes the stage email for a lead.
type ContentGenerator interface {
	Compose(ctx context.Context, lead repository.Lead, stage domain.Stage, companyContext string) (EmailContent, error)
}

// OutboundEmail is a fully addressed message handed to the mail relay.
// ThreadID is empty for the initial stage; follow-ups carry the thread so the
// relay can set In-Reply-To and References.
type OutboundEmail struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	ThreadID string
}

// MailSender delivers one message and returns its Message-ID. For the initial
// stage that Message-ID becomes the lead's thread identifier.
type MailSender interface {
	Send(ctx context.Context, email OutboundEmail) (string, error)
}

// InboundReply is a message found in the mailbox that belongs to an open
// outreach thread.
type InboundReply struct {
	LeadID     uuid.UUID
	ThreadID   string
	From       string
	ReceivedAt time.Time
	Snippet    string
}

// ReplyFetcher scans the mailbox for replies to open threads.
type ReplyFetcher interface {
	FetchReplies(ctx context.Context, threads []repository.ThreadRef) ([]InboundReply, error)
}
