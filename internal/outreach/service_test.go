package outreach

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach/quota"
	"outreach_backend/internal/outreach/window"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// mondayNoon is inside the Mon-Sat 09:00-18:00 window in UTC.
var mondayNoon = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	lead repository.Lead

	applyErr    error
	markRepErr  error
	applyCalls  []applyCall
	failures    []failureCall
	failedCalls []string
	replies     []replyCall
}

type applyCall struct {
	stage       domain.Stage
	threadID    string
	sentAt      time.Time
	followupDue [2]time.Time
}

type failureCall struct {
	retryCount  int
	nextRetryAt time.Time
	lastError   string
}

type replyCall struct {
	repliedAt time.Time
	snippet   string
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	if id != s.lead.ID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return s.lead, nil
}

func (s *fakeStore) ApplySendSuccess(_ context.Context, _ uuid.UUID, stage domain.Stage, threadID string, sentAt time.Time, followupDue [2]time.Time) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	s.applyCalls = append(s.applyCalls, applyCall{stage, threadID, sentAt, followupDue})
	return nil
}

func (s *fakeStore) RecordSendFailure(_ context.Context, _ uuid.UUID, retryCount int, nextRetryAt time.Time, lastError string) error {
	s.failures = append(s.failures, failureCall{retryCount, nextRetryAt, lastError})
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, _ uuid.UUID, lastError string) error {
	s.failedCalls = append(s.failedCalls, lastError)
	return nil
}

func (s *fakeStore) MarkReplied(_ context.Context, _ uuid.UUID, repliedAt time.Time, snippet string) error {
	if s.markRepErr != nil {
		return s.markRepErr
	}
	s.replies = append(s.replies, replyCall{repliedAt, snippet})
	return nil
}

type fakeEnricher struct {
	context string
	err     error
}

func (e *fakeEnricher) CompanyContext(context.Context, repository.Lead) (string, error) {
	return e.context, e.err
}

type fakeGenerator struct {
	content     EmailContent
	err         error
	gotContexts []string
}

func (g *fakeGenerator) Compose(_ context.Context, _ repository.Lead, _ domain.Stage, companyContext string) (EmailContent, error) {
	g.gotContexts = append(g.gotContexts, companyContext)
	if g.err != nil {
		return EmailContent{}, g.err
	}
	return g.content, nil
}

type fakeSender struct {
	messageID string
	err       error
	sent      []OutboundEmail
}

func (s *fakeSender) Send(_ context.Context, email OutboundEmail) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, email)
	return s.messageID, nil
}

// recordingBus captures published events synchronously so assertions do not
// race the async InMemoryBus.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type testConfig struct{}

func (testConfig) GetQuotaCeiling() int     { return 400 }
func (testConfig) GetMaxRetryAttempts() int { return 3 }
func (testConfig) GetBackoffSchedule() []time.Duration {
	return []time.Duration{5 * time.Minute, 30 * time.Minute, 2 * time.Hour}
}
func (testConfig) GetFollowupOffsets() [2]time.Duration {
	return [2]time.Duration{120 * time.Hour, 240 * time.Hour}
}
func (testConfig) GetWindowStartHour() int { return 9 }
func (testConfig) GetWindowEndHour() int   { return 18 }
func (testConfig) GetWindowDays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Monday: true, time.Tuesday: true, time.Wednesday: true,
		time.Thursday: true, time.Friday: true, time.Saturday: true,
	}
}
func (testConfig) GetSendTimeout() time.Duration    { return 5 * time.Second }
func (testConfig) GetQuotaRetention() time.Duration { return 90 * 24 * time.Hour }

type pipeline struct {
	svc    *Service
	store  *fakeStore
	ledger *quota.MemoryLedger
	gen    *fakeGenerator
	sender *fakeSender
	bus    *recordingBus
}

func newPipeline(t *testing.T, lead repository.Lead) *pipeline {
	t.Helper()

	cfg := testConfig{}
	win, err := window.New(cfg.GetWindowDays(), cfg.GetWindowStartHour(), cfg.GetWindowEndHour())
	if err != nil {
		t.Fatalf("window.New: %v", err)
	}

	p := &pipeline{
		store:  &fakeStore{lead: lead},
		ledger: quota.NewMemoryLedger(cfg.GetQuotaCeiling()),
		gen:    &fakeGenerator{content: EmailContent{Subject: "hello", Body: "body"}},
		sender: &fakeSender{messageID: "<msg-1@relay.example>"},
		bus:    &recordingBus{},
	}
	p.svc = NewService(
		p.store, p.ledger, win,
		&fakeEnricher{context: "acme builds rockets"},
		p.gen, p.sender, p.bus,
		cfg, logger.New("test"),
	)
	p.svc.now = func() time.Time { return mondayNoon }
	return p
}

func newLead(state domain.OutreachState) repository.Lead {
	return repository.Lead{
		ID:    uuid.New(),
		Email: "jane@acme.example",
		Name:  "Jane Doe",
		State: state,
	}
}

func TestProcessLeadInitialSend(t *testing.T) {
	lead := newLead(domain.StateNew)
	p := newPipeline(t, lead)

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeSent {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSent)
	}

	if len(p.sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(p.sender.sent))
	}
	if p.sender.sent[0].ThreadID != "" {
		t.Fatalf("initial send must not carry a thread, got %q", p.sender.sent[0].ThreadID)
	}

	if len(p.store.applyCalls) != 1 {
		t.Fatalf("ApplySendSuccess called %d times, want 1", len(p.store.applyCalls))
	}
	call := p.store.applyCalls[0]
	if call.stage != domain.StageInitial {
		t.Fatalf("stage = %s, want %s", call.stage, domain.StageInitial)
	}
	if call.threadID != p.sender.messageID {
		t.Fatalf("thread = %q, want the returned Message-ID %q", call.threadID, p.sender.messageID)
	}
	if !call.followupDue[0].Equal(mondayNoon.Add(120 * time.Hour)) {
		t.Fatalf("followup_1 due = %v, want %v", call.followupDue[0], mondayNoon.Add(120*time.Hour))
	}
	if !call.followupDue[1].Equal(mondayNoon.Add(240 * time.Hour)) {
		t.Fatalf("followup_2 due = %v, want %v", call.followupDue[1], mondayNoon.Add(240*time.Hour))
	}

	names := p.bus.names()
	if len(names) != 1 || names[0] != "outreach.email.sent" {
		t.Fatalf("published events = %v, want [outreach.email.sent]", names)
	}
}

func TestProcessLeadFollowupKeepsThread(t *testing.T) {
	lead := newLead(domain.StateInitialSent)
	thread := "<orig@relay.example>"
	lead.ThreadID = &thread
	due := mondayNoon.Add(-time.Hour)
	lead.Followup1DueAt = &due

	p := newPipeline(t, lead)
	p.sender.messageID = "<msg-2@relay.example>"

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeSent {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSent)
	}

	if p.sender.sent[0].ThreadID != thread {
		t.Fatalf("follow-up must carry the original thread, got %q", p.sender.sent[0].ThreadID)
	}
	call := p.store.applyCalls[0]
	if call.stage != domain.StageFollowup1 {
		t.Fatalf("stage = %s, want %s", call.stage, domain.StageFollowup1)
	}
	if call.threadID != thread {
		t.Fatalf("stored thread = %q, want unchanged %q", call.threadID, thread)
	}
	if !call.followupDue[0].IsZero() || !call.followupDue[1].IsZero() {
		t.Fatalf("follow-up sends must not reschedule due times, got %v", call.followupDue)
	}
}

func TestProcessLeadSkipsIneligibleState(t *testing.T) {
	for _, state := range []domain.OutreachState{domain.StateReplied, domain.StateFailed, domain.StateFollowup2Sent} {
		lead := newLead(state)
		p := newPipeline(t, lead)

		outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
		if err != nil {
			t.Fatalf("%s: ProcessLead: %v", state, err)
		}
		if outcome != OutcomeSkippedState {
			t.Fatalf("%s: outcome = %s, want %s", state, outcome, OutcomeSkippedState)
		}
		if len(p.sender.sent) != 0 {
			t.Fatalf("%s: no email must be sent", state)
		}

		// The quota must not be spent on a skipped lead.
		remaining, err := p.ledger.Remaining(context.Background(), mondayNoon)
		if err != nil {
			t.Fatalf("Remaining: %v", err)
		}
		if remaining != 400 {
			t.Fatalf("%s: quota remaining = %d, want 400", state, remaining)
		}
	}
}

func TestProcessLeadSkipsOutsideWindow(t *testing.T) {
	lead := newLead(domain.StateNew)
	p := newPipeline(t, lead)
	// Sunday is never a send day.
	p.svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeSkippedWindow {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSkippedWindow)
	}
	if len(p.sender.sent) != 0 {
		t.Fatalf("no email must be sent outside the window")
	}
}

func TestProcessLeadSkipsWhenQuotaExhausted(t *testing.T) {
	lead := newLead(domain.StateNew)
	p := newPipeline(t, lead)
	for i := 0; i < 400; i++ {
		if ok, err := p.ledger.TryReserve(context.Background(), mondayNoon); err != nil || !ok {
			t.Fatalf("drain quota %d: ok=%v err=%v", i, ok, err)
		}
	}

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeSkippedQuota {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSkippedQuota)
	}
	if len(p.sender.sent) != 0 {
		t.Fatalf("no email must be sent past the quota ceiling")
	}
}

func TestProcessLeadToleratesMissingCompanyContext(t *testing.T) {
	lead := newLead(domain.StateNew)
	p := newPipeline(t, lead)
	enricher := &fakeEnricher{err: ErrContextUnavailable}
	p.svc.enricher = enricher

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeSent {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeSent)
	}
	if len(p.gen.gotContexts) != 1 || p.gen.gotContexts[0] != "" {
		t.Fatalf("composer must receive an empty context, got %v", p.gen.gotContexts)
	}
}

func TestProcessLeadSchedulesRetryOnSendFailure(t *testing.T) {
	lead := newLead(domain.StateNew)
	p := newPipeline(t, lead)
	p.sender.err = errors.New("relay refused connection")

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeRetryScheduled {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeRetryScheduled)
	}

	if len(p.store.failures) != 1 {
		t.Fatalf("RecordSendFailure called %d times, want 1", len(p.store.failures))
	}
	failure := p.store.failures[0]
	if failure.retryCount != 1 {
		t.Fatalf("retry count = %d, want 1", failure.retryCount)
	}
	if want := mondayNoon.Add(5 * time.Minute); !failure.nextRetryAt.Equal(want) {
		t.Fatalf("next retry = %v, want %v", failure.nextRetryAt, want)
	}

	// The reservation is spent even though nothing was delivered.
	remaining, err := p.ledger.Remaining(context.Background(), mondayNoon)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 399 {
		t.Fatalf("quota remaining = %d, want 399", remaining)
	}
}

func TestProcessLeadBackoffFollowsSchedule(t *testing.T) {
	lead := newLead(domain.StateNew)
	lead.RetryCount = 1
	retryAt := mondayNoon.Add(-time.Minute)
	lead.NextRetryAt = &retryAt

	p := newPipeline(t, lead)
	p.sender.err = errors.New("relay refused connection")

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeRetryScheduled {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeRetryScheduled)
	}

	failure := p.store.failures[0]
	if failure.retryCount != 2 {
		t.Fatalf("retry count = %d, want 2", failure.retryCount)
	}
	if want := mondayNoon.Add(30 * time.Minute); !failure.nextRetryAt.Equal(want) {
		t.Fatalf("next retry = %v, want the second schedule entry %v", failure.nextRetryAt, want)
	}
}

func TestProcessLeadDeadLettersAfterFinalAttempt(t *testing.T) {
	lead := newLead(domain.StateNew)
	lead.RetryCount = 2
	retryAt := mondayNoon.Add(-time.Minute)
	lead.NextRetryAt = &retryAt

	p := newPipeline(t, lead)
	p.sender.err = errors.New("relay refused connection")

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeDeadLettered {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeDeadLettered)
	}

	if len(p.store.failedCalls) != 1 {
		t.Fatalf("MarkFailed called %d times, want 1", len(p.store.failedCalls))
	}
	if len(p.store.failures) != 0 {
		t.Fatalf("no further retry must be scheduled after the final attempt")
	}

	names := p.bus.names()
	if len(names) != 1 || names[0] != "outreach.lead.dead_lettered" {
		t.Fatalf("published events = %v, want [outreach.lead.dead_lettered]", names)
	}
}

func TestProcessLeadLosesRaceToReply(t *testing.T) {
	lead := newLead(domain.StateNew)
	p := newPipeline(t, lead)
	p.store.applyErr = repository.ErrStateConflict

	outcome, err := p.svc.ProcessLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("ProcessLead: %v", err)
	}
	if outcome != OutcomeLostRace {
		t.Fatalf("outcome = %s, want %s", outcome, OutcomeLostRace)
	}
	if len(p.bus.names()) != 0 {
		t.Fatalf("a lost transition must not publish a sent event")
	}
}

func TestRegisterReply(t *testing.T) {
	lead := newLead(domain.StateInitialSent)
	p := newPipeline(t, lead)

	receivedAt := mondayNoon.Add(time.Hour)
	if err := p.svc.RegisterReply(context.Background(), lead.ID, "<orig@relay.example>", receivedAt, "sounds interesting"); err != nil {
		t.Fatalf("RegisterReply: %v", err)
	}

	if len(p.store.replies) != 1 {
		t.Fatalf("MarkReplied called %d times, want 1", len(p.store.replies))
	}
	if p.store.replies[0].snippet != "sounds interesting" {
		t.Fatalf("snippet = %q", p.store.replies[0].snippet)
	}

	names := p.bus.names()
	if len(names) != 1 || names[0] != "outreach.lead.replied" {
		t.Fatalf("published events = %v, want [outreach.lead.replied]", names)
	}
}

type fakeThreadLister struct {
	threads []repository.ThreadRef
}

func (l *fakeThreadLister) OpenThreads(context.Context) ([]repository.ThreadRef, error) {
	return l.threads, nil
}

type fakeFetcher struct {
	replies []InboundReply
	called  bool
}

func (f *fakeFetcher) FetchReplies(context.Context, []repository.ThreadRef) ([]InboundReply, error) {
	f.called = true
	return f.replies, nil
}

func TestReplyCheckRun(t *testing.T) {
	lead := newLead(domain.StateInitialSent)
	p := newPipeline(t, lead)

	lister := &fakeThreadLister{threads: []repository.ThreadRef{
		{LeadID: lead.ID, Email: lead.Email, ThreadID: "<orig@relay.example>"},
	}}
	fetcher := &fakeFetcher{replies: []InboundReply{
		{LeadID: lead.ID, ThreadID: "<orig@relay.example>", From: lead.Email, ReceivedAt: mondayNoon, Snippet: "yes please"},
	}}

	check := NewReplyCheck(lister, fetcher, p.svc.Registrar, logger.New("test"))
	result, err := check.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.OpenThreads != 1 || result.Replies != 1 || result.Registered != 1 {
		t.Fatalf("result = %+v, want one thread, one reply, one registration", result)
	}
	if len(p.store.replies) != 1 || p.store.replies[0].snippet != "yes please" {
		t.Fatalf("MarkReplied calls = %+v", p.store.replies)
	}
}

func TestReplyCheckSkipsMailboxWithoutOpenThreads(t *testing.T) {
	fetcher := &fakeFetcher{}
	check := NewReplyCheck(&fakeThreadLister{}, fetcher, NewRegistrar(&fakeStore{}, &recordingBus{}, logger.New("test")), logger.New("test"))

	result, err := check.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.OpenThreads != 0 {
		t.Fatalf("result = %+v", result)
	}
	if fetcher.called {
		t.Fatalf("mailbox must not be scanned when no thread is open")
	}
}

func TestRegisterReplyIdempotent(t *testing.T) {
	lead := newLead(domain.StateReplied)
	p := newPipeline(t, lead)
	p.store.markRepErr = repository.ErrStateConflict

	if err := p.svc.RegisterReply(context.Background(), lead.ID, "<orig@relay.example>", mondayNoon, "again"); err != nil {
		t.Fatalf("RegisterReply on a settled lead must be a no-op, got %v", err)
	}
	if len(p.bus.names()) != 0 {
		t.Fatalf("a repeated reply must not publish an event")
	}
}
