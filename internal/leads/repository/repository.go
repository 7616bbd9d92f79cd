// Package repository is the durable lead record store. Lifecycle fields are
// written only through the guarded mutators below; contact fields are written
// by upsert from the lead source.
package repository

import (
	"context"
	"errors"
	"time"

	"outreach_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")

	// ErrStateConflict means a guarded update matched no row: the lead moved
	// to another state between selection and dispatch.
	ErrStateConflict = errors.New("lead state changed concurrently")
)

type Lead struct {
	ID              uuid.UUID
	Email           string
	Name            string
	Title           *string
	CompanyName     *string
	CompanyDomain   *string
	CompanyCountry  *string
	CompanyIndustry *string
	CompanyPhone    *string

	State           domain.OutreachState
	InitialSentAt   *time.Time
	Followup1DueAt  *time.Time
	Followup2DueAt  *time.Time
	Followup1SentAt *time.Time
	Followup2SentAt *time.Time

	ThreadID     *string
	RepliedAt    *time.Time
	ReplySnippet *string

	RetryCount  int
	NextRetryAt *time.Time
	LastError   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot projects the lifecycle slice the state machine decides on.
func (l Lead) Snapshot() domain.Snapshot {
	return domain.Snapshot{
		State:          l.State,
		InitialSentAt:  l.InitialSentAt,
		Followup1DueAt: l.Followup1DueAt,
		Followup2DueAt: l.Followup2DueAt,
		RetryCount:     l.RetryCount,
		NextRetryAt:    l.NextRetryAt,
	}
}

// Country returns the company country, empty when unknown.
func (l Lead) Country() string {
	if l.CompanyCountry == nil {
		return ""
	}
	return *l.CompanyCountry
}

// ThreadRef links an open conversation back to its lead for reply polling.
type ThreadRef struct {
	LeadID     uuid.UUID
	Email      string
	ThreadID   string
	LastSentAt time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `
	id, email, name, title, company_name, company_domain, company_country,
	company_industry, company_phone, outreach_state, initial_sent_at,
	followup_1_due_at, followup_2_due_at, followup_1_sent_at, followup_2_sent_at,
	thread_id, replied_at, reply_snippet, retry_count, next_retry_at, last_error,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	var state string
	err := row.Scan(
		&l.ID, &l.Email, &l.Name, &l.Title, &l.CompanyName, &l.CompanyDomain,
		&l.CompanyCountry, &l.CompanyIndustry, &l.CompanyPhone, &state,
		&l.InitialSentAt, &l.Followup1DueAt, &l.Followup2DueAt,
		&l.Followup1SentAt, &l.Followup2SentAt, &l.ThreadID, &l.RepliedAt,
		&l.ReplySnippet, &l.RetryCount, &l.NextRetryAt, &l.LastError,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}

	l.State, err = domain.ParseState(state)
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}

type UpsertParams struct {
	Email           string
	Name            string
	Title           *string
	CompanyName     *string
	CompanyDomain   *string
	CompanyCountry  *string
	CompanyIndustry *string
	CompanyPhone    *string
}

// Upsert inserts a newly acquired lead or refreshes contact fields of an
// existing one. Lifecycle fields are never touched here.
func (r *Repository) Upsert(ctx context.Context, p UpsertParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (email, name, title, company_name, company_domain,
			company_country, company_industry, company_phone, outreach_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			title = EXCLUDED.title,
			company_name = EXCLUDED.company_name,
			company_domain = EXCLUDED.company_domain,
			company_country = EXCLUDED.company_country,
			company_industry = EXCLUDED.company_industry,
			company_phone = EXCLUDED.company_phone,
			updated_at = now()
		RETURNING id
	`, p.Email, p.Name, p.Title, p.CompanyName, p.CompanyDomain,
		p.CompanyCountry, p.CompanyIndustry, p.CompanyPhone, string(domain.StateNew),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type ListFilter struct {
	State  *domain.OutreachState
	Limit  int
	Offset int
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]Lead, error) {
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := `SELECT ` + leadColumns + ` FROM leads`
	args := []any{}
	if f.State != nil {
		query += ` WHERE outreach_state = $1 ORDER BY created_at DESC, id ASC LIMIT $2 OFFSET $3`
		args = append(args, string(*f.State), f.Limit, f.Offset)
	} else {
		query += ` ORDER BY created_at DESC, id ASC LIMIT $1 OFFSET $2`
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// dueAtExpr orders eligible leads oldest-due first. New leads are due from
// the moment they were acquired.
const dueAtExpr = `CASE outreach_state
	WHEN 'new' THEN created_at
	WHEN 'initial_sent' THEN followup_1_due_at
	ELSE followup_2_due_at
END`

// DueForSend returns leads whose next stage is due at now, oldest-due first
// with id as the deterministic tie-break. The retry backoff gate is part of
// eligibility: a lead parked on next_retry_at is not due yet.
func (r *Repository) DueForSend(ctx context.Context, now time.Time, limit int) ([]Lead, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE (
			outreach_state = 'new'
			OR (outreach_state = 'initial_sent' AND followup_1_due_at <= $1)
			OR (outreach_state = 'followup_1_sent' AND followup_2_due_at <= $1)
		)
		AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY `+dueAtExpr+` ASC, id ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// DueForRetry returns leads parked on a backoff whose retry instant passed.
func (r *Repository) DueForRetry(ctx context.Context, now time.Time, maxAttempts, limit int) ([]Lead, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE retry_count > 0
		AND retry_count < $2
		AND next_retry_at IS NOT NULL
		AND next_retry_at <= $1
		AND outreach_state NOT IN ('replied', 'failed')
		ORDER BY next_retry_at ASC, id ASC
		LIMIT $3
	`, now, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// OpenThreads lists conversations that can still receive a tracked reply.
func (r *Repository) OpenThreads(ctx context.Context) ([]ThreadRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, thread_id,
			COALESCE(followup_2_sent_at, followup_1_sent_at, initial_sent_at, created_at)
		FROM leads
		WHERE thread_id IS NOT NULL
		AND outreach_state NOT IN ('replied', 'failed')
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []ThreadRef
	for rows.Next() {
		var ref ThreadRef
		if err := rows.Scan(&ref.LeadID, &ref.Email, &ref.ThreadID, &ref.LastSentAt); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ApplySendSuccess advances the lead after a successful send of the given
// stage. The WHERE guard on the expected source state makes the update
// optimistic: zero rows means another actor won the race and the transition
// must not be applied.
func (r *Repository) ApplySendSuccess(ctx context.Context, id uuid.UUID, stage domain.Stage, threadID string, sentAt time.Time, followupDue [2]time.Time) error {
	var affected int64

	switch stage {
	case domain.StageInitial:
		tag, err := r.pool.Exec(ctx, `
			UPDATE leads SET
				outreach_state = 'initial_sent',
				initial_sent_at = $2,
				followup_1_due_at = $3,
				followup_2_due_at = $4,
				thread_id = $5,
				retry_count = 0,
				next_retry_at = NULL,
				last_error = NULL,
				updated_at = now()
			WHERE id = $1 AND outreach_state = 'new'
		`, id, sentAt, followupDue[0], followupDue[1], threadID)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()

	case domain.StageFollowup1:
		tag, err := r.pool.Exec(ctx, `
			UPDATE leads SET
				outreach_state = 'followup_1_sent',
				followup_1_sent_at = $2,
				retry_count = 0,
				next_retry_at = NULL,
				last_error = NULL,
				updated_at = now()
			WHERE id = $1 AND outreach_state = 'initial_sent'
		`, id, sentAt)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()

	case domain.StageFollowup2:
		tag, err := r.pool.Exec(ctx, `
			UPDATE leads SET
				outreach_state = 'followup_2_sent',
				followup_2_sent_at = $2,
				retry_count = 0,
				next_retry_at = NULL,
				last_error = NULL,
				updated_at = now()
			WHERE id = $1 AND outreach_state = 'followup_1_sent'
		`, id, sentAt)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()

	default:
		return errors.New("unknown outreach stage " + string(stage))
	}

	if affected == 0 {
		return ErrStateConflict
	}
	return nil
}

// RecordSendFailure parks the lead on a backoff without advancing its state.
func (r *Repository) RecordSendFailure(ctx context.Context, id uuid.UUID, retryCount int, nextRetryAt time.Time, lastError string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			retry_count = $2,
			next_retry_at = $3,
			last_error = $4,
			updated_at = now()
		WHERE id = $1 AND outreach_state NOT IN ('replied', 'failed')
	`, id, retryCount, nextRetryAt, lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// MarkFailed dead-letters the lead. Failed is terminal.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			outreach_state = 'failed',
			next_retry_at = NULL,
			last_error = $2,
			updated_at = now()
		WHERE id = $1 AND outreach_state NOT IN ('replied', 'failed')
	`, id, lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// MarkReplied records an inbound reply and halts all further stages. The
// guard makes the transition idempotent: a second delivery of the same reply
// matches no row and surfaces as ErrStateConflict, which callers treat as
// already done.
func (r *Repository) MarkReplied(ctx context.Context, id uuid.UUID, repliedAt time.Time, snippet string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			outreach_state = 'replied',
			replied_at = $2,
			reply_snippet = $3,
			next_retry_at = NULL,
			updated_at = now()
		WHERE id = $1 AND outreach_state NOT IN ('replied', 'failed')
	`, id, repliedAt, snippet)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStateConflict
	}
	return nil
}

// ResetOutreach returns a lead to the start of the lifecycle. This is a
// manual dashboard operation; the pipeline never calls it.
func (r *Repository) ResetOutreach(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			outreach_state = 'new',
			initial_sent_at = NULL,
			followup_1_due_at = NULL,
			followup_2_due_at = NULL,
			followup_1_sent_at = NULL,
			followup_2_sent_at = NULL,
			thread_id = NULL,
			replied_at = NULL,
			reply_snippet = NULL,
			retry_count = 0,
			next_retry_at = NULL,
			last_error = NULL,
			updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByState returns the lifecycle distribution for the dashboard.
func (r *Repository) CountByState(ctx context.Context) (map[domain.OutreachState]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT outreach_state, COUNT(*) FROM leads GROUP BY outreach_state
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.OutreachState]int)
	for rows.Next() {
		var raw string
		var count int
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, err
		}
		state, err := domain.ParseState(raw)
		if err != nil {
			return nil, err
		}
		counts[state] = count
	}
	return counts, rows.Err()
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
