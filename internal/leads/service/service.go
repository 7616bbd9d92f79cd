// Package service exposes the lead application operations: acquisition from
// the lead source and the read surface for the dashboard.
package service

import (
	"context"
	"errors"
	"strings"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leadsource"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"

	"github.com/google/uuid"
)

var ErrLeadNotFound = errors.New("lead not found")

// maxImportPages bounds one import run; the source paginates far beyond what
// a single outreach batch needs.
const maxImportPages = 10

type Service struct {
	repo   *repository.Repository
	source *leadsource.Client
	bus    events.Bus
	log    *logger.Logger
}

func New(repo *repository.Repository, source *leadsource.Client, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, source: source, bus: bus, log: log}
}

// ImportParams narrows which prospects one import run pulls in.
type ImportParams struct {
	Titles    []string
	Locations []string
	MaxLeads  int
}

// ImportResult reports what one import run did.
type ImportResult struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
}

// ImportFromSource pulls prospects from the provider and upserts them as
// leads in the new state. Re-imported prospects only refresh contact fields;
// their outreach lifecycle is untouched.
func (s *Service) ImportFromSource(ctx context.Context, p ImportParams) (ImportResult, error) {
	if s.source == nil {
		return ImportResult{}, apperr.Unavailable("lead source not configured").WithOp("leads.import")
	}
	if p.MaxLeads < 1 {
		p.MaxLeads = 100
	}

	var result ImportResult
	for page := 1; page <= maxImportPages; page++ {
		prospects, hasMore, err := s.source.Search(ctx, leadsource.SearchParams{
			Titles:    p.Titles,
			Locations: p.Locations,
			Page:      page,
		})
		if err != nil {
			return result, apperr.Wrap(apperr.KindUnavailable, "lead source fetch failed", err).WithOp("leads.import")
		}

		for _, prospect := range prospects {
			result.Fetched++

			if _, err := s.repo.Upsert(ctx, upsertParams(prospect)); err != nil {
				s.log.DatabaseError("leads.upsert", err)
				continue
			}
			result.Upserted++

			if result.Upserted >= p.MaxLeads {
				break
			}
		}

		if result.Upserted >= p.MaxLeads || !hasMore {
			break
		}
	}

	s.bus.Publish(ctx, events.LeadsImported{
		BaseEvent: events.NewBaseEvent(),
		Imported:  result.Upserted,
		Updated:   result.Fetched - result.Upserted,
	})
	return result, nil
}

func upsertParams(p leadsource.Prospect) repository.UpsertParams {
	params := repository.UpsertParams{
		Email: strings.ToLower(strings.TrimSpace(p.Email)),
		Name:  strings.TrimSpace(p.Name),
	}
	params.Title = optional(p.Title)
	params.CompanyName = optional(p.CompanyName)
	params.CompanyDomain = optional(strings.ToLower(p.CompanyDomain))
	params.CompanyCountry = optional(p.CompanyCountry)
	params.CompanyIndustry = optional(p.CompanyIndustry)
	if normalized := phone.NormalizeE164(p.CompanyPhone); normalized != "" {
		params.CompanyPhone = &normalized
	}
	return params
}

func optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, ErrLeadNotFound
	}
	return lead, err
}

func (s *Service) List(ctx context.Context, f repository.ListFilter) ([]repository.Lead, error) {
	return s.repo.List(ctx, f)
}

// Stats returns the lifecycle distribution.
func (s *Service) Stats(ctx context.Context) (map[domain.OutreachState]int, error) {
	return s.repo.CountByState(ctx)
}

// ResetOutreach restarts a lead's sequence from scratch. Manual operation
// for the dashboard.
func (s *Service) ResetOutreach(ctx context.Context, id uuid.UUID) error {
	err := s.repo.ResetOutreach(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrLeadNotFound
	}
	return err
}
