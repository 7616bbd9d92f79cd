// Package transport defines the request and response DTOs for the leads API.
package transport

import (
	"time"

	"outreach_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// Request DTOs

type ImportLeadsRequest struct {
	Titles    []string `json:"titles" validate:"omitempty,max=10,dive,min=2,max=100"`
	Locations []string `json:"locations" validate:"omitempty,max=10,dive,min=2,max=100"`
	MaxLeads  int      `json:"maxLeads" validate:"omitempty,min=1,max=1000"`
}

type ListLeadsQuery struct {
	State  string `form:"state" validate:"omitempty,oneof=new initial_sent followup_1_sent followup_2_sent replied failed"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
}

// Response DTOs

type LeadResponse struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Title           *string    `json:"title,omitempty"`
	CompanyName     *string    `json:"companyName,omitempty"`
	CompanyDomain   *string    `json:"companyDomain,omitempty"`
	CompanyCountry  *string    `json:"companyCountry,omitempty"`
	CompanyIndustry *string    `json:"companyIndustry,omitempty"`
	CompanyPhone    *string    `json:"companyPhone,omitempty"`
	State           string     `json:"state"`
	InitialSentAt   *time.Time `json:"initialSentAt,omitempty"`
	Followup1DueAt  *time.Time `json:"followup1DueAt,omitempty"`
	Followup2DueAt  *time.Time `json:"followup2DueAt,omitempty"`
	Followup1SentAt *time.Time `json:"followup1SentAt,omitempty"`
	Followup2SentAt *time.Time `json:"followup2SentAt,omitempty"`
	ThreadID        *string    `json:"threadId,omitempty"`
	RepliedAt       *time.Time `json:"repliedAt,omitempty"`
	ReplySnippet    *string    `json:"replySnippet,omitempty"`
	RetryCount      int        `json:"retryCount"`
	NextRetryAt     *time.Time `json:"nextRetryAt,omitempty"`
	LastError       *string    `json:"lastError,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func ToLeadResponse(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:              l.ID,
		Email:           l.Email,
		Name:            l.Name,
		Title:           l.Title,
		CompanyName:     l.CompanyName,
		CompanyDomain:   l.CompanyDomain,
		CompanyCountry:  l.CompanyCountry,
		CompanyIndustry: l.CompanyIndustry,
		CompanyPhone:    l.CompanyPhone,
		State:           string(l.State),
		InitialSentAt:   l.InitialSentAt,
		Followup1DueAt:  l.Followup1DueAt,
		Followup2DueAt:  l.Followup2DueAt,
		Followup1SentAt: l.Followup1SentAt,
		Followup2SentAt: l.Followup2SentAt,
		ThreadID:        l.ThreadID,
		RepliedAt:       l.RepliedAt,
		ReplySnippet:    l.ReplySnippet,
		RetryCount:      l.RetryCount,
		NextRetryAt:     l.NextRetryAt,
		LastError:       l.LastError,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}

type StatsResponse struct {
	States map[string]int `json:"states"`
	Total  int            `json:"total"`
}
