// Package leadsource pulls prospect batches from the external lead provider.
package leadsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Prospect is one contact as delivered by the provider.
type Prospect struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Title           string `json:"title"`
	CompanyName     string `json:"organization_name"`
	CompanyDomain   string `json:"organization_domain"`
	CompanyCountry  string `json:"organization_country"`
	CompanyIndustry string `json:"organization_industry"`
	CompanyPhone    string `json:"organization_phone"`
}

type searchRequest struct {
	Titles    []string `json:"person_titles,omitempty"`
	Locations []string `json:"organization_locations,omitempty"`
	Page      int      `json:"page"`
	PerPage   int      `json:"per_page"`
}

type searchResponse struct {
	People     []Prospect `json:"people"`
	Pagination struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// Client talks to the provider's people-search API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// SearchParams narrows a prospect search.
type SearchParams struct {
	Titles    []string
	Locations []string
	Page      int
	PerPage   int
}

// Search fetches one page of prospects. Prospects without an email address
// are dropped here; they cannot enter the pipeline.
func (c *Client) Search(ctx context.Context, p SearchParams) ([]Prospect, bool, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > 100 {
		p.PerPage = 25
	}

	payload, err := json.Marshal(searchRequest{
		Titles:    p.Titles,
		Locations: p.Locations,
		Page:      p.Page,
		PerPage:   p.PerPage,
	})
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/mixed_people/search", bytes.NewReader(payload))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("lead source request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, false, fmt.Errorf("lead source rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("lead source status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("lead source decode: %w", err)
	}

	prospects := out.People[:0]
	for _, person := range out.People {
		if person.Email == "" {
			continue
		}
		prospects = append(prospects, person)
	}

	hasMore := out.Pagination.Page < out.Pagination.TotalPages
	return prospects, hasMore, nil
}
