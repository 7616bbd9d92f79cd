package leadsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/mixed_people/search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("X-Api-Key = %q", got)
		}

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Page != 2 || req.PerPage != 50 {
			t.Errorf("page=%d per_page=%d, want 2/50", req.Page, req.PerPage)
		}

		_ = json.NewEncoder(w).Encode(searchResponse{
			People: []Prospect{
				{Email: "jane@acme.example", Name: "Jane Doe", CompanyName: "Acme"},
				{Email: "", Name: "No Email"},
				{Email: "bob@globex.example", Name: "Bob Roe", CompanyCountry: "Germany"},
			},
			Pagination: struct {
				Page       int `json:"page"`
				TotalPages int `json:"total_pages"`
			}{Page: 2, TotalPages: 5},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key")
	prospects, hasMore, err := client.Search(context.Background(), SearchParams{
		Titles:  []string{"CTO"},
		Page:    2,
		PerPage: 50,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(prospects) != 2 {
		t.Fatalf("got %d prospects, want 2 (email-less entries dropped)", len(prospects))
	}
	if prospects[0].Email != "jane@acme.example" || prospects[1].Email != "bob@globex.example" {
		t.Fatalf("unexpected prospects: %+v", prospects)
	}
	if !hasMore {
		t.Fatalf("page 2 of 5 must report more pages")
	}
}

func TestSearchLastPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(searchResponse{
			People: []Prospect{{Email: "jane@acme.example"}},
			Pagination: struct {
				Page       int `json:"page"`
				TotalPages int `json:"total_pages"`
			}{Page: 3, TotalPages: 3},
		})
	}))
	defer srv.Close()

	_, hasMore, err := New(srv.URL, "k").Search(context.Background(), SearchParams{Page: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hasMore {
		t.Fatalf("final page must not report more pages")
	}
}

func TestSearchRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := New(srv.URL, "k").Search(context.Background(), SearchParams{})
	if err == nil {
		t.Fatalf("expected an error for a rate-limited response")
	}
}

func TestSearchDefaultsPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Page != 1 {
			t.Errorf("page = %d, want default 1", req.Page)
		}
		if req.PerPage != 25 {
			t.Errorf("per_page = %d, want default 25", req.PerPage)
		}
		_ = json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer srv.Close()

	if _, _, err := New(srv.URL, "k").Search(context.Background(), SearchParams{Page: 0, PerPage: 500}); err != nil {
		t.Fatalf("Search: %v", err)
	}
}
