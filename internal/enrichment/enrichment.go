// Package enrichment collects company context from the lead's website.
package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach"
	"outreach_backend/platform/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/html"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxBodyBytes       = 1 << 20
	maxContextChars    = 1500
	cacheKeyPrefix     = "enrichment:"
)

// Service fetches a company homepage, strips it down to readable text, and
// caches the result in Redis keyed by domain. The cache is best effort; a
// Redis outage degrades to re-fetching, never to a send failure.
type Service struct {
	httpClient *http.Client
	rdb        *redis.Client
	cacheTTL   time.Duration
	log        *logger.Logger
}

func New(rdb *redis.Client, cacheTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		rdb:        rdb,
		cacheTTL:   cacheTTL,
		log:        log,
	}
}

// CompanyContext returns a plain-text summary of the company homepage.
// Leads without a company domain, and domains that do not resolve to a
// readable page, report ErrContextUnavailable.
func (s *Service) CompanyContext(ctx context.Context, lead repository.Lead) (string, error) {
	if lead.CompanyDomain == nil || *lead.CompanyDomain == "" {
		return "", outreach.ErrContextUnavailable
	}
	domain := strings.ToLower(strings.TrimSpace(*lead.CompanyDomain))

	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, cacheKeyPrefix+domain).Result()
		if err == nil {
			return cached, nil
		}
		if err != redis.Nil {
			s.log.Warn("enrichment cache read failed", "domain", domain, "error", err.Error())
		}
	}

	text, err := s.fetch(ctx, domain)
	if err != nil {
		s.log.Debug("enrichment fetch failed", "domain", domain, "error", err.Error())
		return "", outreach.ErrContextUnavailable
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, cacheKeyPrefix+domain, text, s.cacheTTL).Err(); err != nil {
			s.log.Warn("enrichment cache write failed", "domain", domain, "error", err.Error())
		}
	}
	return text, nil
}

func (s *Service) fetch(ctx context.Context, domain string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+domain, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; outreach-bot/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	text := ExtractText(doc)
	if text == "" {
		return "", fmt.Errorf("no readable text")
	}
	return text, nil
}

// ExtractText walks the parsed document and collects the title, the meta
// description, and visible body text, capped at maxContextChars.
func ExtractText(doc *html.Node) string {
	var parts []string

	if title := findTitle(doc); title != "" {
		parts = append(parts, title)
	}
	if desc := findMetaDescription(doc); desc != "" {
		parts = append(parts, desc)
	}

	var body strings.Builder
	collectText(doc, &body)
	if text := strings.Join(strings.Fields(body.String()), " "); text != "" {
		parts = append(parts, text)
	}

	joined := strings.Join(parts, "\n")
	if len(joined) > maxContextChars {
		joined = joined[:maxContextChars]
	}
	return strings.TrimSpace(joined)
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

func findMetaDescription(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "meta" {
		var name, content string
		for _, attr := range n.Attr {
			switch strings.ToLower(attr.Key) {
			case "name":
				name = strings.ToLower(attr.Val)
			case "content":
				content = attr.Val
			}
		}
		if name == "description" {
			return strings.TrimSpace(content)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if desc := findMetaDescription(c); desc != "" {
			return desc
		}
	}
	return ""
}

func collectText(n *html.Node, out *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "svg", "head":
			return
		}
	}
	if n.Type == html.TextNode {
		out.WriteString(n.Data)
		out.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, out)
	}
}
