// Package generation composes the outreach emails with Gemini.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach"

	"google.golang.org/genai"
)

// Composer generates the subject and body for one outreach stage. Output is
// requested as JSON so the subject can be split from the body reliably.
type Composer struct {
	client    *genai.Client
	model     string
	fromName  string
	signature string
}

type Config struct {
	APIKey    string
	Model     string
	FromName  string
	Signature string
}

func NewComposer(ctx context.Context, cfg Config) (*Composer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("generation: create client: %w", err)
	}

	return &Composer{
		client:    client,
		model:     cfg.Model,
		fromName:  cfg.FromName,
		signature: cfg.Signature,
	}, nil
}

type composedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Compose generates the email for the given stage. Follow-ups reference the
// earlier message instead of reintroducing the sender.
func (c *Composer) Compose(ctx context.Context, lead repository.Lead, stage domain.Stage, companyContext string) (outreach.EmailContent, error) {
	prompt := c.buildPrompt(lead, stage, companyContext)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return outreach.EmailContent{}, fmt.Errorf("generation: %w", err)
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return outreach.EmailContent{}, fmt.Errorf("generation: empty response")
	}

	var out composedEmail
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return outreach.EmailContent{}, fmt.Errorf("generation: parse response: %w", err)
	}
	if out.Subject == "" || out.Body == "" {
		return outreach.EmailContent{}, fmt.Errorf("generation: incomplete response")
	}

	return outreach.EmailContent{Subject: out.Subject, Body: out.Body}, nil
}

func (c *Composer) buildPrompt(lead repository.Lead, stage domain.Stage, companyContext string) string {
	var b strings.Builder

	b.WriteString("You write short B2B outreach emails. ")
	b.WriteString("Respond with a JSON object with keys \"subject\" and \"body\". ")
	b.WriteString("Plain text body, no markdown, at most 120 words.\n\n")

	fmt.Fprintf(&b, "Recipient: %s", lead.Name)
	if lead.Title != nil && *lead.Title != "" {
		fmt.Fprintf(&b, ", %s", *lead.Title)
	}
	if lead.CompanyName != nil && *lead.CompanyName != "" {
		fmt.Fprintf(&b, " at %s", *lead.CompanyName)
	}
	b.WriteString("\n")

	if lead.CompanyIndustry != nil && *lead.CompanyIndustry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", *lead.CompanyIndustry)
	}
	if companyContext != "" {
		fmt.Fprintf(&b, "About their company:\n%s\n", companyContext)
	}

	switch stage {
	case domain.StageInitial:
		b.WriteString("\nWrite the first email of the sequence: introduce the sender briefly, ")
		b.WriteString("tie the value proposition to the recipient's company, end with a soft question.\n")
	case domain.StageFollowup1:
		b.WriteString("\nWrite a first follow-up to an unanswered email sent a few days ago. ")
		b.WriteString("Reference the earlier message without repeating it. Keep it under 60 words.\n")
	case domain.StageFollowup2:
		b.WriteString("\nWrite a final, polite break-up follow-up. Make clear this is the last ")
		b.WriteString("message and leave the door open. Keep it under 50 words.\n")
	}

	fmt.Fprintf(&b, "\nSign off as %s.", c.fromName)
	if c.signature != "" {
		fmt.Fprintf(&b, " Signature block:\n%s", c.signature)
	}
	return b.String()
}
