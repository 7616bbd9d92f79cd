package mail

import (
	"context"
	"fmt"
	"strings"

	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach"

	imap "github.com/BrianLeishman/go-imap"
)

// IMAPPoller scans the mailbox for replies to open outreach threads. A fresh
// connection is dialed per poll; IMAP sessions held across the poll interval
// tend to be dropped by providers.
type IMAPPoller struct {
	host     string
	port     int
	username string
	password string
	folder   string
}

func NewIMAPPoller(host string, port int, username, password, folder string) *IMAPPoller {
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPPoller{
		host:     host,
		port:     port,
		username: username,
		password: password,
		folder:   folder,
	}
}

// FetchReplies fetches unseen messages and attributes them to open threads by
// sender address. A message from an address with no open thread is left
// untouched for a human to triage.
func (p *IMAPPoller) FetchReplies(ctx context.Context, threads []repository.ThreadRef) ([]outreach.InboundReply, error) {
	if len(threads) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byEmail := make(map[string]repository.ThreadRef, len(threads))
	for _, t := range threads {
		byEmail[strings.ToLower(t.Email)] = t
	}

	conn, err := imap.New(p.username, p.password, p.host, p.port)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	defer conn.Close()

	if err := conn.SelectFolder(p.folder); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", p.folder, err)
	}

	uids, err := conn.GetUIDs("UNSEEN")
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	emails, err := conn.GetEmails(uids...)
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	var replies []outreach.InboundReply
	for _, email := range emails {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for addr := range email.From {
			ref, ok := byEmail[strings.ToLower(addr)]
			if !ok {
				continue
			}
			replies = append(replies, outreach.InboundReply{
				LeadID:     ref.LeadID,
				ThreadID:   ref.ThreadID,
				From:       addr,
				ReceivedAt: email.Sent,
				Snippet:    snippet(email.Text, 200),
			})
			break
		}
	}
	return replies, nil
}

// snippet collapses whitespace and truncates the body for storage.
func snippet(body string, max int) string {
	s := strings.Join(strings.Fields(body), " ")
	if len(s) > max {
		s = s[:max]
	}
	return s
}
