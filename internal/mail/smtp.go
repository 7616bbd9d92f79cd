// Package mail holds the SMTP sender and the IMAP reply poller.
package mail

import (
	"context"
	"fmt"
	"net"
	"time"

	"outreach_backend/internal/outreach"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender delivers outreach emails over the configured SMTP relay via
// go-mail. Every message gets an explicit Message-ID; follow-ups additionally
// carry In-Reply-To and References so mail clients keep the thread together.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

// Send delivers one message and returns its Message-ID.
func (s *SMTPSender) Send(ctx context.Context, email outreach.OutboundEmail) (string, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return "", fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.AddToFormat(email.ToName, email.To); err != nil {
		return "", fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, email.Body)
	msg.SetMessageID()

	if email.ThreadID != "" {
		msg.SetGenHeader(gomail.HeaderInReplyTo, email.ThreadID)
		msg.SetGenHeader(gomail.Header("References"), email.ThreadID)
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}

	return msg.GetMessageID(), nil
}
