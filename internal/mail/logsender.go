package mail

import (
	"context"
	"fmt"

	"outreach_backend/internal/outreach"
	"outreach_backend/platform/logger"

	"github.com/google/uuid"
)

// LogSender is the sender used when email delivery is disabled. It logs the
// message and fabricates a Message-ID so the rest of the pipeline, thread
// bookkeeping included, behaves exactly as in production.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, email outreach.OutboundEmail) (string, error) {
	messageID := fmt.Sprintf("<%s@outreach.local>", uuid.NewString())
	s.log.Info("email delivery disabled, message logged",
		"to", email.To,
		"subject", email.Subject,
		"thread_id", email.ThreadID,
		"message_id", messageID,
	)
	return messageID, nil
}
