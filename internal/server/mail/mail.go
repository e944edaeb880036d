// Package mail delivers password reset notifications. Delivery failures are
// reported as false and logged, never returned as errors.
package mail

import (
	"context"

	"github.com/dmitrijs2005/workflow/internal/logging"
)

// Sender is the email delivery collaborator used by the reset flow.
type Sender interface {
	SendResetEmail(ctx context.Context, to, userName, token string) bool
	SendResetConfirmation(ctx context.Context, to, userName string) bool
}

// LogSender only logs that a message would have been sent. The token itself
// is never written to the log.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "mail")}
}

func (s *LogSender) SendResetEmail(ctx context.Context, to, userName, token string) bool {
	s.logger.Info(ctx, "reset email suppressed", "to", to, "user", userName, "token_length", len(token))
	return true
}

func (s *LogSender) SendResetConfirmation(ctx context.Context, to, userName string) bool {
	s.logger.Info(ctx, "reset confirmation suppressed", "to", to, "user", userName)
	return true
}
