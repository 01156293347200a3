package main

import (
	"context"
	"log/slog"
)

// logSender writes links to the log instead of delivering mail. It stands in
// for a real transport during development.
type logSender struct {
	logger *slog.Logger
}

func (s logSender) SendResetLink(ctx context.Context, email, _ string, link string) error {
	s.logger.InfoContext(ctx, "password reset link", "email", email, "link", link)
	return nil
}

func (s logSender) SendVerificationLink(ctx context.Context, email, _ string, link string) error {
	s.logger.InfoContext(ctx, "verification link", "email", email, "link", link)
	return nil
}
