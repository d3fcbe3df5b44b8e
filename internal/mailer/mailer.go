// Package mailer sends the account-lifecycle notifications UserStore and
// SessionManager trigger: password-reset links, email-verification links,
// failed-login warnings, and session user-agent-mismatch alerts
// (SPEC_FULL.md §4.9).
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// Mailer sends a single plain-text message to one recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer relays messages through a single SMTP account, the same
// one-account-relay model as the source's `lettre::SmtpTransport::relay`.
type SMTPMailer struct {
	fromName string
	username string
	password string
	domain   string
}

// NewSMTPMailer creates an SMTPMailer. domain is the SMTP server host
// (used for both the relay address and PLAIN auth); fromName is the
// display name used in the From header.
func NewSMTPMailer(fromName, username, password, domain string) *SMTPMailer {
	return &SMTPMailer{fromName: fromName, username: username, password: password, domain: domain}
}

// Send delivers a plain-text message. Failures are returned to the caller,
// which per SPEC_FULL.md §4.9 is expected to log and continue rather than
// fail the enclosing request — account operations never roll back because a
// notification email could not be sent.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", m.fromName, m.username)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", m.username, m.password, m.domain)
	addr := m.domain + ":587"

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(addr, auth, m.username, []string{to}, []byte(msg))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendBestEffort calls Send and logs a warning on failure instead of
// returning the error, for call sites that must not fail the enclosing
// operation over a notification delivery problem. A nil Mailer sends nothing.
func SendBestEffort(ctx context.Context, logger *slog.Logger, m Mailer, to, subject, body string) {
	if m == nil {
		return
	}
	if err := m.Send(ctx, to, subject, body); err != nil {
		logger.Warn("failed to send email", slog.Any("error", err), slog.String("to", to), slog.String("subject", subject))
	}
}
