package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/hyperengineering/cadence/internal/config"
	"github.com/hyperengineering/cadence/internal/types"
)

// Compile-time interface check
var _ Provider = (*EmailProvider)(nil)

// sendMailFunc matches smtp.SendMail; swapped out in tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailProvider delivers over SMTP.
type EmailProvider struct {
	cfg      config.SMTPConfig
	sendMail sendMailFunc
}

// NewEmailProvider creates an SMTP-backed email provider.
func NewEmailProvider(cfg config.SMTPConfig) *EmailProvider {
	return &EmailProvider{cfg: cfg, sendMail: smtp.SendMail}
}

// Kind reports the email channel.
func (p *EmailProvider) Kind() Channel {
	return ChannelEmail
}

// Name identifies the provider in logs and audit rows.
func (p *EmailProvider) Name() string {
	return "smtp"
}

// Send delivers one email. A user without an email address is a permanent
// failure; transport errors are transient and retried by the dispatcher.
func (p *EmailProvider) Send(ctx context.Context, user types.User, subject, body string) error {
	if user.Email == "" {
		return fmt.Errorf("user %s has no email address: %w", user.ID, ErrPermanent)
	}
	if p.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured: %w", ErrPermanent)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}

	msg := buildMessage(p.cfg.From, user.Email, subject, body)
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	if err := p.sendMail(addr, auth, p.cfg.From, []string{user.Email}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", user.Email, err)
	}
	return nil
}

// buildMessage assembles a minimal RFC 5322 message.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
