package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperengineering/cadence/internal/config"
	"github.com/hyperengineering/cadence/internal/types"
)

// Compile-time interface check
var _ Provider = (*SMSProvider)(nil)

// SMSProvider delivers over the Twilio messages API.
type SMSProvider struct {
	cfg    config.SMSConfig
	client *http.Client
}

// NewSMSProvider creates a Twilio-backed SMS provider.
func NewSMSProvider(cfg config.SMSConfig) *SMSProvider {
	return &SMSProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Kind reports the SMS channel.
func (p *SMSProvider) Kind() Channel {
	return ChannelSMS
}

// Name identifies the provider in logs and audit rows.
func (p *SMSProvider) Name() string {
	return "twilio"
}

// Send delivers one SMS. Fails closed without a recorded phone number or
// account credentials; 5xx and transport errors are transient, 4xx are
// permanent (bad number, bad credentials).
func (p *SMSProvider) Send(ctx context.Context, user types.User, subject, body string) error {
	if user.Phone == "" {
		return fmt.Errorf("user %s has no phone number: %w", user.ID, ErrPermanent)
	}
	if p.cfg.AccountSID == "" || p.cfg.AuthToken == "" {
		return fmt.Errorf("sms credentials not configured: %w", ErrPermanent)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", user.Phone)
	form.Set("From", p.cfg.From)
	form.Set("Body", subject+"\n"+body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms send to %s: %w", user.Phone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("sms rejected (%d): %s: %w", resp.StatusCode, detail, ErrPermanent)
	}
	return fmt.Errorf("sms send failed (%d): %s", resp.StatusCode, detail)
}
