package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/helpdesk-sla/internal/config"
)

// Mailer delivers plain-text alert mail.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// WebhookSender posts a JSON body to the alert webhook.
type WebhookSender interface {
	Post(ctx context.Context, payload any) error
}

// SMTPMailer sends through gomail.
type SMTPMailer struct {
	from   string
	to     []string
	dialer *gomail.Dialer
}

// NewSMTPMailer returns nil when no SMTP host or recipient is configured.
func NewSMTPMailer(cfg config.NotificationConfig) Mailer {
	if strings.TrimSpace(cfg.SMTPHost) == "" || len(cfg.EmailTo) == 0 {
		return nil
	}
	return &SMTPMailer{
		from:   cfg.EmailFrom,
		to:     cfg.EmailTo,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(_ context.Context, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

// FiberWebhook posts alerts with fiber's HTTP client.
type FiberWebhook struct {
	url     string
	timeout time.Duration
}

// NewFiberWebhook returns nil when no webhook URL is configured.
func NewFiberWebhook(cfg config.NotificationConfig) WebhookSender {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil
	}
	return &FiberWebhook{url: cfg.WebhookURL, timeout: cfg.WebhookTimeout()}
}

// Post implements WebhookSender.
func (w *FiberWebhook) Post(ctx context.Context, payload any) error {
	timeout := w.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	agent := fiber.Post(w.url).JSON(payload).Timeout(timeout)
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post webhook: %w", errs[0])
	}
	if status >= 300 {
		return fmt.Errorf("post webhook: status %d: %s", status, truncate(string(body), 200))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
