package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"homeservices-platform/internal/config"
)

// SMTPEmailGateway delivers email over plain SMTP submission.
type SMTPEmailGateway struct {
	addr string
	host string
	from string
	auth smtp.Auth

	// sendMail is injectable for tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPEmailGateway(cfg config.SMTPConfig) (*SMTPEmailGateway, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("notify: smtp host and from address are required")
	}
	g := &SMTPEmailGateway{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		host:     cfg.Host,
		from:     cfg.From,
		sendMail: smtp.SendMail,
	}
	if cfg.Username != "" {
		g.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return g, nil
}

func (g *SMTPEmailGateway) Name() string { return "smtp_email" }

func (g *SMTPEmailGateway) Send(ctx context.Context, to Contact, templateID string, payload map[string]any) error {
	if to.Email == "" {
		return errors.New("notify: recipient has no email address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rendered := RenderTemplate(templateID, payload)
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		g.from, to.Email, rendered.Subject, rendered.Body,
	))

	// net/smtp has no ctx plumbing; the dispatcher's attempt timeout bounds
	// the worker, and the dial timeout lives in the OS defaults.
	if err := g.sendMail(g.addr, g.auth, g.from, []string{to.Email}, msg); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
