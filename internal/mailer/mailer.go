// Package mailer sends notification emails over SMTP.
package mailer

import (
	"fmt"

	"sheriff-backend/internal/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Message struct {
	To      []string
	Subject string
	Body    string
	ReplyTo string
}

type Sender interface {
	Send(msg Message) error
}

// New returns an SMTP sender when SMTP_HOST is set and a no-op sender otherwise.
func New(cfg *config.Config) Sender {
	if !cfg.MailEnabled() {
		return Noop{}
	}
	return &SMTP{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.MailFrom,
	}
}

type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func (s *SMTP) Send(msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Noop drops messages; used when SMTP is not configured.
type Noop struct{}

func (Noop) Send(msg Message) error {
	zap.L().Debug("mail disabled, dropping message", zap.String("subject", msg.Subject))
	return nil
}
