package mailer

import (
	"github.com/memora/backend/internal/config"
	"github.com/memora/backend/pkg/logger"
	"gopkg.in/gomail.v2"
)

// Sender delivers one HTML email.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SMTPMailer sends mail through an SMTP relay. Port 465 uses implicit TLS.
type SMTPMailer struct {
	From   string
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		From:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		logger.Error("mail_send_failed", err, map[string]interface{}{
			"to":      to,
			"subject": subject,
		})
		return err
	}
	logger.Info("mail_sent", map[string]interface{}{
		"to":      to,
		"subject": subject,
	})
	return nil
}

// LogSender writes messages to the log instead of sending them. It is used
// when no SMTP credentials are configured.
type LogSender struct{}

func (LogSender) Send(to, subject, htmlBody string) error {
	logger.Info("mail_not_sent", map[string]interface{}{
		"to":      to,
		"subject": subject,
		"body":    htmlBody,
	})
	return nil
}

func New(cfg config.MailConfig) Sender {
	if !cfg.Enabled() {
		logger.Warn("mail_disabled", map[string]interface{}{
			"reason": "SMTP_USER or SMTP_PASSWORD not set",
		})
		return LogSender{}
	}
	return NewSMTPMailer(cfg)
}
