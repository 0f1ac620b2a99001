package service

import (
	"fmt"

	"github.com/apcs-space/access-service/internal/config"
	"gopkg.in/gomail.v2"
)

// smtpMailer sends transactional mail over SMTP.
type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer creates a new SMTP-backed mailer
func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
	}
}

func (m *smtpMailer) SendVerificationCode(email, name, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "Confirm your email address")

	body := fmt.Sprintf(`
		<h2>Hi %s,</h2>
		<p>Your verification code is:</p>
		<p style="font-size:24px"><strong>%s</strong></p>
		<p>The code expires in 30 minutes. If you did not create an account,
		you can ignore this email.</p>
	`, name, code)

	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}
