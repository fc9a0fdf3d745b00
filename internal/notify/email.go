package notify

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"budgetwise/internal/config"
	"budgetwise/internal/log"
)

// Sender is one out-of-band delivery channel. The notify worker picks the
// implementation from configuration.
type Sender interface {
	Send(to, subject, body string) error
}

// EmailSender delivers alerts over SMTP.
type EmailSender struct {
	cfg    *config.Config
	logger *log.Logger
}

func NewEmailSender(cfg *config.Config, logger *log.Logger) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentNotify),
	}
}

func (s *EmailSender) Send(to, subject, body string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body + "\n\nBest regards,\nBudgetWise")

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	}
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("email sent", "to", to, "subject", subject)
	return nil
}
