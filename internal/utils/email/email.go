package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/decembrrr/internal/config"
)

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendDepositReceipt confirms a recorded cash deposit to the member
func (s *Sender) SendDepositReceipt(to, name, className string, amount, balance decimal.Decimal, at time.Time) error {
	e := s.newEmail(to, fmt.Sprintf("%s: payment received", className))
	body := fmt.Sprintf("Hi %s,\n\n", name)
	body += fmt.Sprintf(
		"Your class president recorded a payment of %s on %s.\n"+
			"Your balance is now %s.\n",
		amount.StringFixed(2), at.Format("2006-01-02 15:04"), balance.StringFixed(2),
	)
	if balance.IsNegative() {
		body += fmt.Sprintf("You still owe %s.\n", balance.Neg().StringFixed(2))
	}
	body += "\nDecembrrr"
	e.Text = []byte(body)
	return s.deliver(e, "deposit receipt")
}

// SendNoClassNotice tells a member that a date was marked as no class
func (s *Sender) SendNoClassNotice(to, name, className, date, reason string, refunded bool) error {
	e := s.newEmail(to, fmt.Sprintf("%s: no class on %s", className, date))
	body := fmt.Sprintf("Hi %s,\n\n", name)
	body += fmt.Sprintf("%s has been marked as a no-class day.\n", date)
	if reason != "" {
		body += fmt.Sprintf("Reason: %s\n", reason)
	}
	if refunded {
		body += "The deduction for that day has been returned to your balance.\n"
	} else {
		body += "No contribution will be collected that day.\n"
	}
	body += "\nDecembrrr"
	e.Text = []byte(body)
	return s.deliver(e, "no-class notice")
}

func (s *Sender) newEmail(to, subject string) *email.Email {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = subject
	return e
}

func (s *Sender) deliver(e *email.Email, kind string) error {
	if !s.cfg.MailEnabled() {
		s.logger.Debugf("SMTP not configured, skipping %s to %v", kind, e.To)
		return nil
	}
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send %s to %v: %v", kind, e.To, err)
		return fmt.Errorf("failed to send %s: %w", kind, err)
	}
	s.logger.Infof("Email sent to %v: %s", e.To, e.Subject)
	return nil
}
