package notify

import (
	"context"
	"errors"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/noah-isme/backend-kasir/internal/resilience"
)

// Dialer is the subset of *gomail.Dialer used to deliver mail.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers plain-text mail through an SMTP relay. Failures feed
// the breaker so a dead relay fails fast.
type SMTPSender struct {
	Dialer  Dialer
	From    string
	Breaker *resilience.Breaker
}

var _ Mailer = (*SMTPSender)(nil)

// NewSMTPSender builds a sender for host:port.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		Dialer:  gomail.NewDialer(host, port, username, password),
		From:    from,
		Breaker: resilience.NewBreaker("smtp", 5, 0.5, 0),
	}
}

// Send implements Mailer. ctx bounds the breaker bookkeeping only; gomail
// dials without a context.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s == nil || s.Dialer == nil {
		return errors.New("smtp sender not configured")
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("smtp: recipient is required")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	send := func(context.Context) error { return s.Dialer.DialAndSend(m) }
	if s.Breaker == nil {
		return send(ctx)
	}
	return s.Breaker.Do(ctx, send)
}
