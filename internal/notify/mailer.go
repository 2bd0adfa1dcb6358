package notify

import (
	"fmt"
	"net"
	"net/smtp"
)

// Mailer sends HTML mail through an SMTP relay.
type Mailer struct {
	addr string
	from string
	auth smtp.Auth
}

// NewMailer builds a mailer for host:port. Credentials are optional; local
// relays such as MailHog accept unauthenticated mail.
func NewMailer(host, port, from, user, password string) *Mailer {
	m := &Mailer{addr: net.JoinHostPort(host, port), from: from}
	if user != "" {
		m.auth = smtp.PlainAuth("", user, password, host)
	}
	return m
}

func (m *Mailer) Send(to, subject, body string) error {
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, buildMessage(m.from, to, subject, body)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body))
}
