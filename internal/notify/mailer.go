package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer sends plain-text mail through a single SMTP relay.
type SMTPMailer struct {
	Addr string // host:port
	From string
	User string
	Pass string
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	if m.Addr == "" {
		return fmt.Errorf("smtp relay not configured")
	}

	host := m.Addr
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, host)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.From, to, subject, body)
	if err := smtp.SendMail(m.Addr, auth, m.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
