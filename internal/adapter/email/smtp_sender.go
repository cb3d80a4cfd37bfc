package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers one HTML email. Implementations must be safe for
// concurrent use; callers treat every failure as non-fatal.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SMTPSender is a minimal SMTP client good enough for fire-and-forget
// notifications.
type SMTPSender struct {
	addr string // host:port
	from string
	auth smtp.Auth
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		auth: auth,
	}
}

var _ Sender = (*SMTPSender)(nil)

func (s *SMTPSender) Send(_ context.Context, to, subject, html string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
