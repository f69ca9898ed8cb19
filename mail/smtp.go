package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"sociapi/domain"
)

// SMTP delivers plain text mail through an SMTP relay.
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	// StartTLS upgrades the connection before authenticating.
	StartTLS bool
	Timeout  time.Duration
}

var _ domain.Mailer = &SMTP{}

func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", s.Host, s.Port))
	if err != nil {
		return fmt.Errorf("err connecting to smtp server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return fmt.Errorf("err creating smtp client: %w", err)
	}
	defer client.Close()

	if s.StartTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("err starting tls: %w", err)
		}
	}
	if s.User != "" && s.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", s.User, s.Password, s.Host)); err != nil {
			return fmt.Errorf("smtp authentication failed: %w", err)
		}
	}
	if err := client.Mail(s.From); err != nil {
		return fmt.Errorf("err setting sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("err setting recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("err starting message: %w", err)
	}
	if _, err := w.Write([]byte(s.message(to, subject, body))); err != nil {
		return fmt.Errorf("err writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("err closing message: %w", err)
	}
	// The message is accepted once DATA is closed.
	_ = client.Quit()
	return nil
}

func (s *SMTP) message(to, subject, body string) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	msg.WriteString("\r\n")
	return msg.String()
}
