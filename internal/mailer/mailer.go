package mailer

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Mailer delivers account verification and password reset messages.
type Mailer interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

// LogMailer writes the message to the process log instead of sending
// it. Used when SMTP is not configured (dev, tests).
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to string, subject string, body string) error {
	log.Printf("[mail] to=%s subject=%q body=%q", to, subject, body)
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer sends plain-text mail over SMTP with STARTTLS on the
// standard submission port.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	if cfg.FromName == "" {
		cfg.FromName = "ElectroStock"
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(_ context.Context, to string, subject string, body string) error {
	cfg := m.cfg
	if cfg.Host == "" || cfg.Username == "" {
		return fmt.Errorf("mail: SMTP not configured")
	}

	from := fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	raw := buildRaw(from, to, subject, body)

	addr := cfg.Host + ":" + cfg.Port
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	// smtp.SendMail upgrades to STARTTLS when the server offers it.
	return smtp.SendMail(addr, auth, cfg.From, []string{to}, raw)
}

func buildRaw(from string, to string, subject string, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}
