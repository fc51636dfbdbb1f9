package utils

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/cppla/perkclaims/config"
)

// Mail providers accepted by NewMailer.
const (
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
)

// MailMessage is a single outgoing email.
type MailMessage struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// NewMailer builds the mailer selected by MailProvider. It returns nil when
// mail is disabled.
func NewMailer(cfg config.AppConfig) (Mailer, error) {
	fromName := cfg.MailFromName
	if fromName == "" {
		fromName = "Perk Claims"
	}
	switch strings.ToLower(cfg.MailProvider) {
	case "":
		return nil, nil
	case MailProviderSMTP:
		if cfg.SMTPHost == "" || cfg.MailFrom == "" {
			return nil, fmt.Errorf("smtp not configured")
		}
		return &SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			StartTLS: cfg.SMTPTLS,
			From:     cfg.MailFrom,
			FromName: fromName,
		}, nil
	case MailProviderSendGrid:
		if cfg.SendGridAPIKey == "" || cfg.MailFrom == "" {
			return nil, fmt.Errorf("sendgrid not configured")
		}
		return &SendGridMailer{APIKey: cfg.SendGridAPIKey, From: cfg.MailFrom, FromName: fromName}, nil
	default:
		return nil, fmt.Errorf("unsupported mail provider %q", cfg.MailProvider)
	}
}

// SMTPMailer sends plain text mail through an SMTP relay.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	StartTLS bool
	From     string
	FromName string
}

func (m *SMTPMailer) Send(ctx context.Context, msg MailMessage) error {
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	body := m.compose(msg)

	if !m.StartTLS {
		// Plain SMTP without TLS (not recommended)
		return smtp.SendMail(addr, auth, m.From, []string{msg.To}, body)
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	// ensure we don't hang forever
	deadline := time.Now().Add(15 * time.Second)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()
	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
			return err
		}
	}
	if m.Username != "" {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.From); err != nil {
		return err
	}
	if err := c.Rcpt(msg.To); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(body); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) compose(msg MailMessage) []byte {
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", msg.ToName), msg.To)
	}
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", m.FromName), m.From)},
		{"To", to},
		{"Subject", mime.BEncoding.Encode("UTF-8", msg.Subject)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(msg.Text)
	return []byte(b.String())
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	APIKey   string
	From     string
	FromName string
}

func (m *SendGridMailer) Send(ctx context.Context, msg MailMessage) error {
	from := mail.NewEmail(m.FromName, m.From)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	client := sendgrid.NewSendClient(m.APIKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
