// Package notify delivers outbound email. Each send opens and tears
// down its own SMTP session; there is no pooling and no delivery
// guarantee beyond the synchronous result.
package notify

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
)

// Message is one outbound notification with an optional single
// attachment. An unreadable attachment degrades the send to body-only.
type Message struct {
	To             string
	Subject        string
	Body           string
	AttachmentPath string
}

// Notifier sends a message to one recipient.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer is the SMTP-backed Notifier.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewMailer constructs the mailer.
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, logger: logger}
}

// Send delivers the message over a fresh SMTP session. Disabled config
// short-circuits to a logged no-op so local runs work without
// credentials. Errors are returned, never panicked.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		m.logger.Info("smtp disabled; dropping notification",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
		return nil
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("notify: no recipient specified")
	}

	payload := m.buildPayload(msg)

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	dialer := net.Dialer{Timeout: m.cfg.Timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notify: dialing %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("notify: smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
			return fmt.Errorf("notify: starttls: %w", err)
		}
	}
	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("notify: auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("notify: setting sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("notify: setting recipient %s: %w", msg.To, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: initiating data transfer: %w", err)
	}
	if _, err := w.Write([]byte(payload)); err != nil {
		return fmt.Errorf("notify: writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: closing data transfer: %w", err)
	}

	return client.Quit()
}

// buildPayload renders the full RFC 5322 message. When an attachment is
// requested but unreadable the message falls back to plain text.
func (m *Mailer) buildPayload(msg Message) string {
	if msg.AttachmentPath == "" {
		return buildPlain(m.cfg.From, msg)
	}

	content, err := os.ReadFile(msg.AttachmentPath)
	if err != nil {
		m.logger.Warn("attachment unreadable; sending body only",
			zap.String("path", msg.AttachmentPath),
			zap.Error(err))
		return buildPlain(m.cfg.From, msg)
	}
	return buildMultipart(m.cfg.From, msg, filepath.Base(msg.AttachmentPath), content)
}

func headerLines(from string, msg Message) []string {
	return []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", msg.To),
		fmt.Sprintf("Subject: %s", mime.QEncoding.Encode("utf-8", msg.Subject)),
		"MIME-Version: 1.0",
	}
}

func buildPlain(from string, msg Message) string {
	headers := append(headerLines(from, msg),
		"Content-Type: text/plain; charset=UTF-8")
	return strings.Join(headers, "\r\n") + "\r\n\r\n" + msg.Body
}

func buildMultipart(from string, msg Message, filename string, content []byte) string {
	const boundary = "triage-attachment-boundary"

	var b strings.Builder
	for _, h := range headerLines(from, msg) {
		b.WriteString(h + "\r\n")
	}
	b.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary))

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Body + "\r\n\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: application/octet-stream\r\n")
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	b.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n\r\n", filename))

	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 76 {
		b.WriteString(encoded[:76] + "\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded + "\r\n")
	b.WriteString("--" + boundary + "--\r\n")
	return b.String()
}
