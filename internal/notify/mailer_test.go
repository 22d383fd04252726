package notify

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
)

func TestSendDisabledIsNoOp(t *testing.T) {
	mailer := NewMailer(config.SMTPConfig{Enabled: false}, zap.NewNop())

	err := mailer.Send(context.Background(), Message{To: "someone@example.com", Subject: "x", Body: "y"})
	assert.NoError(t, err)
}

func TestSendRequiresRecipient(t *testing.T) {
	mailer := NewMailer(config.SMTPConfig{Enabled: true}, zap.NewNop())

	err := mailer.Send(context.Background(), Message{To: "  ", Subject: "x", Body: "y"})
	assert.Error(t, err)
}

func TestBuildPlain(t *testing.T) {
	payload := buildPlain("noreply@example.com", Message{
		To:      "requester@example.com",
		Subject: "Ticket T101 resolved",
		Body:    "Your invoice is attached.",
	})

	assert.True(t, strings.HasPrefix(payload, "From: noreply@example.com\r\n"))
	assert.Contains(t, payload, "To: requester@example.com\r\n")
	assert.Contains(t, payload, "Subject: Ticket T101 resolved\r\n")
	assert.Contains(t, payload, "Content-Type: text/plain; charset=UTF-8")
	assert.True(t, strings.HasSuffix(payload, "\r\n\r\nYour invoice is attached."))
}

func TestBuildMultipartEncodesAttachment(t *testing.T) {
	content := []byte(strings.Repeat("invoice data ", 20))
	payload := buildMultipart("noreply@example.com", Message{
		To:      "requester@example.com",
		Subject: "Ticket T101 resolved",
		Body:    "See attachment.",
	}, "invoice_copy_T101.pdf", content)

	assert.Contains(t, payload, `Content-Type: multipart/mixed; boundary="triage-attachment-boundary"`)
	assert.Contains(t, payload, "See attachment.")
	assert.Contains(t, payload, `Content-Disposition: attachment; filename="invoice_copy_T101.pdf"`)
	assert.Contains(t, payload, "Content-Transfer-Encoding: base64")
	assert.True(t, strings.HasSuffix(payload, "--triage-attachment-boundary--\r\n"))

	// base64 lines stay within the RFC 2045 limit and decode back
	start := strings.Index(payload, "Content-Disposition")
	require.Greater(t, start, 0)
	section := payload[start:]
	section = section[strings.Index(section, "\r\n\r\n")+4:]
	section = section[:strings.Index(section, "--triage-attachment-boundary--")]
	var encoded strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(section), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
		encoded.WriteString(line)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded.String())
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestBuildPayloadFallsBackWhenAttachmentUnreadable(t *testing.T) {
	mailer := NewMailer(config.SMTPConfig{From: "noreply@example.com"}, zap.NewNop())

	payload := mailer.buildPayload(Message{
		To:             "requester@example.com",
		Subject:        "Ticket T101 resolved",
		Body:           "Body only.",
		AttachmentPath: filepath.Join(t.TempDir(), "missing.pdf"),
	})

	assert.Contains(t, payload, "Content-Type: text/plain; charset=UTF-8")
	assert.NotContains(t, payload, "multipart/mixed")
}

func TestBuildPayloadAttachesReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	mailer := NewMailer(config.SMTPConfig{From: "noreply@example.com"}, zap.NewNop())
	payload := mailer.buildPayload(Message{
		To:             "requester@example.com",
		Subject:        "Ticket T101 resolved",
		Body:           "See attachment.",
		AttachmentPath: path,
	})

	assert.Contains(t, payload, "multipart/mixed")
	assert.Contains(t, payload, `filename="doc.pdf"`)
}
