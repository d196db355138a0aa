package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/intake/internal/model"
)

// Subject returns the email subject for a client
func Subject(rec model.IntakeRecord) string {
	return fmt.Sprintf("[SHS Intake] Eligibility Result for %s", rec.DisplayName())
}

// Body returns the plain-text summary sent to staff
func Body(rec model.IntakeRecord) string {
	eligible := "NO"
	if rec.Eligible != nil && *rec.Eligible {
		eligible = "YES"
	}
	score := "N/A"
	if rec.EligibilityScore != nil {
		score = fmt.Sprintf("%d", *rec.EligibilityScore)
	}

	var b strings.Builder
	b.WriteString("SHS Intake Eligibility Result\n")
	b.WriteString("----------------------------\n")
	fmt.Fprintf(&b, "Client: %s\n", rec.DisplayName())
	fmt.Fprintf(&b, "Eligible: %s\n", eligible)
	fmt.Fprintf(&b, "Score: %s\n", score)
	b.WriteString("Reasons:\n")
	for _, r := range rec.EligibilityReasons {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}

// BuildMessage assembles a multipart/mixed email with the report artifact attached
func BuildMessage(from, to string, handle model.ReportHandle, rec model.IntakeRecord, now time.Time) ([]byte, error) {
	attachment, err := os.ReadFile(handle.Path)
	if err != nil {
		return nil, fmt.Errorf("read report attachment: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := []struct{ key, value string }{
		{"From", from},
		{"To", to},
		{"Subject", mime.QEncoding.Encode("utf-8", Subject(rec))},
		{"Date", now.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mw.Boundary())},
	}
	if handle.ID != "" {
		header = append(header, struct{ key, value string }{"X-Report-ID", handle.ID})
	}

	var head bytes.Buffer
	for _, h := range header {
		fmt.Fprintf(&head, "%s: %s\r\n", h.key, h.value)
	}
	head.WriteString("\r\n")

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	qp := quotedprintable.NewWriter(text)
	if _, err := qp.Write([]byte(Body(rec))); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}

	contentType := handle.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := filepath.Base(handle.Path)
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	if err := writeBase64Lines(part, attachment); err != nil {
		return nil, fmt.Errorf("write attachment part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}

	return append(head.Bytes(), buf.Bytes()...), nil
}

// writeBase64Lines writes data as base64 wrapped at 76 columns
func writeBase64Lines(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}
