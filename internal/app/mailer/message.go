package mailer

import (
	"bytes"
	"errors"
	"fmt"
	netmail "net/mail"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"jaytaylor.com/html2text"
)

// Message is a fully rendered email addressed to exactly one recipient.
type Message struct {
	To          string
	Subject     string
	TextBody    string
	HTMLBody    string
	Headers     map[string]string
	Attachments []Attachment
}

// Attachment holds a file attached to every message of a run.
// Data is read once before the run starts and never mutated.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

const fallbackMIMEType = "application/octet-stream"

var defaultHTMLToTextOpts = html2text.Options{TextOnly: true}

// Build renders the message into its RFC 5322 wire form: a multipart/mixed
// container holding a multipart/alternative part with the plain-text and/or
// HTML bodies, followed by base64-encoded attachment parts. When only an
// HTML body is present, a plain-text alternative is derived from it.
func (m *Message) Build(from string) ([]byte, error) {
	textBody := m.TextBody
	if textBody == "" && m.HTMLBody != "" {
		textBody, _ = html2text.FromString(m.HTMLBody, defaultHTMLToTextOpts)
	}
	if textBody == "" && m.HTMLBody == "" {
		return nil, errors.New("message has neither text nor html body")
	}

	var header mail.Header
	header.SetDate(time.Now())
	header.SetSubject(m.Subject)
	header.SetAddressList("From", []*mail.Address{parseAddress(from)})
	header.SetAddressList("To", []*mail.Address{{Address: m.To}})
	header.SetMsgIDList("Message-Id", []string{messageID(from)})
	for _, key := range sortedKeys(m.Headers) {
		if m.Headers[key] != "" {
			header.Set(key, m.Headers[key])
		}
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, header)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}

	if err = writeBodies(mw, textBody, m.HTMLBody); err != nil {
		return nil, err
	}

	for _, attachment := range m.Attachments {
		if err = writeAttachment(mw, attachment); err != nil {
			return nil, err
		}
	}

	if err = mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize message: %w", err)
	}

	return buf.Bytes(), nil
}

func writeBodies(mw *mail.Writer, textBody, htmlBody string) error {
	iw, err := mw.CreateInline()
	if err != nil {
		return fmt.Errorf("create alternative part: %w", err)
	}

	if textBody != "" {
		if err = writeInlinePart(iw, "text/plain", textBody); err != nil {
			return err
		}
	}
	if htmlBody != "" {
		if err = writeInlinePart(iw, "text/html", htmlBody); err != nil {
			return err
		}
	}

	if err = iw.Close(); err != nil {
		return fmt.Errorf("finalize alternative part: %w", err)
	}
	return nil
}

func writeInlinePart(iw *mail.InlineWriter, mimeType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(mimeType, map[string]string{"charset": "utf-8"})

	pw, err := iw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", mimeType, err)
	}
	if _, err = pw.Write([]byte(body)); err != nil {
		return fmt.Errorf("write %s part: %w", mimeType, err)
	}
	return pw.Close()
}

func writeAttachment(mw *mail.Writer, attachment Attachment) error {
	var h mail.AttachmentHeader
	h.SetContentType(normalizeMIMEType(attachment.MIMEType), nil)
	h.SetFilename(attachment.Filename)

	aw, err := mw.CreateAttachment(h)
	if err != nil {
		return fmt.Errorf("create attachment %q: %w", attachment.Filename, err)
	}
	if _, err = aw.Write(attachment.Data); err != nil {
		return fmt.Errorf("write attachment %q: %w", attachment.Filename, err)
	}
	return aw.Close()
}

// normalizeMIMEType falls back to application/octet-stream for absent
// or malformed media types, so a bad CSV of attachments can't produce
// an unparseable message.
func normalizeMIMEType(mimeType string) string {
	major, minor, ok := strings.Cut(mimeType, "/")
	if !ok || major == "" || minor == "" {
		return fallbackMIMEType
	}
	return mimeType
}

// parseAddress accepts both 'Name <addr>' and bare address forms,
// treating unparseable input as a bare address.
func parseAddress(raw string) *mail.Address {
	parsed, err := netmail.ParseAddress(raw)
	if err != nil {
		return &mail.Address{Address: strings.TrimSpace(raw)}
	}
	return &mail.Address{Name: parsed.Name, Address: parsed.Address}
}

func messageID(from string) string {
	domain := "localhost"
	if addr := parseAddress(from).Address; strings.Contains(addr, "@") {
		domain = addr[strings.LastIndex(addr, "@")+1:]
	}
	return uuid.NewString() + "@" + domain
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
