package connectors

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"autoquote/internal"
)

var parser = enmime.NewParser(enmime.DisableTextConversion(true))

// ParseMessage decodes a raw RFC 5322 message. The thread id is the
// In-Reply-To header when present, otherwise the Message-ID.
func ParseMessage(raw []byte) (internal.RawMessage, error) {
	env, err := parser.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return internal.RawMessage{}, fmt.Errorf("parse message: %w", err)
	}

	msg := internal.RawMessage{
		MessageID: strings.TrimSpace(env.GetHeader("Message-ID")),
		Subject:   strings.TrimSpace(env.GetHeader("Subject")),
		BodyText:  env.Text,
		BodyHTML:  env.HTML,
		Raw:       raw,
	}
	msg.ThreadID = strings.TrimSpace(env.GetHeader("In-Reply-To"))
	if msg.ThreadID == "" {
		msg.ThreadID = msg.MessageID
	}

	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromAddress = strings.ToLower(from[0].Address)
		msg.FromName = from[0].Name
	} else if addr, err := mail.ParseAddress(env.GetHeader("From")); err == nil {
		msg.FromAddress = strings.ToLower(addr.Address)
		msg.FromName = addr.Name
	}

	if t, err := parseMailDate(env.GetHeader("Date")); err == nil {
		msg.ReceivedAt = t.UTC()
	}

	for _, part := range append(env.Attachments, env.Inlines...) {
		if part.FileName == "" && !strings.HasPrefix(part.ContentType, "application/") {
			continue
		}
		msg.Attachments = append(msg.Attachments, internal.Attachment{
			FileName:    part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
			Content:     part.Content,
		})
	}
	return msg, nil
}

func parseMailDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("no date header")
	}
	if t, err := mail.ParseDate(value); err == nil {
		return t, nil
	}
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", value)
}
