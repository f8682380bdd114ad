package codec

import (
	"mime"
	"strings"

	"github.com/nhle/mailbar/internal/model"
)

// contentType is the body type of every outgoing message.
const contentType = `text/plain; charset="UTF-8"`

// BuildMIMEMessage renders draft as a minimal RFC 5322 message and returns
// it base64url encoded, ready for the provider's raw send field.
//
// Headers are written in a fixed order: From (optional), To, Subject,
// MIME-Version, Content-Type, In-Reply-To (optional), References (optional).
// Addresses are not validated; the provider rejects malformed ones.
func BuildMIMEMessage(draft model.Draft) string {
	return EncodeBase64URL(renderMIME(draft))
}

func renderMIME(draft model.Draft) string {
	headers := make([]string, 0, 7)
	if draft.From != "" {
		headers = append(headers, "From: "+draft.From)
	}
	headers = append(headers,
		"To: "+draft.To,
		"Subject: "+mime.BEncoding.Encode("UTF-8", draft.Subject),
		"MIME-Version: 1.0",
		"Content-Type: "+contentType,
	)
	if draft.InReplyTo != "" {
		headers = append(headers, "In-Reply-To: "+draft.InReplyTo)
	}
	if draft.References != "" {
		headers = append(headers, "References: "+draft.References)
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, "\r\n"))
	b.WriteString("\r\n\r\n")
	b.WriteString(draft.Body)
	return b.String()
}
